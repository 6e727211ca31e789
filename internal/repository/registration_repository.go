package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"eventbot/internal/model"
)

// RegistrationRepository stores team registrations.
type RegistrationRepository struct {
	db *gorm.DB
}

func NewRegistrationRepository(db *gorm.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Get returns the registration with id, or nil if there is none.
func (r *RegistrationRepository) Get(ctx context.Context, id uint) (*model.Registration, error) {
	var reg model.Registration
	err := r.db.WithContext(ctx).First(&reg, id).Error
	switch {
	case err == nil:
		return &reg, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find registration: %w", err)
	}
}

func (r *RegistrationRepository) Save(ctx context.Context, reg *model.Registration) error {
	if err := r.db.WithContext(ctx).Save(reg).Error; err != nil {
		return fmt.Errorf("save registration: %w", err)
	}
	return nil
}

// Start creates a registration awaiting team members and makes it the user's active one.
// Both writes happen in a single transaction.
func (r *RegistrationRepository) Start(ctx context.Context, chatID int64, eventID uint) (*model.Registration, error) {
	reg := model.Registration{
		UserChatID:  chatID,
		EventID:     eventID,
		State:       model.StateAwaitingTeamMembers,
		TeamMembers: []string{},
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&reg).Error; err != nil {
			return fmt.Errorf("create registration: %w", err)
		}
		res := tx.Model(&model.User{}).
			Where("chat_id = ?", chatID).
			Update("active_registration_id", reg.ID)
		if res.Error != nil {
			return fmt.Errorf("set active registration: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("set active registration: user %d not found", chatID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}
