package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eventbot/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Get returns the user for chatID, or nil if there is none.
func (r *UserRepository) Get(ctx context.Context, chatID int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

// EnsureUser finds the user for chatID or creates it from the Telegram profile.
// Concurrent calls for the same chat resolve to the same row.
func (r *UserRepository) EnsureUser(ctx context.Context, chatID int64, firstName, lastName, username string) (*model.User, bool, error) {
	existing, err := r.Get(ctx, chatID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	user := model.User{
		ChatID:       chatID,
		FirstName:    firstName,
		LastName:     lastName,
		Username:     username,
		RegisteredAt: time.Now(),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create user: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return &user, true, nil
	}

	// lost the race to another insert for the same chat
	stored, err := r.Get(ctx, chatID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("user %d vanished after insert", chatID)
	}
	return stored, false, nil
}

// ClearActiveRegistration detaches the user from any in-flight registration.
func (r *UserRepository) ClearActiveRegistration(ctx context.Context, chatID int64) error {
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("chat_id = ?", chatID).
		Update("active_registration_id", nil).Error
	if err != nil {
		return fmt.Errorf("clear active registration: %w", err)
	}
	return nil
}
