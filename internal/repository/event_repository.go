package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eventbot/internal/model"
)

// EventRepository reads the event catalog.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Get returns the event with id, or nil if there is none.
func (r *EventRepository) Get(ctx context.Context, id uint) (*model.Event, error) {
	var event model.Event
	err := r.db.WithContext(ctx).First(&event, id).Error
	switch {
	case err == nil:
		return &event, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find event: %w", err)
	}
}

func (r *EventRepository) ListOrderedByID(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Upsert inserts events or overwrites the catalog fields of existing ones, keyed by ID.
func (r *EventRepository) Upsert(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "date", "location", "description", "updated_at"}),
	}).Create(&events).Error
	if err != nil {
		return fmt.Errorf("upsert events: %w", err)
	}
	return nil
}
