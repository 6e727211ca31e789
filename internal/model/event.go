package model

import "time"

// Event is a read-only catalog entry users can register a team for.
type Event struct {
	ID          uint `gorm:"primaryKey"`
	Title       string
	Date        string
	Location    string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
