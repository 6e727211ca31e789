package model

import "time"

// User stores Telegram chat metadata. ChatID is the Telegram chat identifier.
type User struct {
	ChatID               int64 `gorm:"primaryKey;autoIncrement:false"`
	FirstName            string
	LastName             string
	Username             string
	RegisteredAt         time.Time
	ActiveRegistrationID *uint `gorm:"index"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DisplayName returns the best human-readable name for greetings.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return "friend"
	}
}
