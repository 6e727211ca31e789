package model

import "time"

// RegistrationState is the step a registration conversation is waiting on.
type RegistrationState string

const (
	StateAwaitingTeamMembers  RegistrationState = "awaiting_team_members"
	StateAwaitingTeamName     RegistrationState = "awaiting_team_name"
	StateAwaitingContactPhone RegistrationState = "awaiting_contact_phone"
	StateCompleted            RegistrationState = "completed"
)

// Registration is one user's attempt to sign a team up for one event.
// Fields are filled in state order: TeamMembers, TeamName, then ContactPhone and RegistrationDate.
type Registration struct {
	ID               uint              `gorm:"primaryKey"`
	UserChatID       int64             `gorm:"index;not null"`
	EventID          uint              `gorm:"index;not null"`
	State            RegistrationState `gorm:"size:32;not null"`
	RegistrationDate *time.Time
	ContactPhone     string
	TeamName         string
	TeamMembers      []string `gorm:"serializer:json"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Completed reports whether the registration reached its terminal state.
func (r Registration) Completed() bool {
	return r.State == StateCompleted
}
