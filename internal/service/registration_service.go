package service

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"eventbot/internal/model"
)

const (
	MinTeamMembers   = 2
	MaxTeamMembers   = 6
	MaxTeamNameRunes = 40
)

const (
	PromptTeamMembers  = "Please enter the first and last names of your team members, one per line."
	PromptTeamName     = "Please enter the team name (1-40 characters):"
	PromptContactPhone = "Please enter your contact phone number (9-15 digits, optional +):"

	errTeamMembersText = "❌ Please enter between 2 and 6 team members, one per line."
	errTeamNameText    = "❌ Team name must be between 1 and 40 characters long."
	errPhoneText       = "❌ Please enter a valid phone number (9-15 digits, optional +)."
	completedText      = "✅ Registration completed successfully! 🎉"
)

var (
	ErrTeamSize     = errors.New("team must have between 2 and 6 members")
	ErrTeamName     = errors.New("team name must be between 1 and 40 characters")
	ErrContactPhone = errors.New("phone must be 9-15 digits with an optional leading +")
)

var phoneRe = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// StepResult is the outcome of feeding one message to a registration.
type StepResult struct {
	// Registration is the updated copy; it equals the input when Advanced is false.
	Registration model.Registration
	Advanced     bool
	Replies      []string
}

type stepFunc func(reg model.Registration, input string, now time.Time) StepResult

// RegistrationService advances registration conversations one message at a time.
// It does not touch storage; callers persist Registration when Advanced is set.
type RegistrationService struct {
	now   func() time.Time
	steps map[model.RegistrationState]stepFunc
}

func NewRegistrationService(now func() time.Time) *RegistrationService {
	if now == nil {
		now = time.Now
	}
	return &RegistrationService{
		now: now,
		steps: map[model.RegistrationState]stepFunc{
			model.StateAwaitingTeamMembers:  stepTeamMembers,
			model.StateAwaitingTeamName:     stepTeamName,
			model.StateAwaitingContactPhone: stepContactPhone,
		},
	}
}

// Handles reports whether messages are accepted in the given state.
func (s *RegistrationService) Handles(state model.RegistrationState) bool {
	_, ok := s.steps[state]
	return ok
}

// Step applies input to reg. The second result is false when reg's state takes no input,
// which includes StateCompleted.
func (s *RegistrationService) Step(reg model.Registration, input string) (StepResult, bool) {
	step, ok := s.steps[reg.State]
	if !ok {
		return StepResult{Registration: reg}, false
	}
	return step(reg, input, s.now()), true
}

func stepTeamMembers(reg model.Registration, input string, _ time.Time) StepResult {
	members, err := ParseTeamMembers(input)
	if err != nil {
		return StepResult{Registration: reg, Replies: []string{errTeamMembersText}}
	}
	reg.TeamMembers = members
	reg.State = model.StateAwaitingTeamName
	return StepResult{
		Registration: reg,
		Advanced:     true,
		Replies: []string{
			fmt.Sprintf("✅ Team registered with %d members.", len(members)),
			PromptTeamName,
		},
	}
}

func stepTeamName(reg model.Registration, input string, _ time.Time) StepResult {
	name, err := NormalizeTeamName(input)
	if err != nil {
		return StepResult{Registration: reg, Replies: []string{errTeamNameText}}
	}
	reg.TeamName = name
	reg.State = model.StateAwaitingContactPhone
	return StepResult{
		Registration: reg,
		Advanced:     true,
		Replies: []string{
			fmt.Sprintf("✅ Team name set to: %s.", html.EscapeString(name)),
			PromptContactPhone,
		},
	}
}

func stepContactPhone(reg model.Registration, input string, now time.Time) StepResult {
	phone, err := NormalizePhone(input)
	if err != nil {
		return StepResult{Registration: reg, Replies: []string{errPhoneText}}
	}
	reg.ContactPhone = phone
	reg.RegistrationDate = &now
	reg.State = model.StateCompleted
	return StepResult{
		Registration: reg,
		Advanced:     true,
		Replies:      []string{completedText},
	}
}

// ParseTeamMembers splits input into one member per non-blank line.
// Lines are kept as typed, only the line terminator is removed.
func ParseTeamMembers(input string) ([]string, error) {
	lines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")
	members := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			members = append(members, line)
		}
	}
	if len(members) < MinTeamMembers || len(members) > MaxTeamMembers {
		return nil, ErrTeamSize
	}
	return members, nil
}

// NormalizeTeamName trims input and checks its length in characters.
func NormalizeTeamName(input string) (string, error) {
	name := strings.TrimSpace(input)
	if n := utf8.RuneCountInString(name); n < 1 || n > MaxTeamNameRunes {
		return "", ErrTeamName
	}
	return name, nil
}

func NormalizePhone(input string) (string, error) {
	phone := strings.TrimSpace(input)
	if !phoneRe.MatchString(phone) {
		return "", ErrContactPhone
	}
	return phone, nil
}
