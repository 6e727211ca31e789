package service

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"eventbot/internal/model"
)

// Callback data grammar for catalog buttons.
const (
	CallbackEventPrefix    = "event_"
	CallbackRegisterPrefix = "register_event_"
	CallbackBackToEvents   = "back_to_events"
)

const (
	catalogHeader        = "Here are the upcoming events:"
	EventNotFoundText    = "❌ Event not found."
	registerButtonLabel  = "Register"
	backButtonLabel      = "Back"
	keycapSuffix         = "\uFE0F\u20E3"
	eventDetailDateIcon  = "📅"
	eventDetailPlaceIcon = "📍"
	eventDetailNoteIcon  = "📝"
)

// Button is an inline button with its callback data.
type Button struct {
	Label string
	Data  string
}

// View is a rendered message: HTML text plus inline keyboard rows.
type View struct {
	Text string
	Rows [][]Button
}

type EventReader interface {
	Get(ctx context.Context, id uint) (*model.Event, error)
	ListOrderedByID(ctx context.Context) ([]model.Event, error)
}

// CatalogService renders the event list and event detail views.
type CatalogService struct {
	events EventReader
}

func NewCatalogService(events EventReader) *CatalogService {
	return &CatalogService{events: events}
}

// List renders every event as a numbered line and one numeric button per event.
func (s *CatalogService) List(ctx context.Context) (View, error) {
	events, err := s.events.ListOrderedByID(ctx)
	if err != nil {
		return View{}, err
	}
	return RenderEventList(events), nil
}

// Detail renders one event with Register and Back buttons.
func (s *CatalogService) Detail(ctx context.Context, eventID uint) (View, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return View{}, err
	}
	return RenderEventDetail(event), nil
}

func RenderEventList(events []model.Event) View {
	var sb strings.Builder
	sb.WriteString(catalogHeader)
	sb.WriteByte('\n')

	if len(events) == 0 {
		return View{Text: sb.String()}
	}

	row := make([]Button, 0, len(events))
	for i, event := range events {
		sb.WriteString(fmt.Sprintf("%s %s\n", numberEmoji(i+1), html.EscapeString(event.Title)))
		row = append(row, Button{Label: strconv.Itoa(i + 1), Data: EventCallback(event.ID)})
	}
	return View{Text: sb.String(), Rows: [][]Button{row}}
}

// RenderEventDetail renders event, or the not-found view when event is nil.
func RenderEventDetail(event *model.Event) View {
	if event == nil {
		return View{Text: EventNotFoundText}
	}
	text := fmt.Sprintf("<b>%s</b>\n\n%s Date: %s\n%s Location: %s\n%s %s",
		html.EscapeString(event.Title),
		eventDetailDateIcon, html.EscapeString(event.Date),
		eventDetailPlaceIcon, html.EscapeString(event.Location),
		eventDetailNoteIcon, html.EscapeString(event.Description),
	)
	return View{
		Text: text,
		Rows: [][]Button{{
			{Label: registerButtonLabel, Data: RegisterCallback(event.ID)},
			{Label: backButtonLabel, Data: CallbackBackToEvents},
		}},
	}
}

func EventCallback(id uint) string {
	return CallbackEventPrefix + strconv.FormatUint(uint64(id), 10)
}

func RegisterCallback(id uint) string {
	return CallbackRegisterPrefix + strconv.FormatUint(uint64(id), 10)
}

// numberEmoji spells n with keycap digits, e.g. 12 -> 1️⃣2️⃣.
func numberEmoji(n int) string {
	var sb strings.Builder
	for _, d := range strconv.Itoa(n) {
		sb.WriteRune(d)
		sb.WriteString(keycapSuffix)
	}
	return sb.String()
}
