package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"eventbot/internal/model"
)

const ticketSize = 256

// ticketPayload is the string encoded in the ticket QR code.
func ticketPayload(reg model.Registration) string {
	return fmt.Sprintf("registration:%d:event:%d", reg.ID, reg.EventID)
}

func renderTicket(reg model.Registration) ([]byte, error) {
	png, err := qrcode.Encode(ticketPayload(reg), qrcode.Medium, ticketSize)
	if err != nil {
		return nil, fmt.Errorf("encode ticket: %w", err)
	}
	return png, nil
}

func ticketCaption(reg model.Registration, event *model.Event) string {
	title := fmt.Sprintf("event #%d", reg.EventID)
	if event != nil {
		title = event.Title
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎟 <b>%s</b>\n", html.EscapeString(title)))
	sb.WriteString(fmt.Sprintf("Team: %s (%d members)\n", html.EscapeString(reg.TeamName), len(reg.TeamMembers)))
	sb.WriteString(fmt.Sprintf("Phone: %s", html.EscapeString(reg.ContactPhone)))
	return sb.String()
}

// sendTicket sends the QR ticket for a completed registration. Failures are logged only.
func (b *Bot) sendTicket(ctx context.Context, chatID int64, reg model.Registration) {
	png, err := renderTicket(reg)
	if err != nil {
		logf(ctx, "error", "ticket for registration %d: %v", reg.ID, err)
		return
	}
	event, err := b.events.Get(ctx, reg.EventID)
	if err != nil {
		logf(ctx, "error", "ticket event lookup %d: %v", reg.EventID, err)
	}
	name := fmt.Sprintf("ticket-%d.png", reg.ID)
	if err := b.gateway.SendPhoto(chatID, name, png, ticketCaption(reg, event)); err != nil {
		logf(ctx, "error", "send ticket to chat=%d: %v", chatID, err)
	}
}
