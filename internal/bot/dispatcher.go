package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"eventbot/internal/model"
	"eventbot/internal/service"
)

const (
	cmdStart  = "/start"
	cmdHelp   = "/help"
	cmdEvents = "/events"
)

const (
	helpText = "Welcome to the Telegram Bot! 🤖\n\n" +
		"Here are some commands you can use:\n" +
		"/start - Start the bot\n" +
		"/events - List current events\n" +
		"/help - Show this help message\n\n" +
		"Feel free to ask me anything! 😃"
	defaultText = "Sorry, I didn't understand that command 😕. Type /help for assistance."
	startFormat = "Hello, %s! How can I assist you today? 👋"
)

// HandleText routes a text message: built-in commands first, then the active registration.
func (b *Bot) HandleText(ctx context.Context, msg TextMessage) error {
	user, created, err := b.users.EnsureUser(ctx, msg.ChatID, msg.FirstName, msg.LastName, msg.Username)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if created {
		logf(ctx, "info", "new user registered chat=%d name=%q", user.ChatID, strings.TrimSpace(user.FirstName+" "+user.LastName))
	}
	logf(ctx, "info", "message from chat=%d", msg.ChatID)

	switch msg.Text {
	case cmdStart, cmdHelp, cmdEvents:
		return b.handleCommand(ctx, user, msg.Text)
	}

	if user.ActiveRegistrationID == nil {
		b.send(ctx, msg.ChatID, defaultText)
		return nil
	}
	return b.handleConversation(ctx, user, msg.Text)
}

func (b *Bot) handleCommand(ctx context.Context, user *model.User, command string) error {
	if user.ActiveRegistrationID != nil {
		abandoned := *user.ActiveRegistrationID
		if err := b.users.ClearActiveRegistration(ctx, user.ChatID); err != nil {
			return err
		}
		user.ActiveRegistrationID = nil
		logf(ctx, "info", "registration %d abandoned by %s chat=%d", abandoned, command, user.ChatID)
	}

	switch command {
	case cmdStart:
		b.send(ctx, user.ChatID, fmt.Sprintf(startFormat, html.EscapeString(user.DisplayName())))
	case cmdHelp:
		b.send(ctx, user.ChatID, helpText)
	case cmdEvents:
		view, err := b.catalog.List(ctx)
		if err != nil {
			return err
		}
		b.sendView(ctx, user.ChatID, view)
	}
	return nil
}

func (b *Bot) handleConversation(ctx context.Context, user *model.User, text string) error {
	regID := *user.ActiveRegistrationID
	reg, err := b.registrations.Get(ctx, regID)
	if err != nil {
		return err
	}
	if reg == nil {
		logf(ctx, "warn", "active registration %d of chat=%d not found", regID, user.ChatID)
		b.send(ctx, user.ChatID, defaultText)
		return nil
	}

	res, ok := b.machine.Step(*reg, text)
	if !ok {
		logf(ctx, "warn", "registration %d in state %q takes no input", reg.ID, reg.State)
		b.send(ctx, user.ChatID, defaultText)
		return nil
	}

	if res.Advanced {
		if err := b.registrations.Save(ctx, &res.Registration); err != nil {
			return err
		}
		logf(ctx, "info", "registration %d %s -> %s", reg.ID, reg.State, res.Registration.State)
	}
	for _, reply := range res.Replies {
		b.send(ctx, user.ChatID, reply)
	}
	if res.Advanced && res.Registration.Completed() {
		b.sendTicket(ctx, user.ChatID, res.Registration)
	}
	return nil
}

// HandleCallback routes an inline button press by its data prefix.
func (b *Bot) HandleCallback(ctx context.Context, cb CallbackQuery) error {
	if cb.ID != "" {
		if err := b.gateway.AnswerCallback(cb.ID); err != nil {
			logf(ctx, "error", "callback ack: %v", err)
		}
	}

	user, err := b.users.Get(ctx, cb.ChatID)
	if err != nil {
		return err
	}
	if user == nil {
		logf(ctx, "error", "user not found for chat=%d", cb.ChatID)
		return nil
	}
	logf(ctx, "info", "callback %q from chat=%d", cb.Data, cb.ChatID)

	switch {
	case strings.HasPrefix(cb.Data, service.CallbackRegisterPrefix):
		eventID, err := parseEventID(cb.Data, service.CallbackRegisterPrefix)
		if err != nil {
			return err
		}
		return b.startRegistration(ctx, user, eventID)
	case strings.HasPrefix(cb.Data, service.CallbackEventPrefix):
		eventID, err := parseEventID(cb.Data, service.CallbackEventPrefix)
		if err != nil {
			return err
		}
		view, err := b.catalog.Detail(ctx, eventID)
		if err != nil {
			return err
		}
		b.editView(ctx, cb.ChatID, cb.MessageID, view)
		return nil
	case cb.Data == service.CallbackBackToEvents:
		view, err := b.catalog.List(ctx)
		if err != nil {
			return err
		}
		b.editView(ctx, cb.ChatID, cb.MessageID, view)
		return nil
	default:
		logf(ctx, "warn", "unsupported callback data %q", cb.Data)
		return nil
	}
}

func (b *Bot) startRegistration(ctx context.Context, user *model.User, eventID uint) error {
	event, err := b.events.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if event == nil {
		logf(ctx, "info", "register for missing event %d chat=%d", eventID, user.ChatID)
		b.send(ctx, user.ChatID, service.EventNotFoundText)
		return nil
	}

	reg, err := b.registrations.Start(ctx, user.ChatID, event.ID)
	if err != nil {
		return err
	}
	user.ActiveRegistrationID = &reg.ID
	logf(ctx, "info", "registration %d started event=%d chat=%d", reg.ID, event.ID, user.ChatID)

	b.send(ctx, user.ChatID, service.PromptTeamMembers)
	return nil
}

// parseEventID reads the numeric suffix after prefix.
func parseEventID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed callback data %q: %w", data, err)
	}
	return uint(value), nil
}

// send delivers text with the main menu. Transport errors are logged and dropped.
func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if err := b.gateway.Send(chatID, text, mainMenuKeyboard()); err != nil {
		logf(ctx, "error", "send to chat=%d: %v", chatID, err)
	}
}

func (b *Bot) sendView(ctx context.Context, chatID int64, view service.View) {
	var markup interface{} = mainMenuKeyboard()
	if kb := inlineKeyboard(view.Rows); kb != nil {
		markup = *kb
	}
	if err := b.gateway.Send(chatID, view.Text, markup); err != nil {
		logf(ctx, "error", "send view to chat=%d: %v", chatID, err)
	}
}

func (b *Bot) editView(ctx context.Context, chatID int64, messageID int, view service.View) {
	if err := b.gateway.Edit(chatID, messageID, view.Text, inlineKeyboard(view.Rows)); err != nil {
		logf(ctx, "error", "edit message %d in chat=%d: %v", messageID, chatID, err)
	}
}
