package bot

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Gateway delivers outbound messages to the messaging platform.
type Gateway interface {
	// Send posts a new message. markup is a reply keyboard, an inline keyboard or nil.
	Send(chatID int64, text string, markup interface{}) error
	Edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	SendPhoto(chatID int64, name string, png []byte, caption string) error
	AnswerCallback(callbackID string) error
	SetCommands(commands []tgbotapi.BotCommand) error
}

const (
	pollTimeout = 60
	// apiTimeout bounds every Bot API call; it must outlast a long poll.
	apiTimeout = (pollTimeout + 15) * time.Second
)

// TelegramGateway implements Gateway on top of the Bot API.
type TelegramGateway struct {
	api *tgbotapi.BotAPI
}

func NewTelegramGateway(token string, debug bool) (*TelegramGateway, error) {
	client := &http.Client{Timeout: apiTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	api.Debug = debug

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)
	return &TelegramGateway{api: api}, nil
}

func (g *TelegramGateway) Send(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := g.api.Send(msg)
	return err
}

func (g *TelegramGateway) Edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = markup
	_, err := g.api.Send(edit)
	return err
}

func (g *TelegramGateway) SendPhoto(chatID int64, name string, png []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: png})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	_, err := g.api.Send(photo)
	return err
}

func (g *TelegramGateway) AnswerCallback(callbackID string) error {
	_, err := g.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

func (g *TelegramGateway) SetCommands(commands []tgbotapi.BotCommand) error {
	_, err := g.api.Request(tgbotapi.NewSetMyCommands(commands...))
	return err
}

// Updates starts long polling; the channel is closed once ctx is cancelled.
func (g *TelegramGateway) Updates(ctx context.Context) tgbotapi.UpdatesChannel {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = pollTimeout
	updates := g.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		g.api.StopReceivingUpdates()
	}()
	return updates
}

// SetWebhook points Telegram at url for update delivery. Telegram echoes secret
// in the X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (g *TelegramGateway) SetWebhook(url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if _, err := g.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	log.Printf("[info] webhook registered at %s", url)
	return nil
}
