package bot

import (
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sentMessage struct {
	ChatID int64
	Text   string
	Markup interface{}
}

type editedMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Markup    *tgbotapi.InlineKeyboardMarkup
}

type sentPhoto struct {
	ChatID  int64
	Name    string
	Size    int
	Caption string
}

var errTransport = errors.New("transport down")

// fakeGateway records outbound traffic instead of calling Telegram.
type fakeGateway struct {
	mu       sync.Mutex
	sent     []sentMessage
	edits    []editedMessage
	photos   []sentPhoto
	acks     []string
	commands []tgbotapi.BotCommand
	fail     bool
	panicOn  string

	// Send to holdChat signals held, then blocks until hold is closed.
	hold     chan struct{}
	holdChat int64
	held     chan struct{}
}

func (g *fakeGateway) Send(chatID int64, text string, markup interface{}) error {
	if g.hold != nil && chatID == g.holdChat {
		g.held <- struct{}{}
		<-g.hold
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panicOn != "" && text == g.panicOn {
		panic("gateway exploded")
	}
	if g.fail {
		return errTransport
	}
	g.sent = append(g.sent, sentMessage{ChatID: chatID, Text: text, Markup: markup})
	return nil
}

func (g *fakeGateway) Edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return errTransport
	}
	g.edits = append(g.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text, Markup: markup})
	return nil
}

func (g *fakeGateway) SendPhoto(chatID int64, name string, png []byte, caption string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return errTransport
	}
	g.photos = append(g.photos, sentPhoto{ChatID: chatID, Name: name, Size: len(png), Caption: caption})
	return nil
}

func (g *fakeGateway) AnswerCallback(callbackID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acks = append(g.acks, callbackID)
	return nil
}

func (g *fakeGateway) SetCommands(commands []tgbotapi.BotCommand) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commands = append(g.commands, commands...)
	return nil
}

func (g *fakeGateway) lastSent() sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sent) == 0 {
		return sentMessage{}
	}
	return g.sent[len(g.sent)-1]
}

func (g *fakeGateway) lastEdit() editedMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.edits) == 0 {
		return editedMessage{}
	}
	return g.edits[len(g.edits)-1]
}

func (g *fakeGateway) counts() (sent, edits int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent), len(g.edits)
}

func (g *fakeGateway) textsTo(chatID int64) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var texts []string
	for _, m := range g.sent {
		if m.ChatID == chatID {
			texts = append(texts, m.Text)
		}
	}
	return texts
}
