package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"eventbot/internal/model"
	"eventbot/internal/service"
)

type UserStore interface {
	Get(ctx context.Context, chatID int64) (*model.User, error)
	EnsureUser(ctx context.Context, chatID int64, firstName, lastName, username string) (*model.User, bool, error)
	ClearActiveRegistration(ctx context.Context, chatID int64) error
}

type RegistrationStore interface {
	Get(ctx context.Context, id uint) (*model.Registration, error)
	Save(ctx context.Context, reg *model.Registration) error
	Start(ctx context.Context, chatID int64, eventID uint) (*model.Registration, error)
}

// TextMessage is an inbound text update.
type TextMessage struct {
	ChatID    int64
	Text      string
	FirstName string
	LastName  string
	Username  string
}

// CallbackQuery is an inbound inline button press.
type CallbackQuery struct {
	ID        string
	ChatID    int64
	MessageID int
	Data      string
}

// Bot routes updates to command, conversation and callback handlers.
type Bot struct {
	gateway       Gateway
	users         UserStore
	events        service.EventReader
	registrations RegistrationStore
	catalog       *service.CatalogService
	machine       *service.RegistrationService
	workers       int
}

func New(gateway Gateway, users UserStore, events service.EventReader, registrations RegistrationStore, machine *service.RegistrationService, workers int) *Bot {
	if workers <= 0 {
		workers = 1
	}
	return &Bot{
		gateway:       gateway,
		users:         users,
		events:        events,
		registrations: registrations,
		catalog:       service.NewCatalogService(events),
		machine:       machine,
		workers:       workers,
	}
}

// RegisterCommands publishes the command menu. Call once at startup.
func (b *Bot) RegisterCommands() error {
	if err := b.gateway.SetCommands(botCommands()); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}

// Run consumes updates until the channel closes or ctx is cancelled.
// Updates of one chat are handled in order; at most workers chats are handled at once,
// and a chat stuck on a slow send holds only its own slot.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	queues := newChatQueues()
	slots := make(chan struct{}, b.workers)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			chatID := chatIDOf(update)
			if !queues.push(chatID, update) {
				continue
			}
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				queues.drop(chatID)
				return ctx.Err()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-slots }()
				b.serveChat(ctx, queues, chatID)
			}()
		}
	}
}

// serveChat handles the queued updates of one chat until its queue is empty.
func (b *Bot) serveChat(ctx context.Context, queues *chatQueues, chatID int64) {
	for {
		if ctx.Err() != nil {
			if n := queues.drop(chatID); n > 0 {
				logf(ctx, "info", "shutdown: dropped %d queued updates of chat=%d", n, chatID)
			}
			return
		}
		update, ok := queues.next(chatID)
		if !ok {
			return
		}
		b.HandleUpdate(ctx, update)
	}
}

// chatQueues holds pending updates per chat. A chat present in the map is being served.
type chatQueues struct {
	mu      sync.Mutex
	pending map[int64][]tgbotapi.Update
}

func newChatQueues() *chatQueues {
	return &chatQueues{pending: make(map[int64][]tgbotapi.Update)}
}

// push appends update to the chat's queue and reports whether the chat was idle,
// in which case the caller must start serving it.
func (q *chatQueues) push(chatID int64, update tgbotapi.Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	queue, busy := q.pending[chatID]
	q.pending[chatID] = append(queue, update)
	return !busy
}

// next pops the chat's oldest update. An empty queue retires the chat.
func (q *chatQueues) next(chatID int64) (tgbotapi.Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	queue := q.pending[chatID]
	if len(queue) == 0 {
		delete(q.pending, chatID)
		return tgbotapi.Update{}, false
	}
	update := queue[0]
	if len(queue) == 1 {
		q.pending[chatID] = nil
	} else {
		q.pending[chatID] = queue[1:]
	}
	return update, true
}

// drop retires the chat and returns how many queued updates were discarded.
func (q *chatQueues) drop(chatID int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending[chatID])
	delete(q.pending, chatID)
	return n
}

// HandleUpdate processes one Telegram update. Errors are logged, never returned.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx = withRID(ctx)
	defer func() {
		if r := recover(); r != nil {
			logf(ctx, "error", "panic handling update %d: %v\n%s", update.UpdateID, r, debug.Stack())
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil || cb.Message.Chat == nil {
			logf(ctx, "warn", "callback %s without message", cb.ID)
			return
		}
		err := b.HandleCallback(ctx, CallbackQuery{
			ID:        cb.ID,
			ChatID:    cb.Message.Chat.ID,
			MessageID: cb.Message.MessageID,
			Data:      cb.Data,
		})
		if err != nil {
			logf(ctx, "error", "handle callback: %v", err)
		}
	case update.Message != nil && update.Message.Chat != nil && update.Message.Text != "":
		err := b.HandleText(ctx, textMessageFrom(update.Message))
		if err != nil {
			logf(ctx, "error", "handle message: %v", err)
		}
	default:
		logf(ctx, "info", "skip unsupported update %d", update.UpdateID)
	}
}

func textMessageFrom(msg *tgbotapi.Message) TextMessage {
	tm := TextMessage{
		ChatID:    msg.Chat.ID,
		Text:      msg.Text,
		FirstName: msg.Chat.FirstName,
		LastName:  msg.Chat.LastName,
		Username:  msg.Chat.UserName,
	}
	if msg.From != nil {
		tm.FirstName = msg.From.FirstName
		tm.LastName = msg.From.LastName
		tm.Username = msg.From.UserName
	}
	return tm
}

func chatIDOf(update tgbotapi.Update) int64 {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	default:
		return 0
	}
}
