package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"eventbot/internal/model"
	"eventbot/internal/repository"
	"eventbot/internal/service"
)

const testChat int64 = 1001

var testNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

var (
	_ UserStore         = (*repository.UserRepository)(nil)
	_ RegistrationStore = (*repository.RegistrationRepository)(nil)
	_ Gateway           = (*fakeGateway)(nil)
)

type testEnv struct {
	bot   *Bot
	gw    *fakeGateway
	db    *gorm.DB
	users *repository.UserRepository
	regs  *repository.RegistrationRepository
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB("sqlite", fmt.Sprintf("file:bot_%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = repository.NewEventRepository(db).Upsert(context.Background(), []model.Event{
		{ID: 3, Title: "Hackathon", Date: "2026-11-20", Location: "Lab 4", Description: "24 hours of code"},
		{ID: 7, Title: "Quiz night", Date: "2026-11-02", Location: "The Pub", Description: "Teams of up to six"},
	})
	if err != nil {
		t.Fatalf("seed events: %v", err)
	}
	return db
}

func newEnvOn(db *gorm.DB, gw *fakeGateway) *testEnv {
	users := repository.NewUserRepository(db)
	regs := repository.NewRegistrationRepository(db)
	machine := service.NewRegistrationService(func() time.Time { return testNow })
	return &testEnv{
		bot:   New(gw, users, repository.NewEventRepository(db), regs, machine, 2),
		gw:    gw,
		db:    db,
		users: users,
		regs:  regs,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newEnvOn(newTestDB(t), &fakeGateway{})
}

func (e *testEnv) text(t *testing.T, text string) {
	t.Helper()
	err := e.bot.HandleText(context.Background(), TextMessage{ChatID: testChat, Text: text, FirstName: "Ann", LastName: "Lee", Username: "ann"})
	if err != nil {
		t.Fatalf("handle %q: %v", text, err)
	}
}

func (e *testEnv) press(t *testing.T, data string) {
	t.Helper()
	err := e.bot.HandleCallback(context.Background(), CallbackQuery{ID: "cb-" + data, ChatID: testChat, MessageID: 55, Data: data})
	if err != nil {
		t.Fatalf("press %q: %v", data, err)
	}
}

func (e *testEnv) user(t *testing.T) *model.User {
	t.Helper()
	user, err := e.users.Get(context.Background(), testChat)
	if err != nil || user == nil {
		t.Fatalf("get user: %v %v", user, err)
	}
	return user
}

func (e *testEnv) activeRegistration(t *testing.T) *model.Registration {
	t.Helper()
	user := e.user(t)
	if user.ActiveRegistrationID == nil {
		t.Fatal("no active registration")
	}
	reg, err := e.regs.Get(context.Background(), *user.ActiveRegistrationID)
	if err != nil || reg == nil {
		t.Fatalf("get registration: %v %v", reg, err)
	}
	return reg
}

func TestEndToEndRegistration(t *testing.T) {
	env := newTestEnv(t)

	env.text(t, "/events")
	list := env.gw.lastSent()
	kb, ok := list.Markup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("events list markup = %T", list.Markup)
	}
	if len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("keyboard = %+v", kb.InlineKeyboard)
	}
	if *kb.InlineKeyboard[0][0].CallbackData != "event_3" || *kb.InlineKeyboard[0][1].CallbackData != "event_7" {
		t.Fatal("buttons not in ascending id order")
	}
	if strings.Index(list.Text, "Hackathon") > strings.Index(list.Text, "Quiz night") {
		t.Fatalf("list order wrong: %q", list.Text)
	}

	env.press(t, "event_7")
	detail := env.gw.lastEdit()
	if detail.MessageID != 55 || !strings.Contains(detail.Text, "Quiz night") || detail.Markup == nil {
		t.Fatalf("detail edit = %+v", detail)
	}
	row := detail.Markup.InlineKeyboard[0]
	if *row[0].CallbackData != "register_event_7" || *row[1].CallbackData != "back_to_events" {
		t.Fatalf("detail buttons = %+v", row)
	}

	env.press(t, "register_event_7")
	reg := env.activeRegistration(t)
	if reg.State != model.StateAwaitingTeamMembers || reg.EventID != 7 || reg.UserChatID != testChat {
		t.Fatalf("new registration = %+v", reg)
	}
	if env.gw.lastSent().Text != service.PromptTeamMembers {
		t.Fatalf("prompt = %q", env.gw.lastSent().Text)
	}

	env.text(t, "Ann Lee\nBo Chen")
	reg = env.activeRegistration(t)
	if reg.State != model.StateAwaitingTeamName || len(reg.TeamMembers) != 2 || reg.TeamMembers[1] != "Bo Chen" {
		t.Fatalf("after members = %+v", reg)
	}

	env.text(t, "A Team")
	reg = env.activeRegistration(t)
	if reg.State != model.StateAwaitingContactPhone || reg.TeamName != "A Team" {
		t.Fatalf("after name = %+v", reg)
	}

	env.text(t, "+12345678901")
	reg = env.activeRegistration(t)
	if reg.State != model.StateCompleted || reg.ContactPhone != "+12345678901" {
		t.Fatalf("after phone = %+v", reg)
	}
	if reg.RegistrationDate == nil || !reg.RegistrationDate.Equal(testNow) {
		t.Fatalf("registration date = %v", reg.RegistrationDate)
	}
	if !strings.Contains(env.gw.lastSent().Text, "Registration completed") {
		t.Fatalf("last message = %q", env.gw.lastSent().Text)
	}
	if len(env.gw.photos) != 1 || env.gw.photos[0].Size == 0 || !strings.Contains(env.gw.photos[0].Caption, "Quiz night") {
		t.Fatalf("ticket = %+v", env.gw.photos)
	}
}

func TestCommandsClearActiveRegistration(t *testing.T) {
	for _, cmd := range []string{"/start", "/help", "/events"} {
		t.Run(strings.TrimPrefix(cmd, "/"), func(t *testing.T) {
			env := newTestEnv(t)
			env.text(t, "/start")
			env.press(t, "register_event_3")
			env.text(t, "Ann\nBo")

			env.text(t, cmd)
			if env.user(t).ActiveRegistrationID != nil {
				t.Fatal("active registration survived command")
			}

			sentBefore, _ := env.gw.counts()
			env.text(t, "Carl\nDee")
			if got := env.gw.lastSent().Text; got != defaultText {
				t.Fatalf("free text after %s answered with %q", cmd, got)
			}
			if sentAfter, _ := env.gw.counts(); sentAfter != sentBefore+1 {
				t.Fatalf("expected one reply, got %d", sentAfter-sentBefore)
			}
		})
	}
}

func TestStartGreetsByName(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "/start")
	if got := env.gw.lastSent().Text; !strings.Contains(got, "Hello, Ann!") {
		t.Fatalf("greeting = %q", got)
	}
	if _, ok := env.gw.lastSent().Markup.(tgbotapi.ReplyKeyboardMarkup); !ok {
		t.Fatal("greeting must carry the main menu keyboard")
	}
}

func TestCommandMatchingIsExact(t *testing.T) {
	env := newTestEnv(t)
	for _, text := range []string{"/Start", "/events now", " /help"} {
		env.text(t, text)
		if got := env.gw.lastSent().Text; got != defaultText {
			t.Errorf("%q answered with %q", text, got)
		}
	}
}

func TestRegisterMissingEvent(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "/start")

	env.press(t, "register_event_99")
	if env.user(t).ActiveRegistrationID != nil {
		t.Fatal("registration started for missing event")
	}
	if got := env.gw.lastSent().Text; got != service.EventNotFoundText {
		t.Fatalf("reply = %q", got)
	}
}

func TestEventDetailMissing(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "/events")

	env.press(t, "event_99")
	edit := env.gw.lastEdit()
	if edit.Text != service.EventNotFoundText || edit.Markup != nil {
		t.Fatalf("edit = %+v", edit)
	}
}

func TestBackToEventsEditsInPlace(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "/events")
	sentBefore, _ := env.gw.counts()

	env.press(t, "event_3")
	env.press(t, "back_to_events")

	sentAfter, edits := env.gw.counts()
	if sentAfter != sentBefore {
		t.Fatal("back_to_events must edit, not send")
	}
	if edits != 2 {
		t.Fatalf("edits = %d", edits)
	}
	last := env.gw.lastEdit()
	if !strings.Contains(last.Text, "upcoming events") || last.Markup == nil || len(last.Markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("edit = %+v", last)
	}
}

func TestCallbackFromUnknownUserDropped(t *testing.T) {
	env := newTestEnv(t)

	env.press(t, "register_event_3")
	sent, edits := env.gw.counts()
	if sent != 0 || edits != 0 {
		t.Fatalf("sent = %d, edits = %d", sent, edits)
	}
	if u, _ := env.users.Get(context.Background(), testChat); u != nil {
		t.Fatal("callback must not create users")
	}
}

func TestUnknownCallbackIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "/start")
	sentBefore, _ := env.gw.counts()

	env.press(t, "share_event_3")
	sent, edits := env.gw.counts()
	if sent != sentBefore || edits != 0 {
		t.Fatalf("unknown callback produced output: sent %d edits %d", sent-sentBefore, edits)
	}
	if len(env.gw.acks) != 1 {
		t.Fatalf("acks = %v", env.gw.acks)
	}
}

func TestMalformedCallbackSuffix(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "/start")

	err := env.bot.HandleCallback(context.Background(), CallbackQuery{ChatID: testChat, Data: "register_event_x"})
	if err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Fatalf("err = %v", err)
	}
	if env.user(t).ActiveRegistrationID != nil {
		t.Fatal("malformed callback started a registration")
	}
}

func TestValidationFailureKeepsState(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "/start")
	env.press(t, "register_event_3")

	env.text(t, "only one")
	reg := env.activeRegistration(t)
	if reg.State != model.StateAwaitingTeamMembers || len(reg.TeamMembers) != 0 {
		t.Fatalf("registration changed: %+v", reg)
	}
	if !strings.Contains(env.gw.lastSent().Text, "between 2 and 6") {
		t.Fatalf("reply = %q", env.gw.lastSent().Text)
	}

	env.text(t, "Ann\nBo")
	env.text(t, strings.Repeat("n", 41))
	reg = env.activeRegistration(t)
	if reg.State != model.StateAwaitingTeamName || reg.TeamName != "" {
		t.Fatalf("registration changed: %+v", reg)
	}

	env.text(t, "Team")
	env.text(t, "12a456789")
	reg = env.activeRegistration(t)
	if reg.State != model.StateAwaitingContactPhone || reg.ContactPhone != "" || reg.RegistrationDate != nil {
		t.Fatalf("registration changed: %+v", reg)
	}
}

func TestCompletedRegistrationTakesNoInput(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "/start")
	env.press(t, "register_event_3")
	env.text(t, "Ann\nBo")
	env.text(t, "Team")
	env.text(t, "123456789")

	completed := env.activeRegistration(t)
	env.text(t, "hello again")
	if got := env.gw.lastSent().Text; got != defaultText {
		t.Fatalf("reply = %q", got)
	}
	after := env.activeRegistration(t)
	if after.ID != completed.ID || after.State != model.StateCompleted || after.ContactPhone != "123456789" {
		t.Fatalf("completed registration changed: %+v", after)
	}
}

func TestTransportFailureKeepsProgress(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "/start")
	env.press(t, "register_event_3")

	env.gw.mu.Lock()
	env.gw.fail = true
	env.gw.mu.Unlock()

	env.text(t, "Ann\nBo")
	if reg := env.activeRegistration(t); reg.State != model.StateAwaitingTeamName {
		t.Fatalf("state = %s", reg.State)
	}
}

func TestProgressSurvivesRestart(t *testing.T) {
	db := newTestDB(t)
	first := newEnvOn(db, &fakeGateway{})
	first.text(t, "/start")
	first.press(t, "register_event_7")
	first.text(t, "Ann\nBo\nCy")

	second := newEnvOn(db, &fakeGateway{})
	second.text(t, "Night Owls")
	reg := second.activeRegistration(t)
	if reg.State != model.StateAwaitingContactPhone || reg.TeamName != "Night Owls" || len(reg.TeamMembers) != 3 {
		t.Fatalf("registration after restart = %+v", reg)
	}
}

func TestNewRegistrationReplacesActive(t *testing.T) {
	env := newTestEnv(t)
	env.text(t, "/start")
	env.press(t, "register_event_3")
	firstID := env.activeRegistration(t).ID

	env.press(t, "register_event_7")
	reg := env.activeRegistration(t)
	if reg.ID == firstID || reg.EventID != 7 {
		t.Fatalf("active registration = %+v", reg)
	}
	old, err := env.regs.Get(context.Background(), firstID)
	if err != nil || old == nil || old.State != model.StateAwaitingTeamMembers {
		t.Fatalf("previous registration = %+v %v", old, err)
	}
}

func TestRegisterCommands(t *testing.T) {
	env := newTestEnv(t)
	if err := env.bot.RegisterCommands(); err != nil {
		t.Fatalf("register commands: %v", err)
	}
	if len(env.gw.commands) != 3 {
		t.Fatalf("commands = %+v", env.gw.commands)
	}
	for _, c := range env.gw.commands {
		if strings.HasPrefix(c.Command, "/") || c.Description == "" {
			t.Errorf("bad command %+v", c)
		}
	}
}
