package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TayalAditya/TheAttendioBot/internal/application/command"
	"github.com/TayalAditya/TheAttendioBot/internal/application/query"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/persistence/memory"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/handler"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/middleware"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
	"github.com/TayalAditya/TheAttendioBot/pkg/timeutil"
)

const (
	adminID int64 = 1
	aliceID int64 = 1001
)

type sent struct {
	chatID int64
	text   string
	edit   bool
}

type fakeClient struct {
	mu       sync.Mutex
	sent     []sent
	answers  map[string]string
	webhook  string
	deleted  bool
	failOnce error
	updates  []*telegram.Update
}

func newFakeClient() *fakeClient {
	return &fakeClient{answers: make(map[string]string)}
}

func (c *fakeClient) record(chatID int64, text string, edit bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOnce != nil {
		err := c.failOnce
		c.failOnce = nil
		return err
	}
	c.sent = append(c.sent, sent{chatID: chatID, text: text, edit: edit})
	return nil
}

func (c *fakeClient) SendMessage(_ context.Context, p telegram.SendMessageParams) (*telegram.Message, error) {
	return &telegram.Message{}, c.record(p.ChatID, p.Text, false)
}

func (c *fakeClient) SendText(_ context.Context, chatID int64, text string) (*telegram.Message, error) {
	return &telegram.Message{}, c.record(chatID, text, false)
}

func (c *fakeClient) SendHTML(_ context.Context, chatID int64, html string) (*telegram.Message, error) {
	return &telegram.Message{}, c.record(chatID, html, false)
}

func (c *fakeClient) EditMessageText(_ context.Context, p telegram.EditMessageParams) error {
	return c.record(p.ChatID, p.Text, true)
}

func (c *fakeClient) AnswerCallbackQuery(_ context.Context, id, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers[id] = text
	return nil
}

func (c *fakeClient) GetMe(context.Context) (*telegram.User, error) {
	return &telegram.User{ID: 42, IsBot: true, Username: "attendio_bot"}, nil
}

func (c *fakeClient) SetWebhook(_ context.Context, url, _ string) error {
	c.webhook = url
	return nil
}

func (c *fakeClient) DeleteWebhook(context.Context) error {
	c.deleted = true
	return nil
}

func (c *fakeClient) StartPolling(ctx context.Context, h telegram.UpdateHandler) error {
	for _, u := range c.updates {
		if err := h(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeClient) last() sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return sent{}
	}
	return c.sent[len(c.sent)-1]
}

func (c *fakeClient) texts(chatID int64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, s := range c.sent {
		if s.chatID == chatID {
			out = append(out, s.text)
		}
	}
	return out
}

type botFixture struct {
	bot    *Bot
	client *fakeClient
	store  *memory.RecordStore
	blocks *memory.BlockList
}

func newBotFixture(t *testing.T, mutate func(*BotConfig)) *botFixture {
	t.Helper()
	store := memory.NewRecordStore()
	blocks := memory.NewBlockList()
	now := time.Date(2024, time.October, 14, 9, 30, 0, 0, timeutil.KolkataTZ)
	svc := handler.NewServices(
		command.Dependencies{
			Store:    store,
			Locker:   memory.NewLocker(),
			Location: timeutil.KolkataTZ,
			Clock:    func() time.Time { return now },
		},
		query.Dependencies{Store: store, Advice: attendance.DefaultAdvicePolicy()},
		blocks,
	)

	cfg := DefaultBotConfig()
	cfg.AdminID = adminID
	if mutate != nil {
		mutate(&cfg)
	}
	client := newFakeClient()
	bot, err := NewBot(cfg, BotDependencies{
		Client:        client,
		Services:      svc,
		Conversations: memory.NewConversationStore(conversation.DefaultTTL),
		RateWindow:    memory.NewRateWindow(time.Minute),
	})
	require.NoError(t, err)
	return &botFixture{bot: bot, client: client, store: store, blocks: blocks}
}

func (f *botFixture) verify(id int64, nick string) string {
	u := attendance.User{ID: id, Name: "Asha", ChatID: id, Phone: "+911234567890"}
	code := attendance.CourseCode(id, nick)
	f.store.Seed(attendance.EncodeCourse(u, attendance.Course{Code: code, Nickname: nick}))
	return code
}

func message(from int64, text string) *telegram.Update {
	msg := &telegram.Message{
		MessageID: 7,
		From:      &telegram.User{ID: from, FirstName: "Asha", Username: "asha"},
		Chat:      &telegram.Chat{ID: from, Type: "private"},
		Text:      text,
	}
	return &telegram.Update{UpdateID: 1, Message: msg}
}

func contact(from int64, phone string) *telegram.Update {
	u := message(from, "")
	u.Message.Contact = &telegram.Contact{PhoneNumber: phone, FirstName: "Asha", UserID: from}
	return u
}

func callbackUpdate(from int64, id, data string) *telegram.Update {
	return &telegram.Update{UpdateID: 2, CallbackQuery: &telegram.CallbackQuery{
		ID:   id,
		From: &telegram.User{ID: from, FirstName: "Asha"},
		Data: data,
		Message: &telegram.Message{
			MessageID: 55,
			Chat:      &telegram.Chat{ID: from, Type: "private"},
		},
	}}
}

func TestNewBot_RequiresClient(t *testing.T) {
	_, err := NewBot(DefaultBotConfig(), BotDependencies{})
	assert.Error(t, err)
}

func TestBot_UnverifiedUserMustShareContact(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "/check_attendance")))
	assert.Equal(t, presenter.MsgPhoneRequired, f.client.last().text)

	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "/start")))
	assert.Equal(t, []string{
		presenter.MsgPhoneRequired,
		presenter.FormatWelcome("Asha"),
		presenter.MsgRequestContact,
	}, f.client.texts(aliceID))

	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "hello")))
	assert.Equal(t, presenter.MsgRequestContact, f.client.last().text)

	require.NoError(t, f.bot.HandleUpdate(ctx, contact(aliceID, "+911234567890")))
	assert.Equal(t, presenter.MsgAccountCreated, f.client.last().text)

	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "/add_course")))
	assert.Equal(t, presenter.MsgAskNickname, f.client.last().text)

	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "OS")))
	assert.Contains(t, f.client.last().text, "Course 'OS' added successfully.")
}

func TestBot_MarkAttendanceThroughCallbacks(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()
	code := f.verify(aliceID, "OS")

	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "/mark_attendance")))
	assert.Equal(t, presenter.MsgChooseMark, f.client.last().text)

	require.NoError(t, f.bot.HandleUpdate(ctx, callbackUpdate(aliceID, "cb1", presenter.CallbackMark+code)))
	last := f.client.last()
	assert.True(t, last.edit)
	assert.Equal(t, presenter.FormatMarkPrompt(code), last.text)

	require.NoError(t, f.bot.HandleUpdate(ctx, callbackUpdate(aliceID, "cb2", code+":1")))
	last = f.client.last()
	assert.True(t, last.edit)
	assert.Contains(t, last.text, "*Present:* 0 → 1 ✅")

	assert.Contains(t, f.client.answers, "cb1")
	assert.Contains(t, f.client.answers, "cb2")
}

func TestBot_CommandAbandonsPendingDialog(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()
	f.verify(aliceID, "OS")

	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "/add_course")))
	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "/help")))
	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "DBMS")))

	assert.Equal(t, presenter.MsgUnknownInput, f.client.last().text)
}

func TestBot_RateLimitBlocksAndFeedbackStaysOpen(t *testing.T) {
	f := newBotFixture(t, func(c *BotConfig) { c.RateLimitCommands = 2 })
	ctx := context.Background()
	f.verify(aliceID, "OS")

	for i := 0; i < 2; i++ {
		require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "/get_chat_id")))
	}
	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "/get_chat_id")))
	assert.Equal(t, presenter.MsgAutoBlocked, f.client.last().text)

	blocked, err := f.blocks.IsBlocked(ctx, aliceID)
	require.NoError(t, err)
	assert.True(t, blocked)

	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "/check_attendance")))
	assert.Equal(t, presenter.MsgBlocked, f.client.last().text)

	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "/feedback")))
	assert.Equal(t, presenter.MsgFeedbackPromptBlocked, f.client.last().text)

	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "please unblock me")))
	assert.Equal(t, presenter.MsgFeedbackBlockedSent, f.client.last().text)
	assert.NotEmpty(t, f.client.texts(adminID))
}

func TestBot_AdminOnlyCommands(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()
	f.verify(aliceID, "OS")

	require.NoError(t, f.bot.HandleUpdate(ctx, message(aliceID, "/block 1002")))
	assert.Equal(t, presenter.MsgNoPermission, f.client.last().text)

	require.NoError(t, f.bot.HandleUpdate(ctx, message(adminID, "/block 1001")))
	assert.Equal(t, "User 1001 has been blocked.", f.client.last().text)

	require.NoError(t, f.bot.HandleUpdate(ctx, callbackUpdate(aliceID, "cb9", presenter.CallbackCancelDelete)))
	assert.Equal(t, presenter.MsgBlocked, f.client.answers["cb9"])
}

func TestBot_PanicIsRecoveredAndReported(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()
	f.bot.Router().RegisterCommand("boom", Route{
		Policy: middleware.AccessPolicy{Public: true},
		Handler: func(context.Context, handler.Request) (*handler.Response, error) {
			panic("kaboom")
		},
	})

	err := f.bot.HandleUpdate(ctx, message(aliceID, "/boom"))
	require.NoError(t, err)
	assert.Equal(t, presenter.MsgInternalError, f.client.last().text)

	admin := f.client.texts(adminID)
	require.Len(t, admin, 1)
	assert.Contains(t, admin[0], "kaboom")
}

func TestBot_HandlerErrorWithoutResponse(t *testing.T) {
	f := newBotFixture(t, nil)
	f.bot.Router().RegisterCommand("fail", Route{
		Policy: middleware.AccessPolicy{Public: true},
		Handler: func(context.Context, handler.Request) (*handler.Response, error) {
			return nil, errors.New("store down")
		},
	})

	require.NoError(t, f.bot.HandleUpdate(context.Background(), message(aliceID, "/fail")))
	assert.Equal(t, presenter.MsgInternalError, f.client.last().text)

	stats := f.bot.GetStats()
	assert.Equal(t, int64(1), stats["handled_failed"])
}

func TestBot_FormattedMessageFallsBackToPlainText(t *testing.T) {
	f := newBotFixture(t, nil)
	f.bot.Router().RegisterCommand("fmt", Route{
		Policy: middleware.AccessPolicy{Public: true},
		Handler: func(context.Context, handler.Request) (*handler.Response, error) {
			return handler.Markdown("*broken"), nil
		},
	})
	f.client.failOnce = &telegram.APIError{Code: 400, Description: "Bad Request: can't parse entities"}

	require.NoError(t, f.bot.HandleUpdate(context.Background(), message(aliceID, "/fmt")))
	assert.Equal(t, "*broken", f.client.last().text)
}

func TestBot_StartPolling(t *testing.T) {
	f := newBotFixture(t, nil)
	f.client.updates = []*telegram.Update{message(aliceID, "/help"), message(aliceID, "/cancel")}

	require.NoError(t, f.bot.Start(context.Background()))
	require.NoError(t, f.bot.Stop(context.Background()))

	assert.True(t, f.client.deleted)
	assert.ElementsMatch(t, []string{presenter.FormatHelp(false), presenter.MsgCancel}, f.client.texts(aliceID))
	assert.False(t, f.bot.IsRunning())
}

func TestBot_StartWebhook(t *testing.T) {
	f := newBotFixture(t, func(c *BotConfig) {
		c.Mode = ModeWebhook
		c.WebhookURL = "https://example.com/telegram/webhook"
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.bot.Start(ctx))
	assert.Equal(t, "https://example.com/telegram/webhook", f.client.webhook)

	err := f.bot.Start(context.Background())
	assert.Error(t, err)
}
