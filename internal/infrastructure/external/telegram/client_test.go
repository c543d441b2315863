package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiCall struct {
	Method string
	Body   map[string]any
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
	reply func(method string, n int) (int, string)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Body: body})
	n := len(f.calls)
	f.mu.Unlock()

	status, payload := http.StatusOK, `{"ok":true,"result":{"message_id":1,"chat":{"id":1,"type":"private"}}}`
	if f.reply != nil {
		status, payload = f.reply(method, n)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		Token:         "TOKEN",
		BaseURL:       srv.URL,
		Timeout:       time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	})
}

func TestSendMessage_Body(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	kb := NewKeyboard().Row(Button("DSA", "mark:1-DSA")).Build()
	msg, err := c.SendMessage(context.Background(), SendMessageParams{
		ChatID: 42, Text: "<b>hi</b>", ParseMode: ParseModeHTML, ReplyMarkup: kb,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.MessageID)

	require.Len(t, api.calls, 1)
	call := api.calls[0]
	assert.Equal(t, "sendMessage", call.Method)
	assert.Equal(t, float64(42), call.Body["chat_id"])
	assert.Equal(t, "HTML", call.Body["parse_mode"])
	markup := call.Body["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	btn := rows[0].([]any)[0].(map[string]any)
	assert.Equal(t, "mark:1-DSA", btn["callback_data"])
}

func TestSendMessage_ContactKeyboard(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	_, err := c.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "share", ReplyMarkup: ContactKeyboard("Share Contact")})
	require.NoError(t, err)
	_, err = c.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "thanks", ReplyMarkup: RemoveKeyboard()})
	require.NoError(t, err)

	kb := api.calls[0].Body["reply_markup"].(map[string]any)
	assert.Equal(t, true, kb["one_time_keyboard"])
	btn := kb["keyboard"].([]any)[0].([]any)[0].(map[string]any)
	assert.Equal(t, true, btn["request_contact"])
	assert.Equal(t, map[string]any{"remove_keyboard": true}, api.calls[1].Body["reply_markup"])
}

func TestCallAPI_RetriesServerErrors(t *testing.T) {
	api := &fakeAPI{reply: func(_ string, n int) (int, string) {
		if n == 1 {
			return http.StatusBadGateway, `{"ok":false,"error_code":502,"description":"Bad Gateway"}`
		}
		return http.StatusOK, `{"ok":true,"result":true}`
	}}
	c := newTestClient(t, api)

	require.NoError(t, c.AnswerCallbackQuery(context.Background(), "cb", ""))
	assert.Len(t, api.calls, 2)
}

func TestCallAPI_ClientErrorsNotRetried(t *testing.T) {
	api := &fakeAPI{reply: func(string, int) (int, string) {
		return http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`
	}}
	c := newTestClient(t, api)

	_, err := c.SendText(context.Background(), 5, "hello")
	require.Error(t, err)
	assert.True(t, IsChatNotFound(err))
	assert.False(t, IsBotBlocked(err))
	assert.Len(t, api.calls, 1)
}

func TestIsParseError(t *testing.T) {
	assert.True(t, IsParseError(&APIError{Code: 400, Description: "Bad Request: can't parse entities: Can't find end of the entity"}))
	assert.False(t, IsParseError(&APIError{Code: 400, Description: "Bad Request: chat not found"}))
}

func TestIsBotBlocked(t *testing.T) {
	assert.True(t, IsBotBlocked(&APIError{Code: 403, Description: "Forbidden: bot was blocked by the user"}))
	assert.False(t, IsBotBlocked(&APIError{Code: 400, Description: "Bad Request"}))
}

func TestEditMessageText_IgnoresNotModified(t *testing.T) {
	api := &fakeAPI{reply: func(string, int) (int, string) {
		return http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`
	}}
	c := newTestClient(t, api)

	err := c.EditMessageText(context.Background(), EditMessageParams{ChatID: 1, MessageID: 2, Text: "same"})
	assert.NoError(t, err)
}

func TestStartPolling_AdvancesOffset(t *testing.T) {
	api := &fakeAPI{reply: func(method string, n int) (int, string) {
		if n == 1 {
			return http.StatusOK, `{"ok":true,"result":[
				{"update_id":10,"message":{"message_id":1,"chat":{"id":1,"type":"private"},"text":"/start"}},
				{"update_id":11,"callback_query":{"id":"c","from":{"id":1,"first_name":"A"},"data":"mark:1-DSA"}}]}`
		}
		return http.StatusOK, `{"ok":true,"result":[]}`
	}}
	c := newTestClient(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	var kinds []string
	err := c.StartPolling(ctx, func(_ context.Context, u *Update) error {
		kinds = append(kinds, u.Kind())
		if u.UpdateID == 11 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"message", "callback_query"}, kinds)
	assert.Equal(t, int64(12), c.updateOffset)
}

func TestAdminNotifier(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	require.NoError(t, NewAdminNotifier(c, 0).NotifyAdmin(context.Background(), "x"))
	assert.Empty(t, api.calls)

	require.NoError(t, NewAdminNotifier(c, 99).NotifyAdmin(context.Background(), "<b>x</b>"))
	require.Len(t, api.calls, 1)
	assert.Equal(t, float64(99), api.calls[0].Body["chat_id"])
	assert.Equal(t, "HTML", api.calls[0].Body["parse_mode"])
}

func TestExtractCommand(t *testing.T) {
	tests := []struct {
		text, cmd, args string
	}{
		{"/start", "start", ""},
		{"/block 123", "block", "123"},
		{"/reply@AttendioBot 5 hello there", "reply", "5 hello there"},
		{"hello", "", ""},
	}
	for _, tt := range tests {
		msg := &Message{Text: tt.text}
		assert.Equal(t, tt.cmd, ExtractCommand(msg), tt.text)
		assert.Equal(t, tt.args, ExtractCommandArgs(msg), tt.text)
	}
}
