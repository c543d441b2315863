package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/http/handlers"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, storeErr error, hook handlers.UpdateHandler) *Server {
	t.Helper()
	health := handlers.NewHealthChecker("test")
	health.AddCheck("store", handlers.PingCheck(pinger{err: storeErr}))

	cfg := DefaultConfig()
	cfg.WebhookSecret = "s3cret"
	srv, err := NewServer(cfg, Dependencies{
		Health:  health,
		Webhook: hook,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("attendio_updates_total 1\n"))
		}),
		Stats: func() map[string]interface{} { return map[string]interface{}{"updates_received": 3} },
	})
	require.NoError(t, err)
	return srv
}

func do(srv *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServer_RequiresHealth(t *testing.T) {
	_, err := NewServer(DefaultConfig(), Dependencies{})
	assert.Error(t, err)
}

func TestProbes(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := do(srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(handlers.RequestIDHeader))

	rec = do(srv, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Ready)
	assert.True(t, status.Checks["store"].Healthy)
}

func TestReadiness_FailingStore(t *testing.T) {
	srv := newTestServer(t, errors.New("connection refused"), nil)

	rec := do(srv, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Some checks failed: store")

	rec = do(srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsAndStats(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := do(srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "attendio_updates_total")

	rec = do(srv, http.MethodGet, "/stats", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"updates_received":3`)
}

func TestWebhook(t *testing.T) {
	var got []*telegram.Update
	hook := func(_ context.Context, u *telegram.Update) error {
		got = append(got, u)
		if u.UpdateID == 2 {
			return errors.New("handler failed")
		}
		return nil
	}
	srv := newTestServer(t, nil, hook)
	path := DefaultConfig().WebhookPath
	secret := map[string]string{handlers.SecretTokenHeader: "s3cret", "Content-Type": "application/json"}

	rec := do(srv, http.MethodPost, path, `{"update_id":1}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(srv, http.MethodPost, path, `{"update_id":`, secret)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"update_id":1,"message":{"message_id":5,"from":{"id":1001,"first_name":"Asha"},` +
		`"chat":{"id":1001,"type":"private"},"text":"/start"}}`
	rec = do(srv, http.MethodPost, path, body, secret)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodPost, path, `{"update_id":2}`, secret)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, got, 2)
	assert.Equal(t, "/start", got[0].Message.Text)
	assert.Equal(t, int64(1001), got[0].Message.From.ID)
}

func TestWebhook_NotRegisteredWithoutHandler(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	rec := do(srv, http.MethodPost, DefaultConfig().WebhookPath, `{}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
