package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
)

// ══════════════════════════════════════════════════════════════════════════════
// TELEGRAM WEBHOOK
// Telegram retries any non-2xx answer, so only unauthenticated or malformed
// requests are rejected. Handler failures are logged and acknowledged.
// ══════════════════════════════════════════════════════════════════════════════

// SecretTokenHeader carries the secret registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler processes one Telegram update.
type UpdateHandler func(ctx context.Context, update *telegram.Update) error

// TelegramWebhook receives updates pushed by Telegram.
type TelegramWebhook struct {
	handle UpdateHandler
	secret string
	logger *zap.Logger
}

// NewTelegramWebhook creates the webhook endpoint. An empty secret accepts
// every request.
func NewTelegramWebhook(handle UpdateHandler, secret string, logger *zap.Logger) *TelegramWebhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramWebhook{handle: handle, secret: secret, logger: logger}
}

// Handle is the gin handler of POST /telegram/webhook.
func (w *TelegramWebhook) Handle(c *gin.Context) {
	if w.secret != "" {
		got := c.GetHeader(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(w.secret)) != 1 {
			w.logger.Warn("webhook request with bad secret token", zap.String("ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid secret token"})
			return
		}
	}

	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The update outlives a client disconnect.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := w.handle(ctx, &update); err != nil {
		w.logger.Error("webhook update failed", zap.Int64("update_id", update.UpdateID), zap.Error(err))
	}
	c.Status(http.StatusOK)
}
