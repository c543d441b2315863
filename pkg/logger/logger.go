// Package logger builds the application's zap logger and provides common
// field helpers, context propagation and a gin request logger.
package logger

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config configures the logger.
type Config struct {
	// Env selects production (JSON) or development (console) defaults.
	Env string

	// Level is one of debug, info, warn, error.
	Level string

	// Format overrides the encoding: "json" or "console".
	Format string

	// Recorder, when set, receives a copy of every entry.
	Recorder *Recorder
}

// New builds a zap logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if strings.EqualFold(cfg.Env, "production") {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Format {
	case "console":
		zapCfg.Encoding = "console"
	case "json":
		zapCfg.Encoding = "json"
	}

	if cfg.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var opts []zap.Option
	if cfg.Recorder != nil {
		rec := cfg.Recorder
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, rec)
		}))
	}

	return zapCfg.Build(opts...)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

type ctxKey struct{}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or zap's global logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.L()
}

// ══════════════════════════════════════════════════════════════════════════════
// FIELD HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func TelegramID(id int64) zap.Field     { return zap.Int64("telegram_id", id) }
func ChatID(id int64) zap.Field         { return zap.Int64("chat_id", id) }
func CourseCode(code string) zap.Field  { return zap.String("course_code", code) }
func Component(name string) zap.Field   { return zap.String("component", name) }
func Operation(name string) zap.Field   { return zap.String("operation", name) }
func RequestID(id string) zap.Field     { return zap.String("request_id", id) }
func Command(name string) zap.Field     { return zap.String("command", name) }
func Latency(d time.Duration) zap.Field { return zap.Duration("latency", d) }

// ══════════════════════════════════════════════════════════════════════════════
// GIN
// ══════════════════════════════════════════════════════════════════════════════

// GinMiddleware logs one line per HTTP request.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		l.Info("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			Latency(time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
