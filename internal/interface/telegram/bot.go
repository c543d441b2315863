// Package telegram implements the Telegram interface of Attendio.
// It receives updates, routes them through the middleware chain to the
// handlers and manages the bot lifecycle.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/handler"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/handler/callback"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/middleware"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
	"github.com/TayalAditya/TheAttendioBot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Update receiving modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// Mode is the update receiving mode: "polling" or "webhook".
	Mode string

	// WebhookURL and WebhookSecret are registered with Telegram in webhook mode.
	WebhookURL    string
	WebhookSecret string

	// AdminID is the administrator's Telegram ID (0 = none).
	AdminID int64

	// SafeSkipThreshold is the percentage /manage_absences keeps above.
	SafeSkipThreshold float64

	// RateLimitCommands is the number of commands allowed per rate window.
	RateLimitCommands int

	// RequirePhone, AutoBlock and ShowStreaks read feature flags. nil means on.
	RequirePhone func() bool
	AutoBlock    func() bool
	ShowStreaks  func() bool

	// MaxConcurrentUpdates limits concurrent update processing.
	MaxConcurrentUpdates int

	// GracefulShutdownTimeout is the timeout for graceful shutdown.
	GracefulShutdownTimeout time.Duration

	Logger *zap.Logger
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Mode:                    ModePolling,
		SafeSkipThreshold:       75,
		RateLimitCommands:       15,
		MaxConcurrentUpdates:    50,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Telegram Bot API surface the bot uses.
type Client interface {
	Messenger
	GetMe(ctx context.Context) (*telegram.User, error)
	SetWebhook(ctx context.Context, url, secretToken string) error
	DeleteWebhook(ctx context.Context) error
	StartPolling(ctx context.Context, handler telegram.UpdateHandler) error
}

// Metrics receives bot measurements.
type Metrics interface {
	ObserveUpdate(kind string)
	TrackInFlight() func()
	middleware.CommandRecorder
	middleware.RateLimitObserver
}

// RateWindow counts commands per user and forgets them on unblock.
type RateWindow interface {
	middleware.Window
	handler.RateResetter
}

// BotDependencies contains all dependencies for the bot handlers.
type BotDependencies struct {
	Client        Client
	Services      handler.Services
	Conversations conversation.Store
	RateWindow    RateWindow

	// Logs serves /logs. May be nil.
	Logs handler.LogSender

	// Metrics may be nil.
	Metrics Metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the main Telegram bot controller.
type Bot struct {
	config  BotConfig
	client  Client
	router  *Router
	conv    conversation.Store
	metrics Metrics
	logger  *zap.Logger

	// Middleware chain
	access      *middleware.AccessMiddleware
	rateLimiter *middleware.RateLimiter
	recovery    *middleware.RecoveryMiddleware
	commands    *middleware.MetricsMiddleware

	// Lifecycle management
	running   bool
	runningMu sync.RWMutex
	updateSem chan struct{}
	wg        sync.WaitGroup

	stats *BotStats
}

// BotStats holds runtime statistics.
type BotStats struct {
	mu              sync.RWMutex
	StartedAt       time.Time
	UpdatesReceived int64
	UpdatesHandled  int64
	ErrorsCount     int64
	CommandsCount   map[string]int64
}

type nopMetrics struct{}

func (nopMetrics) ObserveUpdate(string)                         {}
func (nopMetrics) TrackInFlight() func()                        { return func() {} }
func (nopMetrics) ObserveCommand(string, time.Duration, error) {}
func (nopMetrics) ObserveRateLimited(bool)                      {}

// NewBot creates the bot and registers every route.
func NewBot(config BotConfig, deps BotDependencies) (*Bot, error) {
	if deps.Client == nil {
		return nil, errors.New("telegram client is required")
	}
	if deps.Conversations == nil || deps.RateWindow == nil {
		return nil, errors.New("conversation store and rate window are required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.MaxConcurrentUpdates <= 0 {
		config.MaxConcurrentUpdates = 1
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	log := config.Logger.With(logger.Component("telegram"))

	svc := deps.Services
	if config.ShowStreaks != nil {
		svc.Streaks = config.ShowStreaks
	}
	keyboards := presenter.NewKeyboardBuilder()

	recoveryConfig := middleware.DefaultRecoveryConfig()
	recoveryConfig.Logger = log
	if config.AdminID != 0 {
		recoveryConfig.OnPanic = func(ctx context.Context, info *middleware.PanicInfo) {
			text := fmt.Sprintf("⚠️ Panic in %s (user %d): %v", info.Command, info.TelegramID, info.PanicValue)
			if _, err := deps.Client.SendText(ctx, config.AdminID, text); err != nil {
				log.Warn("failed to report panic to admin", zap.Error(err))
			}
		}
	}

	b := &Bot{
		config:  config,
		client:  deps.Client,
		router:  NewRouter(deps.Client, log),
		conv:    deps.Conversations,
		metrics: deps.Metrics,
		logger:  log,
		access: middleware.NewAccessMiddleware(svc.BlockUser, svc.Users, middleware.AccessConfig{
			AdminID:      config.AdminID,
			RequirePhone: config.RequirePhone,
		}),
		rateLimiter: middleware.NewRateLimiter(deps.RateWindow, svc.BlockUser, middleware.RateLimitConfig{
			Limit:     config.RateLimitCommands,
			AdminID:   config.AdminID,
			AutoBlock: config.AutoBlock,
			Logger:    log,
			Observer:  deps.Metrics,
		}),
		recovery:  middleware.NewRecoveryMiddleware(recoveryConfig),
		commands:  middleware.NewMetricsMiddleware(deps.Metrics),
		updateSem: make(chan struct{}, config.MaxConcurrentUpdates),
		stats:     &BotStats{CommandsCount: make(map[string]int64)},
	}

	start := handler.NewStartHandler(svc, deps.Conversations, deps.Client, keyboards, log)
	courses := handler.NewCourseHandler(svc, deps.Conversations, keyboards)
	att := handler.NewAttendanceHandler(svc, keyboards, config.SafeSkipThreshold)
	feedback := handler.NewFeedbackHandler(deps.Conversations, deps.Client, config.AdminID, log)
	help := handler.NewHelpHandler(deps.Conversations)
	admin := handler.NewAdminHandler(svc, deps.Conversations, deps.Client, handler.AdminConfig{
		Rate:   deps.RateWindow,
		Logs:   deps.Logs,
		Logger: log,
	})

	markCb := callback.NewMarkHandler(svc, keyboards)
	deleteCb := callback.NewDeleteHandler(svc, keyboards)
	editCb := callback.NewEditHandler(svc, deps.Conversations, keyboards, log)

	public := middleware.AccessPolicy{Public: true}
	appeal := middleware.AccessPolicy{Public: true, AllowBlocked: true}
	verified := middleware.AccessPolicy{}
	adminOnly := middleware.AccessPolicy{AdminOnly: true}

	r := b.router
	r.RegisterCommand("start", Route{Handler: start.Start, Policy: public, Unlimited: true})
	r.RegisterCommand("verify", Route{Handler: start.Verify, Policy: public})
	r.RegisterCommand("help", Route{Handler: help.Help, Policy: public})
	r.RegisterCommand("cancel", Route{Handler: help.Cancel, Policy: appeal, Unlimited: true})
	r.RegisterCommand("feedback", Route{Handler: feedback.Start, Policy: appeal, Unlimited: true})
	r.RegisterCommand("get_chat_id", Route{Handler: start.GetChatID, Policy: verified})
	r.RegisterCommand("check_attendance", Route{Handler: att.Check, Policy: verified})
	r.RegisterCommand("mark_attendance", Route{Handler: att.MarkMenu, Policy: verified})
	r.RegisterCommand("edit_attendance", Route{Handler: att.EditMenu, Policy: verified})
	r.RegisterCommand("manage_absences", Route{Handler: att.ManageAbsences, Policy: verified})
	r.RegisterCommand("add_course", Route{Handler: courses.AddCourse, Policy: verified})
	r.RegisterCommand("delete_course", Route{Handler: courses.DeleteMenu, Policy: verified})

	r.RegisterCommand("block", Route{Handler: admin.Block, Policy: adminOnly})
	r.RegisterCommand("unblock", Route{Handler: admin.Unblock, Policy: adminOnly})
	r.RegisterCommand("reply", Route{Handler: admin.Reply, Policy: adminOnly})
	r.RegisterCommand("announce", Route{Handler: admin.Announce, Policy: adminOnly})
	r.RegisterCommand("logs", Route{Handler: admin.Logs, Policy: adminOnly})
	r.SetUnknownCommand(Route{Handler: help.Unknown, Policy: public})

	r.RegisterInput(conversation.StepAwaitingNickname, Route{Handler: courses.SaveNickname, Policy: verified})
	r.RegisterInput(conversation.StepAwaitingFeedback, Route{Handler: feedback.Save, Policy: appeal})
	r.RegisterInput(conversation.StepAwaitingAnnouncement, Route{Handler: admin.SendAnnouncement, Policy: adminOnly})
	r.RegisterInput(conversation.StepAwaitingContact, Route{Handler: start.AwaitingContact, Policy: public})
	r.SetDefaultText(Route{Handler: help.Unknown, Policy: public})
	r.SetContactHandler(Route{Handler: start.Contact, Policy: public})

	r.RegisterCallbackPrefix(presenter.CallbackMark, markCb.Choose)
	r.RegisterCallbackPrefix(presenter.CallbackDeleteConfirm, deleteCb.Confirm)
	r.RegisterCallbackPrefix(presenter.CallbackDelete, deleteCb.Delete)
	r.RegisterCallbackPrefix(presenter.CallbackCancelDelete, deleteCb.Cancel)
	r.RegisterCallbackPrefix(presenter.CallbackEditAttendance, editCb.Start)
	r.RegisterCallbackPrefix(presenter.CallbackIncreasePresent, editCb.Step)
	r.RegisterCallbackPrefix(presenter.CallbackDecreasePresent, editCb.Step)
	r.RegisterCallbackPrefix(presenter.CallbackIncreaseAbsent, editCb.Step)
	r.RegisterCallbackPrefix(presenter.CallbackDecreaseAbsent, editCb.Step)
	r.RegisterCallbackPrefix(presenter.CallbackDone, editCb.Done)
	r.RegisterCallbackPattern(func(data string) bool {
		_, _, ok := presenter.ParseMarkChoice(data)
		return ok
	}, markCb.Record)

	return b, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start verifies the token and receives updates until ctx is done.
// In webhook mode updates arrive through HandleUpdate instead.
func (b *Bot) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.stats.mu.Lock()
	b.stats.StartedAt = time.Now()
	b.stats.mu.Unlock()
	b.runningMu.Unlock()

	b.logger.Info("starting telegram bot", zap.String("mode", b.config.Mode))

	me, err := b.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify bot token: %w", err)
	}
	b.logger.Info("bot verified", zap.Int64("id", me.ID), zap.String("username", me.Username))

	switch b.config.Mode {
	case ModePolling, "":
		if err := b.client.DeleteWebhook(ctx); err != nil {
			b.logger.Warn("failed to delete webhook", zap.Error(err))
		}
		return b.client.StartPolling(ctx, b.dispatch)
	case ModeWebhook:
		if b.config.WebhookURL == "" {
			return errors.New("webhook URL is required for webhook mode")
		}
		if err := b.client.SetWebhook(ctx, b.config.WebhookURL, b.config.WebhookSecret); err != nil {
			return fmt.Errorf("failed to set webhook: %w", err)
		}
		b.logger.Info("webhook registered", zap.String("url", b.config.WebhookURL))
		<-ctx.Done()
		return nil
	default:
		return fmt.Errorf("unknown bot mode: %s", b.config.Mode)
	}
}

// Stop waits for in-flight updates.
func (b *Bot) Stop(ctx context.Context) error {
	b.runningMu.Lock()
	if !b.running {
		b.runningMu.Unlock()
		return nil
	}
	b.running = false
	b.runningMu.Unlock()

	b.logger.Info("stopping telegram bot")

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	timeout := b.config.GracefulShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
	case <-time.After(timeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
	case <-ctx.Done():
		b.logger.Warn("context cancelled during shutdown")
		return ctx.Err()
	}
	return nil
}

// IsRunning reports whether Start was called and Stop was not.
func (b *Bot) IsRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

// dispatch hands a polled update to a goroutine once a slot is free.
func (b *Bot) dispatch(ctx context.Context, update *telegram.Update) error {
	select {
	case b.updateSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.updateSem }()
		_ = b.process(context.WithoutCancel(ctx), update)
	}()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// HandleUpdate processes one update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, update *telegram.Update) error {
	select {
	case b.updateSem <- struct{}{}:
		defer func() { <-b.updateSem }()
	case <-ctx.Done():
		return ctx.Err()
	}
	b.wg.Add(1)
	defer b.wg.Done()
	return b.process(ctx, update)
}

func (b *Bot) process(ctx context.Context, update *telegram.Update) error {
	if update == nil {
		return nil
	}

	b.stats.mu.Lock()
	b.stats.UpdatesReceived++
	b.stats.mu.Unlock()

	requestID := uuid.NewString()
	log := b.logger.With(logger.RequestID(requestID), zap.Int64("update_id", update.UpdateID))
	ctx = middleware.WithRequestID(ctx, requestID)
	ctx = logger.WithContext(ctx, log)

	b.metrics.ObserveUpdate(update.Kind())
	done := b.metrics.TrackInFlight()
	defer done()

	startTime := time.Now()
	var err error
	switch {
	case update.Message != nil:
		err = b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		err = b.handleCallbackQuery(ctx, update.CallbackQuery)
	default:
		return nil
	}

	b.stats.mu.Lock()
	if err != nil {
		b.stats.ErrorsCount++
	} else {
		b.stats.UpdatesHandled++
	}
	b.stats.mu.Unlock()

	if err != nil {
		log.Error("failed to handle update", zap.Error(err), logger.Latency(time.Since(startTime)))
	}
	return err
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}

	req := handler.Request{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		From:      msg.From,
		Contact:   msg.Contact,
	}

	if msg.Contact != nil {
		return b.run(ctx, "contact", b.router.Contact(), req, false)
	}

	if name := telegram.ExtractCommand(msg); name != "" {
		b.stats.mu.Lock()
		b.stats.CommandsCount[name]++
		b.stats.mu.Unlock()

		route, _ := b.router.Command(name)
		req.Args = telegram.ExtractCommandArgs(msg)
		return b.run(ctx, name, route, req, true)
	}

	if msg.Text == "" {
		return nil
	}
	state, err := b.conv.Get(ctx, req.UserID)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to load conversation", logger.TelegramID(req.UserID), zap.Error(err))
	}
	req.Args = msg.Text
	return b.run(ctx, "text:"+string(state.Step), b.router.Input(state.Step), req, false)
}

// run applies access, rate limiting, recovery and metrics to one route.
// A new command abandons any pending dialog.
func (b *Bot) run(ctx context.Context, op string, route Route, req handler.Request, isCommand bool) error {
	log := logger.FromContext(ctx).With(logger.Operation(op), logger.TelegramID(req.UserID))

	access, err := b.access.Check(ctx, req.UserID, route.Policy)
	if err != nil {
		log.Error("access check failed", zap.Error(err))
		return b.router.Send(ctx, req.ChatID, handler.Plain(presenter.MsgInternalError))
	}
	if !access.ShouldContinue {
		return b.router.Send(ctx, req.ChatID, handler.Plain(access.ResponseMessage))
	}
	req.IsAdmin = access.IsAdmin
	req.Blocked = access.Blocked

	if isCommand && !route.Unlimited {
		limit, err := b.rateLimiter.Check(ctx, req.From)
		if err != nil {
			log.Error("rate limit check failed", zap.Error(err))
		} else if !limit.Allowed {
			return b.router.Send(ctx, req.ChatID, handler.Plain(limit.ResponseMessage))
		}
	}

	if isCommand {
		if err := b.conv.Clear(ctx, req.UserID); err != nil {
			log.Warn("failed to clear conversation", zap.Error(err))
		}
	}

	rc := b.commands.Start(op)
	var handlerErr error
	result := b.recovery.RecoverWithHandler(ctx, req.UserID, op, func() error {
		resp, err := route.Handler(ctx, req)
		handlerErr = err
		return b.router.Respond(ctx, req, op, resp, err)
	})
	if result.Recovered {
		rc.End(result.PanicInfo.Error)
		return b.router.Send(ctx, req.ChatID, handler.Plain(result.UserMessage))
	}
	rc.End(errors.Join(handlerErr, result.Err))
	return result.Err
}

func (b *Bot) handleCallbackQuery(ctx context.Context, cq *telegram.CallbackQuery) error {
	if cq.From == nil {
		return nil
	}
	log := logger.FromContext(ctx).With(logger.TelegramID(cq.From.ID), zap.String("data", cq.Data))

	answer := ""
	defer func() {
		if err := b.client.AnswerCallbackQuery(ctx, cq.ID, answer); err != nil {
			log.Debug("failed to answer callback query", zap.Error(err))
		}
	}()

	blocked, err := b.access.IsBlocked(ctx, cq.From.ID)
	if err != nil {
		log.Error("block check failed", zap.Error(err))
		return nil
	}
	if blocked {
		answer = presenter.MsgBlocked
		return nil
	}

	h, ok := b.router.Callback(cq.Data)
	if !ok {
		log.Debug("no handler for callback")
		return nil
	}

	req := handler.Request{UserID: cq.From.ID, ChatID: cq.From.ID, From: cq.From, Args: cq.Data, IsAdmin: b.access.IsAdmin(cq.From.ID)}
	if cq.Message != nil && cq.Message.Chat != nil {
		req.ChatID = cq.Message.Chat.ID
		req.MessageID = cq.Message.MessageID
	}

	rc := b.commands.Start("callback")
	var handlerErr error
	result := b.recovery.RecoverWithHandler(ctx, req.UserID, "callback:"+cq.Data, func() error {
		resp, err := h(ctx, req)
		handlerErr = err
		return b.router.Respond(ctx, req, "callback", resp, err)
	})
	if result.Recovered {
		rc.End(result.PanicInfo.Error)
		return b.router.Send(ctx, req.ChatID, handler.Plain(result.UserMessage))
	}
	rc.End(errors.Join(handlerErr, result.Err))
	return result.Err
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// GetStats returns a snapshot of the runtime statistics.
func (b *Bot) GetStats() map[string]interface{} {
	b.stats.mu.RLock()
	defer b.stats.mu.RUnlock()

	commandsCopy := make(map[string]int64, len(b.stats.CommandsCount))
	for k, v := range b.stats.CommandsCount {
		commandsCopy[k] = v
	}
	total, failed := b.commands.Totals()

	var uptime string
	if !b.stats.StartedAt.IsZero() {
		uptime = time.Since(b.stats.StartedAt).Round(time.Second).String()
	}

	return map[string]interface{}{
		"started_at":       b.stats.StartedAt,
		"uptime":           uptime,
		"updates_received": b.stats.UpdatesReceived,
		"updates_handled":  b.stats.UpdatesHandled,
		"errors_count":     b.stats.ErrorsCount,
		"commands_count":   commandsCopy,
		"handled_total":    total,
		"handled_failed":   failed,
		"running":          b.IsRunning(),
	}
}

// Router returns the bot's router.
func (b *Bot) Router() *Router {
	return b.router
}
