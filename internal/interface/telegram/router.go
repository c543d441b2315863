package telegram

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/handler"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/middleware"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
	"github.com/TayalAditya/TheAttendioBot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTES
// ══════════════════════════════════════════════════════════════════════════════

// HandlerFunc handles one command, callback or text input.
type HandlerFunc func(ctx context.Context, req handler.Request) (*handler.Response, error)

// Route binds a handler to its access policy.
type Route struct {
	Handler HandlerFunc
	Policy  middleware.AccessPolicy

	// Unlimited skips the rate limiter.
	Unlimited bool
}

type patternRoute struct {
	match   func(data string) bool
	handler HandlerFunc
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// Maps commands, callback data and pending dialog steps to handlers, and
// delivers their responses.
// ══════════════════════════════════════════════════════════════════════════════

// Messenger is the part of the Telegram client used for replies.
type Messenger interface {
	handler.Messenger
	EditMessageText(ctx context.Context, params telegram.EditMessageParams) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error
}

// Router routes Telegram updates to handlers.
type Router struct {
	messenger Messenger
	logger    *zap.Logger

	mu        sync.RWMutex
	commands  map[string]Route
	prefixes  map[string]HandlerFunc
	patterns  []patternRoute
	inputs    map[conversation.Step]Route
	contact   Route
	unknown   Route
	textInput Route
}

// NewRouter creates a new router.
func NewRouter(messenger Messenger, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	noop := Route{
		Handler: func(context.Context, handler.Request) (*handler.Response, error) { return nil, nil },
		Policy:  middleware.AccessPolicy{Public: true},
	}
	return &Router{
		messenger: messenger,
		logger:    log,
		commands:  make(map[string]Route),
		prefixes:  make(map[string]HandlerFunc),
		inputs:    make(map[conversation.Step]Route),
		contact:   noop,
		unknown:   noop,
		textInput: noop,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION METHODS
// ══════════════════════════════════════════════════════════════════════════════

// RegisterCommand registers a handler for a command given without the leading "/".
func (r *Router) RegisterCommand(command string, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[command] = route
}

// RegisterCallbackPrefix registers a handler for callback data starting with prefix.
// The longest matching prefix wins.
func (r *Router) RegisterCallbackPrefix(prefix string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[prefix] = h
}

// RegisterCallbackPattern registers a handler for callback data no prefix matched.
// Patterns are tried in registration order.
func (r *Router) RegisterCallbackPattern(match func(data string) bool, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, patternRoute{match: match, handler: h})
}

// RegisterInput registers the handler of free text while a dialog waits at step.
func (r *Router) RegisterInput(step conversation.Step, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs[step] = route
}

// SetContactHandler sets the handler of shared contacts.
func (r *Router) SetContactHandler(route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contact = route
}

// SetUnknownCommand sets the handler of unregistered commands.
func (r *Router) SetUnknownCommand(route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unknown = route
}

// SetDefaultText sets the handler of text outside of any dialog.
func (r *Router) SetDefaultText(route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textInput = route
}

// ══════════════════════════════════════════════════════════════════════════════
// LOOKUP METHODS
// ══════════════════════════════════════════════════════════════════════════════

// Command returns the route of command, or the unknown command route.
func (r *Router) Command(command string) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.commands[command]
	if !ok {
		return r.unknown, false
	}
	return route, true
}

// Callback returns the handler of callback data.
func (r *Router) Callback(data string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched string
	var h HandlerFunc
	for prefix, ph := range r.prefixes {
		if strings.HasPrefix(data, prefix) && len(prefix) > len(matched) {
			matched, h = prefix, ph
		}
	}
	if h != nil {
		return h, true
	}
	for _, p := range r.patterns {
		if p.match(data) {
			return p.handler, true
		}
	}
	return nil, false
}

// Input returns the route of free text for a dialog step.
func (r *Router) Input(step conversation.Step) Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if route, ok := r.inputs[step]; ok && step != conversation.StepNone {
		return route
	}
	return r.textInput
}

// Contact returns the route of shared contacts.
func (r *Router) Contact() Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contact
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DELIVERY
// ══════════════════════════════════════════════════════════════════════════════

// Respond delivers what a handler returned. Handler errors are logged; an
// error without a response is answered with the generic error text.
func (r *Router) Respond(ctx context.Context, req handler.Request, op string, resp *handler.Response, err error) error {
	log := logger.FromContext(ctx)
	if err != nil {
		log.Error("handler failed", logger.Operation(op), logger.TelegramID(req.UserID), zap.Error(err))
	}
	if resp == nil {
		if err == nil {
			return nil
		}
		resp = handler.Plain(presenter.MsgInternalError)
	}

	if resp.Edit && req.MessageID != 0 {
		return r.edit(ctx, req, resp)
	}
	return r.Send(ctx, req.ChatID, resp)
}

// Send sends resp as a new message. A rejected Markdown or HTML payload is
// sent again as plain text.
func (r *Router) Send(ctx context.Context, chatID int64, resp *handler.Response) error {
	params := telegram.SendMessageParams{
		ChatID:      chatID,
		Text:        resp.Text,
		ParseMode:   resp.ParseMode,
		ReplyMarkup: resp.Markup,
	}
	_, err := r.messenger.SendMessage(ctx, params)
	if err != nil && resp.ParseMode != "" && telegram.IsParseError(err) {
		logger.FromContext(ctx).Warn("formatted message rejected, sending plain text",
			logger.ChatID(chatID), zap.Error(err))
		params.ParseMode = ""
		_, err = r.messenger.SendMessage(ctx, params)
	}
	return err
}

func (r *Router) edit(ctx context.Context, req handler.Request, resp *handler.Response) error {
	params := telegram.EditMessageParams{
		ChatID:    req.ChatID,
		MessageID: req.MessageID,
		Text:      resp.Text,
		ParseMode: resp.ParseMode,
	}
	if kb, ok := resp.Markup.(*telegram.InlineKeyboardMarkup); ok {
		params.Keyboard = kb
	}
	err := r.messenger.EditMessageText(ctx, params)
	if err != nil && resp.ParseMode != "" && telegram.IsParseError(err) {
		logger.FromContext(ctx).Warn("formatted edit rejected, editing as plain text",
			logger.ChatID(req.ChatID), zap.Error(err))
		params.ParseMode = ""
		err = r.messenger.EditMessageText(ctx, params)
	}
	return err
}
