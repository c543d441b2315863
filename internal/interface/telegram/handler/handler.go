// Package handler contains Telegram command handlers.
// Each handler follows the pattern: receive request → call application layer → format response.
package handler

import (
	"context"
	"fmt"

	"github.com/TayalAditya/TheAttendioBot/internal/application/command"
	"github.com/TayalAditya/TheAttendioBot/internal/application/query"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE
// ══════════════════════════════════════════════════════════════════════════════

// Request carries one command, callback or text input.
type Request struct {
	// UserID is the sender's Telegram ID.
	UserID int64

	// ChatID is the chat to answer in.
	ChatID int64

	// MessageID is the message that carried the input (the keyboard message for callbacks).
	MessageID int64

	// From is the sender.
	From *telegram.User

	// Args is the text after the command, the free text input, or the callback data.
	Args string

	// Contact is set for shared contacts.
	Contact *telegram.Contact

	// IsAdmin is set for the administrator.
	IsAdmin bool

	// Blocked is set when the sender is on the block list.
	Blocked bool
}

// FirstName returns the sender's first name.
func (r Request) FirstName() string {
	if r.From == nil {
		return ""
	}
	return r.From.FirstName
}

// Response is the reply to a request.
type Response struct {
	Text string

	// ParseMode is "", telegram.ParseModeHTML or telegram.ParseModeMarkdown.
	ParseMode string

	// Markup is the keyboard to attach.
	Markup telegram.ReplyMarkup

	// Edit replaces the originating message instead of sending a new one.
	Edit bool
}

// Plain builds a plain text response.
func Plain(text string) *Response {
	return &Response{Text: text}
}

// Markdown builds a legacy Markdown response.
func Markdown(text string) *Response {
	return &Response{Text: text, ParseMode: telegram.ParseModeMarkdown}
}

// HTML builds an HTML response.
func HTML(text string) *Response {
	return &Response{Text: text, ParseMode: telegram.ParseModeHTML}
}

// WithMarkup attaches a keyboard.
func (r *Response) WithMarkup(m telegram.ReplyMarkup) *Response {
	r.Markup = m
	return r
}

// AsEdit marks the response as an edit of the originating message.
func (r *Response) AsEdit() *Response {
	r.Edit = true
	return r
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Messenger sends messages to chats other than the requester's.
type Messenger interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	SendText(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
	SendHTML(ctx context.Context, chatID int64, html string) (*telegram.Message, error)
}

// Services groups the application handlers used by the Telegram handlers.
type Services struct {
	AddCourse        *command.AddCourseHandler
	DeleteCourse     *command.DeleteCourseHandler
	MarkAttendance   *command.MarkAttendanceHandler
	AdjustAttendance *command.AdjustAttendanceHandler
	VerifyUser       *command.VerifyUserHandler
	UpdateChatID     *command.UpdateChatIDHandler
	BlockUser        *command.BlockUserHandler

	Courses  *query.GetCoursesHandler
	SafeSkip *query.SafeSkipHandler
	Users    *query.UserDirectory

	// Streaks gates streak lines in attendance cards. nil shows them.
	Streaks func() bool
}

// ShowStreaks reports whether cards include streak lines.
func (s Services) ShowStreaks() bool {
	return s.Streaks == nil || s.Streaks()
}

// NewServices builds every application handler over the same stores.
func NewServices(cmd command.Dependencies, q query.Dependencies, blocks attendance.BlockList) Services {
	return Services{
		AddCourse:        command.NewAddCourseHandler(cmd),
		DeleteCourse:     command.NewDeleteCourseHandler(cmd),
		MarkAttendance:   command.NewMarkAttendanceHandler(cmd),
		AdjustAttendance: command.NewAdjustAttendanceHandler(cmd),
		VerifyUser:       command.NewVerifyUserHandler(cmd),
		UpdateChatID:     command.NewUpdateChatIDHandler(cmd),
		BlockUser:        command.NewBlockUserHandler(blocks, cmd),
		Courses:          query.NewGetCoursesHandler(q),
		SafeSkip:         query.NewSafeSkipHandler(q),
		Users:            query.NewUserDirectory(q),
	}
}

// Errorf wraps err for the router, which logs it and answers with a generic error text.
func Errorf(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
