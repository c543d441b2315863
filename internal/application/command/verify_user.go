package command

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY USER COMMAND
// Registers a user from a shared contact, or attaches the phone to an existing one.
// ══════════════════════════════════════════════════════════════════════════════

// VerifyUserCommand carries a contact shared by the user themselves.
type VerifyUserCommand struct {
	UserID   int64
	Name     string
	Username string
	ChatID   int64
	Phone    string
}

// Validate validates the command.
func (c VerifyUserCommand) Validate() error {
	if c.UserID <= 0 {
		return shared.ErrInvalidTelegramID
	}
	if shared.NormalizePhone(c.Phone).IsEmpty() {
		return shared.ErrPhoneNotVerified
	}
	return nil
}

// VerifyUserResult reports what happened.
type VerifyUserResult struct {
	User attendance.User

	// NewUser is true when no row existed and a user row was appended.
	NewUser bool
}

// VerifyUserHandler handles VerifyUserCommand.
type VerifyUserHandler struct {
	deps Dependencies
}

// NewVerifyUserHandler creates a new VerifyUserHandler.
func NewVerifyUserHandler(deps Dependencies) *VerifyUserHandler {
	return &VerifyUserHandler{deps: deps.withDefaults()}
}

// Handle executes the verify user command.
func (h *VerifyUserHandler) Handle(ctx context.Context, cmd VerifyUserCommand) (*VerifyUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("verify_user: %w", err)
	}
	phone := shared.NormalizePhone(cmd.Phone).String()

	unlock, err := h.deps.lock(ctx, attendance.UserLockKey(cmd.UserID))
	if err != nil {
		return nil, fmt.Errorf("verify_user: %w", err)
	}
	defer unlock()

	table, err := h.deps.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify_user: %w", err)
	}

	res := &VerifyUserResult{}
	rows := table.UserRows(cmd.UserID)
	if len(rows) == 0 {
		res.NewUser = true
		res.User = attendance.User{ID: cmd.UserID, Name: cmd.Name, ChatID: cmd.ChatID, Phone: phone}
		if err := h.deps.Store.AppendRow(ctx, attendance.EncodeUser(res.User, h.deps.stamp(h.deps.now()))); err != nil {
			return nil, fmt.Errorf("verify_user: %w", shared.StoreError("AppendRow", err))
		}
	} else {
		res.User, _ = table.FindUser(cmd.UserID)
		res.User.Phone = phone
		cells := []cell{{field: attendance.FieldPhone, value: phone}}
		if cmd.ChatID != 0 {
			res.User.ChatID = cmd.ChatID
			cells = append(cells, cell{field: attendance.FieldChatID, value: strconv.FormatInt(cmd.ChatID, 10)})
		}
		for _, r := range rows {
			if err := h.deps.write(ctx, "VerifyUser", r.Index, cells...); err != nil {
				return nil, fmt.Errorf("verify_user: %w", err)
			}
		}
	}

	h.deps.Logger.Info("user verified",
		zap.Int64("telegram_id", cmd.UserID),
		zap.Bool("new_user", res.NewUser),
	)
	h.deps.publish(shared.NewUserVerifiedEvent(cmd.UserID, cmd.Name, cmd.Username, phone, res.NewUser))

	return res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE CHAT ID COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateChatIDCommand stores the chat a user last talked from.
type UpdateChatIDCommand struct {
	UserID int64
	ChatID int64
}

// UpdateChatIDResult reports whether the user was known.
type UpdateChatIDResult struct {
	Known   bool
	Changed bool
}

// UpdateChatIDHandler handles UpdateChatIDCommand.
type UpdateChatIDHandler struct {
	deps Dependencies
}

// NewUpdateChatIDHandler creates a new UpdateChatIDHandler.
func NewUpdateChatIDHandler(deps Dependencies) *UpdateChatIDHandler {
	return &UpdateChatIDHandler{deps: deps.withDefaults()}
}

// Handle writes the chat id on every row of the user whose value differs.
// Unknown users are not registered here; registration requires a contact.
func (h *UpdateChatIDHandler) Handle(ctx context.Context, cmd UpdateChatIDCommand) (*UpdateChatIDResult, error) {
	if cmd.UserID <= 0 {
		return nil, fmt.Errorf("update_chat_id: %w", shared.ErrInvalidTelegramID)
	}

	unlock, err := h.deps.lock(ctx, attendance.UserLockKey(cmd.UserID))
	if err != nil {
		return nil, fmt.Errorf("update_chat_id: %w", err)
	}
	defer unlock()

	table, err := h.deps.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("update_chat_id: %w", err)
	}
	rows := table.UserRows(cmd.UserID)
	res := &UpdateChatIDResult{Known: len(rows) > 0}

	value := strconv.FormatInt(cmd.ChatID, 10)
	for _, r := range rows {
		if r.Get(attendance.FieldChatID) == value {
			continue
		}
		if err := h.deps.write(ctx, "UpdateChatID", r.Index, cell{field: attendance.FieldChatID, value: value}); err != nil {
			return nil, fmt.Errorf("update_chat_id: %w", err)
		}
		res.Changed = true
	}
	if res.Changed {
		h.deps.Logger.Info("chat id updated", zap.Int64("telegram_id", cmd.UserID), zap.Int64("chat_id", cmd.ChatID))
	}
	return res, nil
}
