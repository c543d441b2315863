package command

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BLOCK / UNBLOCK COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// BlockUserCommand bars a user from the bot.
type BlockUserCommand struct {
	UserID   int64
	Name     string
	Username string
	Reason   string

	// Automatic is set by the rate limiter; the admin path leaves it false.
	Automatic bool
}

// BlockUserHandler handles BlockUserCommand and unblocking.
type BlockUserHandler struct {
	blocks attendance.BlockList
	deps   Dependencies
}

// NewBlockUserHandler creates a new BlockUserHandler. Only Publisher and
// Logger of deps are used.
func NewBlockUserHandler(blocks attendance.BlockList, deps Dependencies) *BlockUserHandler {
	return &BlockUserHandler{blocks: blocks, deps: deps.withDefaults()}
}

// Handle blocks the user and publishes UserBlockedEvent.
func (h *BlockUserHandler) Handle(ctx context.Context, cmd BlockUserCommand) error {
	if cmd.UserID <= 0 {
		return fmt.Errorf("block_user: %w", shared.ErrInvalidTelegramID)
	}
	if err := h.blocks.Block(ctx, cmd.UserID); err != nil {
		return fmt.Errorf("block_user: %w", err)
	}

	h.deps.Logger.Warn("user blocked",
		zap.Int64("telegram_id", cmd.UserID),
		zap.String("reason", cmd.Reason),
		zap.Bool("automatic", cmd.Automatic),
	)
	h.deps.publish(shared.NewUserBlockedEvent(cmd.UserID, cmd.Name, cmd.Username, cmd.Reason, cmd.Automatic))
	return nil
}

// Unblock lifts a block.
func (h *BlockUserHandler) Unblock(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("unblock_user: %w", shared.ErrInvalidTelegramID)
	}
	if err := h.blocks.Unblock(ctx, userID); err != nil {
		return fmt.Errorf("unblock_user: %w", err)
	}
	h.deps.Logger.Info("user unblocked", zap.Int64("telegram_id", userID))
	return nil
}

// IsBlocked reports whether userID is blocked.
func (h *BlockUserHandler) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	return h.blocks.IsBlocked(ctx, userID)
}
