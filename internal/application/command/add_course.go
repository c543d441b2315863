package command

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD COURSE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// MaxNicknameLength caps nicknames in characters. Byte length is bounded
// separately by attendance.CourseCodeFits.
const MaxNicknameLength = 30

var validate = validator.New()

// AddCourseCommand registers a new course for a user.
type AddCourseCommand struct {
	UserID int64 `validate:"gt=0"`

	// UserName is used only when the user has no row yet.
	UserName string

	// Nickname is trimmed before validation.
	Nickname string `validate:"required,excludesall=:"`
}

// Validate validates the command.
func (c AddCourseCommand) Validate() error {
	if c.UserID <= 0 {
		return shared.ErrInvalidTelegramID
	}
	c.Nickname = strings.TrimSpace(c.Nickname)
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrInvalidNickname, err.Error())
	}
	if n := utf8.RuneCountInString(c.Nickname); n > MaxNicknameLength {
		return fmt.Errorf("%w: %d characters, at most %d", shared.ErrInvalidNickname, n, MaxNicknameLength)
	}
	if code := attendance.CourseCode(c.UserID, c.Nickname); !attendance.CourseCodeFits(code) {
		return fmt.Errorf("%w: course code is %d bytes, callback data allows %d",
			shared.ErrInvalidNickname, len(code), attendance.MaxCallbackData-attendance.LongestCallbackPrefix)
	}
	return nil
}

// AddCourseResult contains the added course and the updated list.
type AddCourseResult struct {
	Course  attendance.Course
	Courses []attendance.Course
}

// AddCourseHandler handles AddCourseCommand.
type AddCourseHandler struct {
	deps Dependencies
}

// NewAddCourseHandler creates a new AddCourseHandler.
func NewAddCourseHandler(deps Dependencies) *AddCourseHandler {
	return &AddCourseHandler{deps: deps.withDefaults()}
}

// Handle executes the add course command.
func (h *AddCourseHandler) Handle(ctx context.Context, cmd AddCourseCommand) (*AddCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("add_course: %w", err)
	}
	nickname := strings.TrimSpace(cmd.Nickname)

	unlock, err := h.deps.lock(ctx, attendance.UserLockKey(cmd.UserID))
	if err != nil {
		return nil, fmt.Errorf("add_course: %w", err)
	}
	defer unlock()

	table, err := h.deps.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("add_course: %w", err)
	}
	if table.HasNickname(cmd.UserID, nickname) {
		return nil, shared.ErrDuplicateNickname
	}

	user, ok := table.FindUser(cmd.UserID)
	if !ok {
		user = attendance.User{ID: cmd.UserID, Name: cmd.UserName}
	}
	course := attendance.Course{
		Code:     attendance.CourseCode(cmd.UserID, nickname),
		Nickname: nickname,
		OwnerID:  cmd.UserID,
	}
	if err := h.deps.Store.AppendRow(ctx, attendance.EncodeCourse(user, course)); err != nil {
		return nil, fmt.Errorf("add_course: %w", shared.StoreError("AppendRow", err))
	}

	courses := make([]attendance.Course, 0, len(table.Courses(cmd.UserID))+1)
	for _, cr := range table.Courses(cmd.UserID) {
		courses = append(courses, cr.Course)
	}
	courses = append(courses, course)

	h.deps.Logger.Info("course added",
		zap.Int64("telegram_id", cmd.UserID),
		zap.String("course_code", course.Code),
	)
	h.deps.publish(shared.NewCourseAddedEvent(cmd.UserID, course.Code, nickname))

	return &AddCourseResult{Course: course, Courses: courses}, nil
}
