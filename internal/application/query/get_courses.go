// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies groups the collaborators of query handlers.
type Dependencies struct {
	Store attendance.RecordStore

	// Advice computes classes needed / left. Zero value uses the 80% reference.
	Advice attendance.AdvicePolicy

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

func (d Dependencies) load(ctx context.Context) (attendance.Table, error) {
	return attendance.LoadTable(ctx, d.Store)
}

func (d Dependencies) courses(table attendance.Table, userID int64) []attendance.Course {
	rows := table.Courses(userID)
	out := make([]attendance.Course, 0, len(rows))
	for _, cr := range rows {
		if len(cr.Malformed) > 0 {
			d.Logger.Warn("malformed counters coerced to zero",
				zap.String("course_code", cr.Course.Code),
				zap.Int64("row", cr.Row.Index),
			)
		}
		out = append(out, cr.Course)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSES QUERY
// Backs /check_attendance and the course pickers.
// ══════════════════════════════════════════════════════════════════════════════

// GetCoursesQuery lists the courses of a user.
type GetCoursesQuery struct {
	UserID int64
}

// CourseDTO is a course snapshot with its advice attached.
type CourseDTO struct {
	Code        string  `json:"code"`
	Nickname    string  `json:"nickname"`
	Present     int     `json:"present"`
	Absent      int     `json:"absent"`
	Total       int     `json:"total"`
	Percentage  float64 `json:"percentage"`
	Streak      int     `json:"streak"`
	LastUpdated string  `json:"last_updated"`

	// ─────────────────────────────────────────────────────────────────────────
	// Advice
	// ─────────────────────────────────────────────────────────────────────────

	// ClassesNeeded is how many consecutive presents reach the advice threshold.
	ClassesNeeded int `json:"classes_needed"`

	// ClassesLeft is how many absences are tolerable while staying above it.
	ClassesLeft int `json:"classes_left"`

	// Below reports the course under the advice threshold.
	Below bool `json:"below"`

	// AdviceThreshold is the reference percentage used above.
	AdviceThreshold int `json:"advice_threshold"`
}

// NewCourseDTO builds a CourseDTO using policy p.
func NewCourseDTO(c attendance.Course, p attendance.AdvicePolicy) CourseDTO {
	adv := p.Advise(c.Present, c.Absent)
	return CourseDTO{
		Code:            c.Code,
		Nickname:        c.Nickname,
		Present:         c.Present,
		Absent:          c.Absent,
		Total:           c.Total(),
		Percentage:      c.Percentage(),
		Streak:          c.Streak,
		LastUpdated:     c.LastUpdated,
		ClassesNeeded:   adv.ClassesNeeded,
		ClassesLeft:     adv.ClassesLeft,
		Below:           adv.Below,
		AdviceThreshold: p.Threshold(),
	}
}

// GetCoursesHandler handles GetCoursesQuery.
type GetCoursesHandler struct {
	deps Dependencies
}

// NewGetCoursesHandler creates a new GetCoursesHandler.
func NewGetCoursesHandler(deps Dependencies) *GetCoursesHandler {
	return &GetCoursesHandler{deps: deps.withDefaults()}
}

// Handle returns the courses in storage order, or shared.ErrNoCourses.
func (h *GetCoursesHandler) Handle(ctx context.Context, q GetCoursesQuery) ([]CourseDTO, error) {
	if q.UserID <= 0 {
		return nil, fmt.Errorf("get_courses: %w", shared.ErrInvalidTelegramID)
	}
	table, err := h.deps.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_courses: %w", err)
	}

	courses := h.deps.courses(table, q.UserID)
	if len(courses) == 0 {
		return nil, shared.ErrNoCourses
	}
	out := make([]CourseDTO, len(courses))
	for i, c := range courses {
		out[i] = NewCourseDTO(c, h.deps.Advice)
	}
	return out, nil
}

// Get returns one course of the user.
func (h *GetCoursesHandler) Get(ctx context.Context, userID int64, code string) (CourseDTO, error) {
	table, err := h.deps.load(ctx)
	if err != nil {
		return CourseDTO{}, fmt.Errorf("get_course: %w", err)
	}
	cr, ok := table.FindCourse(userID, code)
	if !ok {
		return CourseDTO{}, shared.ErrCourseNotFound
	}
	return NewCourseDTO(cr.Course, h.deps.Advice), nil
}
