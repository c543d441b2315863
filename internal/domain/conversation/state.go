// Package conversation describes the multi-step dialog state of a chat user.
package conversation

import (
	"context"
	"time"
)

// Step is the input a user is expected to send next.
type Step string

const (
	StepNone                 Step = ""
	StepAwaitingNickname     Step = "awaiting_nickname"
	StepAwaitingFeedback     Step = "awaiting_feedback"
	StepAwaitingAnnouncement Step = "awaiting_announcement"
	StepAwaitingContact      Step = "awaiting_contact"
	StepEditing              Step = "editing"
)

// DefaultTTL bounds how long an unanswered prompt stays active.
const DefaultTTL = 15 * time.Minute

// State is the pending dialog of one user.
type State struct {
	Step Step `json:"step"`

	// CourseCode is set while editing.
	CourseCode string `json:"course_code,omitempty"`

	// InitialPresent and InitialAbsent snapshot the counters when editing began.
	InitialPresent int `json:"initial_present,omitempty"`
	InitialAbsent  int `json:"initial_absent,omitempty"`
}

// Store keeps dialog state per user. A missing entry is the zero State.
type Store interface {
	Get(ctx context.Context, userID int64) (State, error)
	Set(ctx context.Context, userID int64, s State) error
	Clear(ctx context.Context, userID int64) error
}
