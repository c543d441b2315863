package attendance

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERCENTAGE
// ══════════════════════════════════════════════════════════════════════════════

// ComputePercentage returns present/(present+absent)*100, or 100 for an empty history.
// The value is not rounded; rounding is a presentation concern.
func ComputePercentage(present, absent int) float64 {
	total := present + absent
	if total == 0 {
		return 100.0
	}
	return float64(present) / float64(total) * 100
}

// ══════════════════════════════════════════════════════════════════════════════
// ADVICE
// ══════════════════════════════════════════════════════════════════════════════

// DefaultAdviceThresholdPercent is the reference percentage used by advice messages.
const DefaultAdviceThresholdPercent = 80

// AdvicePolicy projects how many classes a user must attend, or may miss,
// relative to an integer reference percentage.
type AdvicePolicy struct {
	// ThresholdPercent is clamped to 1..99.
	ThresholdPercent int
}

// DefaultAdvicePolicy returns the 80% policy.
func DefaultAdvicePolicy() AdvicePolicy {
	return AdvicePolicy{ThresholdPercent: DefaultAdviceThresholdPercent}
}

func (p AdvicePolicy) percent() int {
	switch {
	case p.ThresholdPercent <= 0:
		return DefaultAdviceThresholdPercent
	case p.ThresholdPercent >= 100:
		return 99
	default:
		return p.ThresholdPercent
	}
}

// ClassesNeeded is the minimum number of consecutive present marks that brings
// the percentage up to the threshold. At 80% this is max(0, 4a-p).
func (p AdvicePolicy) ClassesNeeded(present, absent int) int {
	t := p.percent()
	deficit := t*(present+absent) - 100*present
	if deficit <= 0 {
		return 0
	}
	d := 100 - t
	return (deficit + d - 1) / d
}

// ClassesLeft is the maximum number of consecutive absences that keeps the
// percentage at or above the threshold. At 80% this is max(0, floor((p-4a)/4)).
func (p AdvicePolicy) ClassesLeft(present, absent int) int {
	t := p.percent()
	surplus := 100*present - t*(present+absent)
	if surplus <= 0 {
		return 0
	}
	return surplus / t
}

// Below reports whether the percentage is under the reference threshold.
func (p AdvicePolicy) Below(present, absent int) bool {
	return ComputePercentage(present, absent) < float64(p.percent())
}

// Threshold returns the effective reference percentage.
func (p AdvicePolicy) Threshold() int {
	return p.percent()
}

// Advice bundles both projections for a course.
type Advice struct {
	ClassesNeeded int
	ClassesLeft   int
	Below         bool
}

// Advise computes the advice for the given counts.
func (p AdvicePolicy) Advise(present, absent int) Advice {
	return Advice{
		ClassesNeeded: p.ClassesNeeded(present, absent),
		ClassesLeft:   p.ClassesLeft(present, absent),
		Below:         p.Below(present, absent),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SAFE SKIP
// ══════════════════════════════════════════════════════════════════════════════

// SafeToSkip reports whether one more absence keeps the course at or above threshold.
// An empty history projects to 0%, so it is only safe for a non-positive threshold.
func SafeToSkip(present, absent int, threshold float64) bool {
	projected := float64(present) / float64(present+absent+1) * 100
	return projected >= threshold
}

// SafeSkip filters courses that can absorb one more absence, preserving order.
func SafeSkip(courses []Course, threshold float64) SafeSkipList {
	list := make(SafeSkipList, 0, len(courses))
	for _, c := range courses {
		if SafeToSkip(c.Present, c.Absent, threshold) {
			list = append(list, SafeSkipEntry{
				Nickname:   c.Nickname,
				Percentage: c.Percentage(),
			})
		}
	}
	return list
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Mark applies a present or absent mark to c.
func Mark(c Course, present bool, now time.Time) AttendanceResult {
	res := AttendanceResult{
		CourseCode:       c.Code,
		Nickname:         c.Nickname,
		PresentBefore:    c.Present,
		AbsentBefore:     c.Absent,
		PresentAfter:     c.Present,
		AbsentAfter:      c.Absent,
		PercentageBefore: c.Percentage(),
		UpdatedAt:        now,
	}
	if present {
		res.PresentAfter++
		res.Streak = c.Streak + 1
	} else {
		res.AbsentAfter++
		res.Streak = 0
	}
	res.PercentageAfter = ComputePercentage(res.PresentAfter, res.AbsentAfter)
	return res
}

// SetManual overwrites the counts of c and keeps its streak.
func SetManual(c Course, present, absent int, now time.Time) AttendanceResult {
	return AttendanceResult{
		CourseCode:       c.Code,
		Nickname:         c.Nickname,
		PresentBefore:    c.Present,
		AbsentBefore:     c.Absent,
		PresentAfter:     present,
		AbsentAfter:      absent,
		Streak:           c.Streak,
		PercentageBefore: c.Percentage(),
		PercentageAfter:  ComputePercentage(present, absent),
		UpdatedAt:        now,
	}
}
