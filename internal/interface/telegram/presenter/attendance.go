package presenter

import (
	"fmt"
	"math"
	"strings"

	"github.com/TayalAditya/TheAttendioBot/internal/application/query"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE PRESENTER
// Texts use Telegram's legacy Markdown unless noted otherwise.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressBarLength is the number of cells of the attendance bar.
const ProgressBarLength = 20

// ProgressBar renders "[████----]" with the present share filled.
// It returns "" when no class was recorded.
func ProgressBar(present, total int) string {
	if total <= 0 {
		return ""
	}
	filled := int(math.RoundToEven(float64(ProgressBarLength*present) / float64(total)))
	if filled > ProgressBarLength {
		filled = ProgressBarLength
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", ProgressBarLength-filled) + "]"
}

func statusEmoji(c query.CourseDTO) string {
	if c.Below {
		return "⚠️"
	}
	return "✅"
}

// FormatStatus renders the /check_attendance card of every course.
func FormatStatus(courses []query.CourseDTO) string {
	var b strings.Builder
	b.WriteString("*Attendance Status:*\n")
	for i, c := range courses {
		lastUpdated := c.LastUpdated
		if lastUpdated == "" {
			lastUpdated = "Never"
		}
		fmt.Fprintf(&b, "*%d. %s:* %s\n", i+1, c.Nickname, statusEmoji(c))
		fmt.Fprintf(&b, "  *Present:* %d ✅\n", c.Present)
		fmt.Fprintf(&b, "  *Absent:* %d ❌\n", c.Absent)
		fmt.Fprintf(&b, "  *Total Classes:* %d\n", c.Total)
		fmt.Fprintf(&b, "  *Attendance:* %.2f%%\n", c.Percentage)
		fmt.Fprintf(&b, "  *Last Updated:* %s\n", lastUpdated)

		if c.Streak > 0 {
			fmt.Fprintf(&b, "  🔥 You're on a %d-class streak! Keep it up!\n", c.Streak)
		}

		if c.ClassesNeeded > 0 {
			fmt.Fprintf(&b, "  *Classes Needed:* You need to be present in at least %d more classes to cross the %d%% threshold.\n",
				c.ClassesNeeded, c.AdviceThreshold)
		} else {
			b.WriteString("  You are in the safe zone. Keep up the good work! ✅\n")
			if c.ClassesLeft >= 1 {
				fmt.Fprintf(&b, "  You can leave %d more classes & still cross the %d%% threshold.\n", c.ClassesLeft, c.AdviceThreshold)
			} else {
				b.WriteString("  Be Careful: Leaving even 1 more class can put you in low attendance.\n")
			}
		}

		if bar := ProgressBar(c.Present, c.Total); bar != "" {
			fmt.Fprintf(&b, "  📈 %s %.0f%%\n\n", bar, c.Percentage)
		}
	}
	return b.String()
}

// FormatMarkResult renders the outcome of a Present/Absent mark. after is the
// course snapshot once the mark was stored.
func FormatMarkResult(res attendance.AttendanceResult, after query.CourseDTO) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ *Attendance marked for %s*\n\n", res.Nickname)

	if res.PresentAfter != res.PresentBefore {
		fmt.Fprintf(&b, "*Present:* %d → %d ✅\n", res.PresentBefore, res.PresentAfter)
		fmt.Fprintf(&b, "*Absent:* %d ❌\n", res.AbsentBefore)
	} else {
		fmt.Fprintf(&b, "*Present:* %d ✅\n", res.PresentBefore)
		fmt.Fprintf(&b, "*Absent:* %d → %d ❌\n", res.AbsentBefore, res.AbsentAfter)
	}

	fmt.Fprintf(&b, "*Total Classes:* %d\n", res.PresentAfter+res.AbsentAfter)
	fmt.Fprintf(&b, "*Attendance:* % .2f%% → %.2f%%\n", res.PercentageBefore, res.PercentageAfter)

	if res.Streak > 0 {
		fmt.Fprintf(&b, "🔥 You're on a %d-day streak for this course! Keep it up!\n", res.Streak)
	}

	switch {
	case after.Below:
		fmt.Fprintf(&b, "\nYou need to attend *at least %d more* classes to cross the %d%% threshold.",
			after.ClassesNeeded, after.AdviceThreshold)
	case after.ClassesLeft >= 1:
		fmt.Fprintf(&b, "\nYou can leave *%d more* classes & still cross the %d%% threshold.",
			after.ClassesLeft, after.AdviceThreshold)
	default:
		b.WriteString("\nBe careful: Leaving even 1 more class can put you in low attendance.")
	}
	return b.String()
}

// ══════════════════════════════════════════════════════════════════════════════
// EDIT SCREENS
// Plain text while editing, Markdown for the summary.
// ══════════════════════════════════════════════════════════════════════════════

// FormatEditStart is the first edit screen of a course.
func FormatEditStart(nickname string, present, absent int) string {
	return fmt.Sprintf("Current Attendance for %s:\nPresent: %d\nAbsent: %d\n\nChoose an option to edit:",
		nickname, present, absent)
}

// FormatEditProgress is shown after every ➖/➕.
func FormatEditProgress(nickname string, present, absent int) string {
	return fmt.Sprintf("Editing Attendance for %s:\nPresent: %d\nAbsent: %d\n\nContinue editing or click '✅ Done':",
		nickname, present, absent)
}

// FormatEditDone summarizes an edit session. Arrows appear only on changed counters.
func FormatEditDone(nickname string, initialPresent, initialAbsent, present, absent int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ *Attendance updated for %s*\n\n", nickname)

	if initialPresent != present {
		fmt.Fprintf(&b, "*Present:* %d → %d ✅\n", initialPresent, present)
	} else {
		fmt.Fprintf(&b, "*Present:* %d ✅\n", present)
	}
	if initialAbsent != absent {
		fmt.Fprintf(&b, "*Absent:* %d → %d ❌\n", initialAbsent, absent)
	} else {
		fmt.Fprintf(&b, "*Absent:* %d ❌\n", absent)
	}

	fmt.Fprintf(&b, "*Total Classes:* %d\n", present+absent)
	fmt.Fprintf(&b, "*Attendance:* % .2f%% → %.2f%%",
		attendance.ComputePercentage(initialPresent, initialAbsent),
		attendance.ComputePercentage(present, absent))
	return b.String()
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE LISTS
// ══════════════════════════════════════════════════════════════════════════════

// FormatCourseList numbers the nicknames, one per line.
func FormatCourseList(courses []attendance.Course) string {
	var b strings.Builder
	for i, c := range courses {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Nickname)
	}
	return b.String()
}

// FormatCourseAdded confirms /add_course and lists the registered courses.
func FormatCourseAdded(nickname string, courses []attendance.Course) string {
	return fmt.Sprintf("Course '%s' added successfully.\n\n📋 *Your registered courses:*\n%s",
		nickname, FormatCourseList(courses))
}

// FormatCourseDeleted confirms a deletion and lists what is left.
func FormatCourseDeleted(nickname string, remaining []attendance.Course) string {
	text := fmt.Sprintf("Course '%s' deleted successfully.\n\n", nickname)
	if len(remaining) == 0 {
		return text + "You have no courses registered. Use /add_course to add a new course."
	}
	return text + "📋 *Your remaining courses:*\n" + FormatCourseList(remaining)
}

// FormatSafeSkip renders /manage_absences (plain text).
func FormatSafeSkip(list attendance.SafeSkipList) string {
	if len(list) == 0 {
		return "Sorry, you can't skip any class safely right now."
	}
	var b strings.Builder
	b.WriteString("You can afford to skip these classes today:\n")
	for _, e := range list {
		fmt.Fprintf(&b, "- %s (%.0f%%)\n", e.Nickname, e.Percentage)
	}
	return b.String()
}
