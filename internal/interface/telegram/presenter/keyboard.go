// Package presenter formats attendance data for Telegram display.
// Presenters turn query DTOs and command results into message texts
// and inline keyboards.
package presenter

import (
	"strings"

	"github.com/TayalAditya/TheAttendioBot/internal/application/query"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
)

// ══════════════════════════════════════════════════════════════════════════════
// CALLBACK DATA
// Course codes never contain ':' so "<prefix><code>" splits unambiguously.
// ══════════════════════════════════════════════════════════════════════════════

const (
	CallbackMark            = "mark:"
	CallbackDeleteConfirm   = "delete_confirm:"
	CallbackDelete          = "delete:"
	CallbackCancelDelete    = "cancel_delete"
	CallbackEditAttendance  = "edit_attendance:"
	CallbackIncreasePresent = "increase_present:"
	CallbackDecreasePresent = "decrease_present:"
	CallbackIncreaseAbsent  = "increase_absent:"
	CallbackDecreaseAbsent  = "decrease_absent:"
	CallbackDone            = "done:"
)

// MarkChoiceData is the callback data of the Present/Absent buttons.
func MarkChoiceData(code string, present bool) string {
	if present {
		return code + ":1"
	}
	return code + ":0"
}

// ParseMarkChoice splits "<code>:1|0". ok is false for anything else.
func ParseMarkChoice(data string) (code string, present bool, ok bool) {
	i := strings.LastIndexByte(data, ':')
	if i <= 0 || i != len(data)-2 {
		return "", false, false
	}
	switch data[i+1] {
	case '1':
		return data[:i], true, true
	case '0':
		return data[:i], false, true
	}
	return "", false, false
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYBOARD BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// KeyboardBuilder builds inline keyboards for the handlers.
type KeyboardBuilder struct{}

// NewKeyboardBuilder creates a new KeyboardBuilder.
func NewKeyboardBuilder() *KeyboardBuilder {
	return &KeyboardBuilder{}
}

// coursePicker lays out one course per row.
func (b *KeyboardBuilder) coursePicker(courses []query.CourseDTO, label, prefix string) *telegram.InlineKeyboardMarkup {
	kb := telegram.NewKeyboard()
	for _, c := range courses {
		if c.Code == "" {
			continue
		}
		kb.Row(telegram.Button(label+c.Nickname, prefix+c.Code))
	}
	return kb.Build()
}

// MarkPicker lists the courses for /mark_attendance.
func (b *KeyboardBuilder) MarkPicker(courses []query.CourseDTO) *telegram.InlineKeyboardMarkup {
	return b.coursePicker(courses, "", CallbackMark)
}

// MarkChoice offers Present and Absent for one course.
func (b *KeyboardBuilder) MarkChoice(code string) *telegram.InlineKeyboardMarkup {
	return telegram.NewKeyboard().
		Row(telegram.Button("Present", MarkChoiceData(code, true))).
		Row(telegram.Button("Absent", MarkChoiceData(code, false))).
		Build()
}

// DeletePicker lists the courses for /delete_course.
func (b *KeyboardBuilder) DeletePicker(courses []query.CourseDTO) *telegram.InlineKeyboardMarkup {
	return b.coursePicker(courses, "Delete ", CallbackDeleteConfirm)
}

// DeleteConfirm asks to confirm a deletion.
func (b *KeyboardBuilder) DeleteConfirm(code string) *telegram.InlineKeyboardMarkup {
	return telegram.NewKeyboard().
		Row(
			telegram.Button("Yes, Delete", CallbackDelete+code),
			telegram.Button("No, Cancel", CallbackCancelDelete),
		).
		Build()
}

// EditPicker lists the courses for /edit_attendance.
func (b *KeyboardBuilder) EditPicker(courses []query.CourseDTO) *telegram.InlineKeyboardMarkup {
	return b.coursePicker(courses, "Edit Attendance ", CallbackEditAttendance)
}

// EditControls are the ➖/➕ buttons of the edit screen.
func (b *KeyboardBuilder) EditControls(code string) *telegram.InlineKeyboardMarkup {
	return telegram.NewKeyboard().
		Row(
			telegram.Button("Present ➖", CallbackDecreasePresent+code),
			telegram.Button("Present ➕", CallbackIncreasePresent+code),
		).
		Row(
			telegram.Button("Absent ➖", CallbackDecreaseAbsent+code),
			telegram.Button("Absent ➕", CallbackIncreaseAbsent+code),
		).
		Row(telegram.Button("✅ Done", CallbackDone+code)).
		Build()
}

// ShareContact is the reply keyboard requesting the phone number.
func (b *KeyboardBuilder) ShareContact() *telegram.ReplyKeyboardMarkup {
	return telegram.ContactKeyboard("Share Contact")
}
