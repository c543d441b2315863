package callback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TayalAditya/TheAttendioBot/internal/application/command"
	"github.com/TayalAditya/TheAttendioBot/internal/application/query"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/attendance"
	"github.com/TayalAditya/TheAttendioBot/internal/domain/conversation"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/persistence/memory"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/handler"
	"github.com/TayalAditya/TheAttendioBot/internal/interface/telegram/presenter"
	"github.com/TayalAditya/TheAttendioBot/pkg/timeutil"
)

const userID int64 = 1001

func setup(t *testing.T) (*memory.RecordStore, *memory.ConversationStore, handler.Services) {
	t.Helper()
	store := memory.NewRecordStore()
	now := time.Date(2024, time.October, 14, 9, 30, 0, 0, timeutil.KolkataTZ)
	svc := handler.NewServices(
		command.Dependencies{
			Store:    store,
			Locker:   memory.NewLocker(),
			Location: timeutil.KolkataTZ,
			Clock:    func() time.Time { return now },
		},
		query.Dependencies{Store: store, Advice: attendance.DefaultAdvicePolicy()},
		memory.NewBlockList(),
	)
	return store, memory.NewConversationStore(conversation.DefaultTTL), svc
}

func seed(store *memory.RecordStore, nick string, present, absent int) string {
	u := attendance.User{ID: userID, Name: "Asha", ChatID: userID, Phone: "+911234567890"}
	code := attendance.CourseCode(userID, nick)
	store.Seed(attendance.EncodeCourse(u, attendance.Course{
		Code: code, Nickname: nick, Present: present, Absent: absent,
	}))
	return code
}

func req(data string) handler.Request {
	return handler.Request{UserID: userID, ChatID: userID, MessageID: 9, Args: data}
}

func buttons(t *testing.T, r *handler.Response) []string {
	t.Helper()
	kb, ok := r.Markup.(*telegram.InlineKeyboardMarkup)
	require.True(t, ok)
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.CallbackData)
		}
	}
	return out
}

func TestMark_ChooseAndRecord(t *testing.T) {
	store, _, svc := setup(t)
	code := seed(store, "OS", 3, 1)
	h := NewMarkHandler(svc, presenter.NewKeyboardBuilder())
	ctx := context.Background()

	resp, err := h.Choose(ctx, req(presenter.CallbackMark+code))
	require.NoError(t, err)
	assert.True(t, resp.Edit)
	assert.Equal(t, "Mark attendance for 1001-OS:", resp.Text)
	assert.Equal(t, []string{code + ":1", code + ":0"}, buttons(t, resp))

	resp, err = h.Record(ctx, req(code+":1"))
	require.NoError(t, err)
	assert.True(t, resp.Edit)
	assert.Equal(t, telegram.ParseModeMarkdown, resp.ParseMode)
	assert.Contains(t, resp.Text, "*Present:* 3 → 4 ✅")
	assert.Contains(t, resp.Text, "*Absent:* 1 ❌")
}

func TestMark_UnknownCourse(t *testing.T) {
	_, _, svc := setup(t)
	h := NewMarkHandler(svc, presenter.NewKeyboardBuilder())

	resp, err := h.Record(context.Background(), req("1001-Gone:0"))
	require.NoError(t, err)
	assert.Equal(t, presenter.MsgCourseNotFound, resp.Text)
}

func TestDelete_ConfirmDeleteCancel(t *testing.T) {
	store, _, svc := setup(t)
	code := seed(store, "OS", 0, 0)
	seed(store, "DBMS", 0, 0)
	h := NewDeleteHandler(svc, presenter.NewKeyboardBuilder())
	ctx := context.Background()

	resp, err := h.Confirm(ctx, req(presenter.CallbackDeleteConfirm+code))
	require.NoError(t, err)
	assert.Equal(t, "Are you sure you want to delete course 1001-OS?", resp.Text)
	assert.Equal(t, []string{presenter.CallbackDelete + code, presenter.CallbackCancelDelete}, buttons(t, resp))

	resp, err = h.Cancel(ctx, req(presenter.CallbackCancelDelete))
	require.NoError(t, err)
	assert.Equal(t, presenter.MsgDeleteCancelled, resp.Text)

	resp, err = h.Delete(ctx, req(presenter.CallbackDelete+code))
	require.NoError(t, err)
	assert.Equal(t, "Course 'OS' deleted successfully.\n\n📋 *Your remaining courses:*\n1. DBMS\n", resp.Text)

	resp, err = h.Delete(ctx, req(presenter.CallbackDelete+code))
	require.NoError(t, err)
	assert.Equal(t, presenter.MsgCourseNotFound, resp.Text)
}

func TestEdit_Session(t *testing.T) {
	store, conv, svc := setup(t)
	code := seed(store, "OS", 2, 1)
	h := NewEditHandler(svc, conv, presenter.NewKeyboardBuilder(), nil)
	ctx := context.Background()

	resp, err := h.Start(ctx, req(presenter.CallbackEditAttendance+code))
	require.NoError(t, err)
	assert.Equal(t, "Current Attendance for OS:\nPresent: 2\nAbsent: 1\n\nChoose an option to edit:", resp.Text)
	assert.Len(t, buttons(t, resp), 5)

	state, err := conv.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, conversation.StepEditing, state.Step)
	assert.Equal(t, 2, state.InitialPresent)

	for _, data := range []string{
		presenter.CallbackIncreasePresent + code,
		presenter.CallbackIncreasePresent + code,
		presenter.CallbackDecreaseAbsent + code,
		presenter.CallbackDecreaseAbsent + code,
	} {
		_, err := h.Step(ctx, req(data))
		require.NoError(t, err)
	}

	resp, err = h.Step(ctx, req(presenter.CallbackIncreaseAbsent+code))
	require.NoError(t, err)
	assert.Equal(t, "Editing Attendance for OS:\nPresent: 4\nAbsent: 1\n\nContinue editing or click '✅ Done':", resp.Text)

	resp, err = h.Done(ctx, req(presenter.CallbackDone+code))
	require.NoError(t, err)
	assert.Equal(t, presenter.FormatEditDone("OS", 2, 1, 4, 1), resp.Text)

	state, err = conv.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, conversation.StepNone, state.Step)
}

func TestEdit_DoneWithoutSession(t *testing.T) {
	store, conv, svc := setup(t)
	code := seed(store, "OS", 2, 1)
	h := NewEditHandler(svc, conv, presenter.NewKeyboardBuilder(), nil)

	resp, err := h.Done(context.Background(), req(presenter.CallbackDone+code))
	require.NoError(t, err)
	assert.Equal(t, presenter.FormatEditDone("OS", 2, 1, 2, 1), resp.Text)
}

func TestSplitAction(t *testing.T) {
	prefix, code, ok := splitAction("increase_absent:1001-OS")
	assert.True(t, ok)
	assert.Equal(t, presenter.CallbackIncreaseAbsent, prefix)
	assert.Equal(t, "1001-OS", code)

	_, _, ok = splitAction("done:")
	assert.False(t, ok)
}
