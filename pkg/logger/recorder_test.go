package logger

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecorder_CapturesEntriesWithFields(t *testing.T) {
	rec := NewRecorder(10)
	l := zap.New(rec).With(Component("test"))

	l.Info("attendance marked", TelegramID(42))
	l.Debug("dropped below info")

	got := rec.Since(time.Now().Add(-time.Minute))
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Text, "INFO")
	assert.Contains(t, got[0].Text, "attendance marked")
	assert.Contains(t, got[0].Text, `"component": "test"`)
	assert.Contains(t, got[0].Text, `"telegram_id": 42`)
}

func TestRecorder_RingKeepsNewest(t *testing.T) {
	rec := NewRecorder(3)
	l := zap.New(rec)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		l.Info(msg)
	}

	got := rec.Since(time.Time{})
	require.Len(t, got, 3)
	assert.True(t, strings.HasSuffix(got[0].Text, "c"))
	assert.True(t, strings.HasSuffix(got[2].Text, "e"))
}

func TestRecorder_SinceFiltersByTime(t *testing.T) {
	rec := NewRecorder(5)
	l := zap.New(rec)
	l.Info("recent")

	assert.Empty(t, rec.Since(time.Now().Add(time.Hour)))
	assert.Len(t, rec.Since(time.Now().Add(-time.Hour)), 1)
}

func TestChunk(t *testing.T) {
	records := []Record{
		{Text: strings.Repeat("a", 6)},
		{Text: strings.Repeat("b", 6)},
		{Text: strings.Repeat("c", 20)},
		{Text: "d"},
	}

	chunks := Chunk(records, 14)

	require.Len(t, chunks, 3)
	assert.Equal(t, "aaaaaa\nbbbbbb", chunks[0])
	assert.Equal(t, strings.Repeat("c", 14), chunks[1])
	assert.Equal(t, strings.Repeat("c", 6)+"\nd", chunks[2])
	assert.Empty(t, Chunk(nil, 10))
}

func TestChunk_SplitsOversizedRecord(t *testing.T) {
	long := strings.Repeat("x", 9000)
	chunks := Chunk([]Record{{Text: "head"}, {Text: long}}, 4000)

	require.Len(t, chunks, 4)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 4000)
	}
	assert.Equal(t, "head", chunks[0])
	assert.Equal(t, long, strings.Join(chunks[1:], ""))
}

func TestChunk_KeepsRunesWhole(t *testing.T) {
	// Each "ж" is two bytes; a 5-byte limit fits two of them.
	chunks := Chunk([]Record{{Text: "жжжжж"}}, 5)

	assert.Equal(t, []string{"жж", "жж", "ж"}, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
}

func TestNew_TeesIntoRecorder(t *testing.T) {
	rec := NewRecorder(5)
	l, err := New(Config{Env: "development", Level: "info", Recorder: rec})
	require.NoError(t, err)

	l.Warn("store slow")

	got := rec.Since(time.Time{})
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Text, "WARN")
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	assert.NotNil(t, FromContext(nil))

	l := zap.NewNop()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
}
