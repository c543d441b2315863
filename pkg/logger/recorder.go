package logger

import (
	"strings"
	"unicode/utf8"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// DefaultRecorderSize is the number of entries kept by NewRecorder(0).
const DefaultRecorderSize = 10000

// Record is one captured log line.
type Record struct {
	Time  time.Time
	Level zapcore.Level
	Text  string
}

// recordBuffer is a bounded ring shared by a Recorder and its children.
type recordBuffer struct {
	mu      sync.RWMutex
	entries []Record
	next    int
	full    bool
}

func (b *recordBuffer) add(r Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = r
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

func (b *recordBuffer) snapshot() []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.full {
		out := make([]Record, b.next)
		copy(out, b.entries[:b.next])
		return out
	}
	out := make([]Record, 0, len(b.entries))
	out = append(out, b.entries[b.next:]...)
	out = append(out, b.entries[:b.next]...)
	return out
}

// Recorder is a zapcore.Core that keeps the most recent entries in memory so
// they can be delivered to the admin chat.
type Recorder struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	buf *recordBuffer
}

// NewRecorder creates a recorder holding up to size entries at InfoLevel and above.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = DefaultRecorderSize
	}
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		LineEnding:       "",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " - ",
	}
	return &Recorder{
		LevelEnabler: zapcore.InfoLevel,
		enc:          zapcore.NewConsoleEncoder(encCfg),
		buf:          &recordBuffer{entries: make([]Record, size)},
	}
}

// With implements zapcore.Core.
func (r *Recorder) With(fields []zapcore.Field) zapcore.Core {
	enc := r.enc.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &Recorder{LevelEnabler: r.LevelEnabler, enc: enc, buf: r.buf}
}

// Check implements zapcore.Core.
func (r *Recorder) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if r.Enabled(ent.Level) {
		return ce.AddCore(ent, r)
	}
	return ce
}

// Write implements zapcore.Core.
func (r *Recorder) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	b, err := r.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	text := strings.TrimRight(b.String(), "\n")
	b.Free()
	r.buf.add(Record{Time: ent.Time, Level: ent.Level, Text: text})
	return nil
}

// Sync implements zapcore.Core.
func (r *Recorder) Sync() error { return nil }

// Since returns the entries written at or after cutoff, oldest first.
func (r *Recorder) Since(cutoff time.Time) []Record {
	all := r.buf.snapshot()
	out := make([]Record, 0, len(all))
	for _, rec := range all {
		if !rec.Time.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out
}

// Chunk joins records with newlines into pieces of at most max bytes.
// A record longer than max is split at rune boundaries.
func Chunk(records []Record, max int) []string {
	if max <= 0 {
		return nil
	}
	var chunks []string
	var cur strings.Builder
	for _, rec := range records {
		for _, piece := range splitText(rec.Text, max) {
			if cur.Len() > 0 && cur.Len()+1+len(piece) > max {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			if cur.Len() > 0 {
				cur.WriteByte('\n')
			}
			cur.WriteString(piece)
		}
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// splitText cuts s into pieces of at most max bytes without breaking a rune.
func splitText(s string, max int) []string {
	if len(s) <= max {
		return []string{s}
	}
	var out []string
	for len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(s)
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
