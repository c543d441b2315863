package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG REPORT
// ══════════════════════════════════════════════════════════════════════════════

// MaxLogChunk keeps a chunk plus its header under Telegram's 4096 limit.
const MaxLogChunk = 4000

// DefaultLogHours is the window of the scheduled report and of /logs without arguments.
const DefaultLogHours = 24

// TextSender delivers a plain text message to a chat.
type TextSender interface {
	SendText(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
}

// LogSource returns recent log lines.
type LogSource interface {
	Since(cutoff time.Time) []logger.Record
}

// LogReport sends recent log lines to the admin chat.
type LogReport struct {
	source  LogSource
	sender  TextSender
	adminID int64
	now     func() time.Time
}

// NewLogReport creates a LogReport. A zero adminID disables delivery.
func NewLogReport(source LogSource, sender TextSender, adminID int64) *LogReport {
	return &LogReport{source: source, sender: sender, adminID: adminID, now: time.Now}
}

// Send delivers the last hours of logs, split into numbered chunks.
// It returns the number of messages sent.
func (r *LogReport) Send(ctx context.Context, hours int) (int, error) {
	if r.adminID == 0 {
		return 0, nil
	}
	if hours <= 0 {
		hours = DefaultLogHours
	}

	records := r.source.Since(r.now().Add(-time.Duration(hours) * time.Hour))
	if len(records) == 0 {
		_, err := r.sender.SendText(ctx, r.adminID, fmt.Sprintf("No logs found from the last %d hours.", hours))
		if err != nil {
			return 0, err
		}
		return 1, nil
	}

	chunks := logger.Chunk(records, MaxLogChunk)
	for i, chunk := range chunks {
		header := fmt.Sprintf("📋 Logs (%d/%d) - Last %dh:\n\n", i+1, len(chunks), hours)
		if _, err := r.sender.SendText(ctx, r.adminID, header+chunk); err != nil {
			return i, fmt.Errorf("send log chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return len(chunks), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY LOG REPORT JOB
// ══════════════════════════════════════════════════════════════════════════════

// DailyLogReportJob sends the last day of logs to the admin.
type DailyLogReportJob struct {
	report  *LogReport
	enabled func() bool
	logger  *zap.Logger
}

// NewDailyLogReportJob creates the job. enabled may be nil.
func NewDailyLogReportJob(report *LogReport, enabled func() bool, log *zap.Logger) *DailyLogReportJob {
	if log == nil {
		log = zap.NewNop()
	}
	return &DailyLogReportJob{report: report, enabled: enabled, logger: log.Named("daily_log_report")}
}

// Name returns the job name.
func (j *DailyLogReportJob) Name() string {
	return "daily_log_report"
}

// Description returns a human-readable description.
func (j *DailyLogReportJob) Description() string {
	return "Sends the last 24 hours of logs to the admin"
}

// Run executes the job.
func (j *DailyLogReportJob) Run(ctx context.Context) error {
	if j.enabled != nil && !j.enabled() {
		return nil
	}
	n, err := j.report.Send(ctx, DefaultLogHours)
	if err != nil {
		return fmt.Errorf("log report: %w", err)
	}
	j.logger.Info("log report sent", zap.Int("messages", n))
	return nil
}
