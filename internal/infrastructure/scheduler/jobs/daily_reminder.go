// Package jobs contains the scheduled jobs of the bot.
package jobs

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/application/query"
	"github.com/TayalAditya/TheAttendioBot/internal/infrastructure/external/telegram"
	"github.com/TayalAditya/TheAttendioBot/pkg/retry"
	"github.com/TayalAditya/TheAttendioBot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY REMINDER JOB
// ══════════════════════════════════════════════════════════════════════════════

// Sender delivers an HTML message to a chat.
type Sender interface {
	SendHTML(ctx context.Context, chatID int64, html string) (*telegram.Message, error)
}

// ReminderSource lists the digests to send.
type ReminderSource interface {
	Reminders(ctx context.Context) ([]query.ReminderDTO, error)
}

// DeliveryObserver counts reminder outcomes ("sent", "failed", "skipped").
type DeliveryObserver interface {
	ObserveReminder(outcome string)
}

// DailyReminderJob sends every user their attendance status.
type DailyReminderJob struct {
	source   ReminderSource
	sender   Sender
	observer DeliveryObserver
	enabled  func() bool
	logger   *zap.Logger
	config   DailyReminderConfig

	lastRunStats atomic.Value // *DailyReminderStats
}

// DailyReminderConfig contains configuration for the reminder job.
type DailyReminderConfig struct {
	// Threshold is the percentage under which a course is flagged ⚠️.
	Threshold float64

	// Concurrency is the number of reminders sent in parallel.
	Concurrency int

	// Location renders the footer date.
	Location *time.Location

	// Now replaces the clock in tests.
	Now func() time.Time
}

// DefaultDailyReminderConfig returns the 75% threshold with 10 senders.
func DefaultDailyReminderConfig() DailyReminderConfig {
	return DailyReminderConfig{
		Threshold:   75.0,
		Concurrency: 10,
	}
}

// DailyReminderStats contains statistics from a reminder run.
type DailyReminderStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Total       int
	Sent        int
	Skipped     int
	Failed      int
	Errors      []error
}

// ReminderOption configures a DailyReminderJob.
type ReminderOption func(*DailyReminderJob)

// WithDeliveryObserver reports per-recipient outcomes.
func WithDeliveryObserver(o DeliveryObserver) ReminderOption {
	return func(j *DailyReminderJob) { j.observer = o }
}

// WithEnabled gates every run on fn, typically a feature flag.
func WithEnabled(fn func() bool) ReminderOption {
	return func(j *DailyReminderJob) { j.enabled = fn }
}

// NewDailyReminderJob creates a new reminder job.
func NewDailyReminderJob(source ReminderSource, sender Sender, logger *zap.Logger, config DailyReminderConfig, opts ...ReminderOption) *DailyReminderJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 10
	}
	if config.Location == nil {
		config.Location = timeutil.Location()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	j := &DailyReminderJob{
		source: source,
		sender: sender,
		logger: logger.Named("daily_reminder"),
		config: config,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Name returns the job name.
func (j *DailyReminderJob) Name() string {
	return "daily_reminder"
}

// Description returns a human-readable description.
func (j *DailyReminderJob) Description() string {
	return "Sends every user their attendance status and advice"
}

// LastRunStats returns the stats of the latest run, or nil.
func (j *DailyReminderJob) LastRunStats() *DailyReminderStats {
	s, _ := j.lastRunStats.Load().(*DailyReminderStats)
	return s
}

// Run executes the reminder job.
func (j *DailyReminderJob) Run(ctx context.Context) error {
	if j.enabled != nil && !j.enabled() {
		j.logger.Info("daily reminder is disabled")
		return nil
	}

	startedAt := j.config.Now()
	stats := &DailyReminderStats{StartedAt: startedAt}

	reminders, err := j.source.Reminders(ctx)
	if err != nil {
		return fmt.Errorf("failed to load reminders: %w", err)
	}
	stats.Total = len(reminders)

	footerDate := startedAt.In(j.config.Location).Format(timeutil.FormatDayMonth)
	j.sendConcurrently(ctx, reminders, footerDate, stats)

	stats.CompletedAt = j.config.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("daily_reminder job completed",
		zap.Duration("duration", stats.Duration),
		zap.Int("total", stats.Total),
		zap.Int("sent", stats.Sent),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return nil
}

func (j *DailyReminderJob) sendConcurrently(ctx context.Context, reminders []query.ReminderDTO, footerDate string, stats *DailyReminderStats) {
	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, j.config.Concurrency)
		mu        sync.Mutex
	)

	for _, r := range reminders {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(r query.ReminderDTO) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome, err := j.sendOne(ctx, r, footerDate)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case "sent":
				stats.Sent++
			case "skipped":
				stats.Skipped++
			default:
				stats.Failed++
				stats.Errors = append(stats.Errors, err)
			}
			if j.observer != nil {
				j.observer.ObserveReminder(outcome)
			}
		}(r)
	}

	wg.Wait()
}

func (j *DailyReminderJob) sendOne(ctx context.Context, r query.ReminderDTO, footerDate string) (string, error) {
	text := FormatReminder(r.Courses, j.config.Threshold, footerDate)

	err := retry.DeliveryRetrier().Do(ctx, func(ctx context.Context) error {
		_, err := j.sender.SendHTML(ctx, r.ChatID, text)
		if err == nil || telegram.IsBotBlocked(err) || telegram.IsChatNotFound(err) {
			return err
		}
		return retry.Retryable(err)
	})
	switch {
	case err == nil:
		return "sent", nil
	case telegram.IsBotBlocked(err) || telegram.IsChatNotFound(err):
		j.logger.Info("reminder skipped, chat unreachable",
			zap.Int64("telegram_id", r.UserID),
			zap.Int64("chat_id", r.ChatID),
		)
		return "skipped", nil
	default:
		j.logger.Error("failed to send reminder",
			zap.Int64("telegram_id", r.UserID),
			zap.Error(err),
		)
		return "failed", err
	}
}

// FormatReminder renders the daily status message. footerDate is a
// "02.January" date in the home timezone.
func FormatReminder(courses []query.CourseDTO, threshold float64, footerDate string) string {
	var b strings.Builder
	b.WriteString("<b>Attendance Status:</b>\n")
	for i, c := range courses {
		nick := html.EscapeString(c.Nickname)
		if c.Percentage < threshold {
			fmt.Fprintf(&b, "<b>%d. %s:</b> ⚠️\n", i+1, nick)
			fmt.Fprintf(&b, "  <b>Attendance:</b> %.2f%%\n", c.Percentage)
			fmt.Fprintf(&b, "  You need to attend <b>at least %d more</b> classes to cross the %d%% threshold.\n", c.ClassesNeeded, c.AdviceThreshold)
		} else {
			fmt.Fprintf(&b, "<b>%d. %s:</b> ✅\n", i+1, nick)
			fmt.Fprintf(&b, "  <b>Attendance:</b> %.2f%%\n", c.Percentage)
			if c.ClassesLeft >= 1 {
				fmt.Fprintf(&b, "  You can leave <b>%d more</b> classes & still cross the %d%% threshold.\n", c.ClassesLeft, c.AdviceThreshold)
			} else {
				b.WriteString("  You are in the safe zone. Keep up the good work! ✅ \n <i>Be Alert:</i> Leaving even 1 class can put you in low attendance.\n")
			}
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Please mark your attendance using /mark_attendance command if not updated for %s.\n", footerDate)
	return b.String()
}
