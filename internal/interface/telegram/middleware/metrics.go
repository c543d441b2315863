package middleware

import (
	"sync/atomic"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS MIDDLEWARE
// Times every command and callback and forwards the observation to the
// Prometheus collectors.
// ══════════════════════════════════════════════════════════════════════════════

// CommandRecorder receives command observations.
type CommandRecorder interface {
	ObserveCommand(command string, d time.Duration, err error)
}

// MetricsMiddleware measures command handling.
type MetricsMiddleware struct {
	recorder CommandRecorder

	total  atomic.Int64
	errors atomic.Int64
}

// NewMetricsMiddleware creates a new metrics middleware. recorder may be nil.
func NewMetricsMiddleware(recorder CommandRecorder) *MetricsMiddleware {
	return &MetricsMiddleware{recorder: recorder}
}

// RequestContext tracks one command in flight.
type RequestContext struct {
	m       *MetricsMiddleware
	command string
	start   time.Time
}

// Start begins measuring command.
func (m *MetricsMiddleware) Start(command string) *RequestContext {
	return &RequestContext{m: m, command: command, start: time.Now()}
}

// End records the outcome of the command.
func (rc *RequestContext) End(err error) {
	d := time.Since(rc.start)
	rc.m.total.Add(1)
	if err != nil {
		rc.m.errors.Add(1)
	}
	if rc.m.recorder != nil {
		rc.m.recorder.ObserveCommand(rc.command, d, err)
	}
}

// Totals returns the number of handled and failed commands.
func (m *MetricsMiddleware) Totals() (total, failed int64) {
	return m.total.Load(), m.errors.Load()
}
