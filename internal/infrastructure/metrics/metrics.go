// Package metrics holds the Prometheus collectors of the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attendio"

// Metrics encapsulates Prometheus instrumentation of updates, commands,
// domain events, reminders and scheduled jobs.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	updatesTotal    *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	commandErrors   *prometheus.CounterVec
	eventsTotal     *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
	remindersTotal  *prometheus.CounterVec
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// New registers every collector on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Telegram updates received by kind",
		}, []string{"kind"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Duration of command and callback handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		commandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Commands and callbacks that returned an error",
		}, []string{"command"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Domain event handler executions",
		}, []string{"event_type", "outcome"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handler_duration_seconds",
			Help:      "Duration of domain event handlers",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Updates rejected by the command rate limit",
		}, []string{"action"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Daily reminder deliveries by outcome",
		}, []string{"outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by outcome",
		}, []string{"job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled jobs",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 300, 600},
		}, []string{"job"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "updates_in_flight",
			Help:      "Updates currently being processed",
		}),
	}

	registry.MustRegister(
		m.updatesTotal, m.commandDuration, m.commandErrors,
		m.eventsTotal, m.eventDuration, m.rateLimited,
		m.remindersTotal, m.jobRuns, m.jobDuration, m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveUpdate counts one incoming update.
func (m *Metrics) ObserveUpdate(kind string) {
	m.updatesTotal.WithLabelValues(kind).Inc()
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (m *Metrics) TrackInFlight() func() {
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// ObserveCommand records the latency and failure of a command or callback.
func (m *Metrics) ObserveCommand(command string, d time.Duration, err error) {
	m.commandDuration.WithLabelValues(command).Observe(d.Seconds())
	if err != nil {
		m.commandErrors.WithLabelValues(command).Inc()
	}
}

// ObserveEvent implements messaging.Observer.
func (m *Metrics) ObserveEvent(eventType string, d time.Duration, err error) {
	m.eventDuration.WithLabelValues(eventType).Observe(d.Seconds())
	m.eventsTotal.WithLabelValues(eventType, outcome(err)).Inc()
}

// ObserveRateLimited counts a rejected update. blocked is true when the
// rejection also blocked the user.
func (m *Metrics) ObserveRateLimited(blocked bool) {
	action := "rejected"
	if blocked {
		action = "blocked"
	}
	m.rateLimited.WithLabelValues(action).Inc()
}

// ObserveReminder implements jobs.DeliveryObserver.
func (m *Metrics) ObserveReminder(outcome string) {
	m.remindersTotal.WithLabelValues(outcome).Inc()
}

// ObserveJob records one scheduled job run.
func (m *Metrics) ObserveJob(job string, d time.Duration, err error) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	m.jobRuns.WithLabelValues(job, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
