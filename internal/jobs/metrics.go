// Package jobmetrics instruments the asynq worker.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reminder outcomes.
const (
	ReminderSent    = "sent"
	ReminderSkipped = "skipped"
)

// Metrics holds the worker collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs         *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	reminders    *prometheus.CounterVec
	reminderLead prometheus.Histogram
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer, or once on the default
// registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() {
		defaultMetrics = register(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Tracker times one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the run outcome and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddReminder counts a processed reminder by outcome.
func (m *Metrics) AddReminder(outcome string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(outcome).Inc()
}

// ObserveReminderLead records how long before the due time a reminder went
// out. Late reminders observe zero.
func (m *Metrics) ObserveReminderLead(beforeDue time.Duration) {
	if m == nil {
		return
	}
	if beforeDue < 0 {
		beforeDue = 0
	}
	m.reminderLead.Observe(beforeDue.Minutes())
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bankcrm_jobs_total",
			Help: "Job executions by job type and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bankcrm_jobs_failures_total",
			Help: "Failed job executions by job type.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bankcrm_job_duration_seconds",
			Help:    "Job execution time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bankcrm_task_reminders_total",
			Help: "Task reminders processed by outcome.",
		}, []string{"outcome"}),
		reminderLead: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bankcrm_task_reminder_lead_minutes",
			Help:    "Minutes between a reminder being sent and the task falling due.",
			Buckets: []float64{0, 5, 15, 30, 60, 120, 240},
		}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.reminders, m.reminderLead)
	return m
}
