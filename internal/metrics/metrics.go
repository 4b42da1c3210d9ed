package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CronAuthDecisionsTotal counts cron gate decisions by outcome and rejection reason
	CronAuthDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cron_auth_decisions_total",
			Help: "Total number of scheduled-job authentication decisions",
		},
		[]string{"result", "reason"},
	)

	// JobRunsTotal counts scheduled job runs
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Total number of scheduled job runs",
		},
		[]string{"job_name"},
	)

	// JobErrorsTotal counts scheduled job runs that ended in an error or panic
	JobErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_errors_total",
			Help: "Total number of scheduled job errors",
		},
		[]string{"job_name"},
	)

	// JobRunDurationSeconds measures how long each scheduled job takes
	JobRunDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_run_duration_seconds",
			Help:    "Duration of scheduled job runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
		[]string{"job_name"},
	)

	// EmailsTotal counts outbound emails by template and result
	EmailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_total",
			Help: "Total number of outbound emails by template and result",
		},
		[]string{"template", "result"},
	)

	registry = prometheus.NewRegistry()
)

func init() {
	registry.MustRegister(
		CronAuthDecisionsTotal,
		JobRunsTotal,
		JobErrorsTotal,
		JobRunDurationSeconds,
		EmailsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler exposes the registry for scraping
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveJob records one run of a scheduled job
func ObserveJob(jobName string, started time.Time, err error) {
	JobRunsTotal.WithLabelValues(jobName).Inc()
	JobRunDurationSeconds.WithLabelValues(jobName).Observe(time.Since(started).Seconds())
	if err != nil {
		JobErrorsTotal.WithLabelValues(jobName).Inc()
	}
}

// ObserveEmail records one outbound email attempt
func ObserveEmail(template string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	EmailsTotal.WithLabelValues(template, result).Inc()
}

// ObserveCronAuth records one cron gate decision
func ObserveCronAuth(valid bool, reason string) {
	result := "accepted"
	if !valid {
		result = "rejected"
	}
	CronAuthDecisionsTotal.WithLabelValues(result, reason).Inc()
}
