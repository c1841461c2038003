package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsSubmittedTotal, jobsFinishedTotal, jobsDuplicateTotal, jobsRunning)
}

var (
	jobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_jobs_submitted_total",
			Help: "Total generation jobs accepted, labeled by pipeline kind.",
		},
		[]string{"kind"},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_jobs_finished_total",
			Help: "Total generation jobs reaching a terminal state, labeled by status.",
		},
		[]string{"status"}, // 'done', 'error'
	)

	jobsDuplicateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_jobs_duplicate_total",
			Help: "Submissions resolved to an existing job by idempotency key.",
		},
	)

	jobsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_jobs_running",
			Help: "Pipelines currently executing on this instance.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncJobSubmitted(kind string)  { jobsSubmittedTotal.WithLabelValues(norm(kind)).Inc() }
func IncJobFinished(status string) { jobsFinishedTotal.WithLabelValues(norm(status)).Inc() }
func IncJobDuplicate()             { jobsDuplicateTotal.Inc() }
func JobStarted()                  { jobsRunning.Inc() }
func JobEnded()                    { jobsRunning.Dec() }
