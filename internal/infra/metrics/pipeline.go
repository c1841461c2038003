package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(stageLatencyMs, generationLatencyMs, generationTokensOut, synthesisFailures)
}

var (
	stageLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_latency_ms",
			Help:    "Per-stage wall time in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 90000},
		},
		[]string{"kind", "stage", "success"},
	)

	generationLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_call_latency_ms",
			Help:    "External generation call latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 90000},
		},
		[]string{"model", "success"},
	)

	generationTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_tokens_out",
			Help: "Sum of completion characters streamed per model.",
		},
		[]string{"model"},
	)

	synthesisFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "synthesis_failures_total",
			Help: "Non-fatal speech synthesis failures (unit proceeds without audio).",
		},
	)
)

func ObserveStage(kind, stage string, latencyMs int, success bool) {
	stageLatencyMs.WithLabelValues(norm(kind), norm(stage), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func ObserveGeneration(model string, latencyMs int, chars int, success bool) {
	generationLatencyMs.WithLabelValues(norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
	if chars > 0 {
		generationTokensOut.WithLabelValues(norm(model)).Add(float64(chars))
	}
}

func IncSynthesisFailure() { synthesisFailures.Inc() }
