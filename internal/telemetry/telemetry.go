// Package telemetry exposes Prometheus collectors for the workflow and
// retrieval subsystems.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NodeDuration observes wall time per workflow node.
	NodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "questor",
		Subsystem: "workflow",
		Name:      "node_duration_seconds",
		Help:      "Execution time of workflow nodes.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"node"})

	// RunsTotal counts workflow runs by outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "questor",
		Subsystem: "workflow",
		Name:      "runs_total",
		Help:      "Workflow runs by outcome (completed, interrupted, failed).",
	}, []string{"outcome"})

	// LoopIterations observes refinement loops taken per question.
	LoopIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "questor",
		Subsystem: "workflow",
		Name:      "loop_iterations",
		Help:      "Refinement loop iterations per completed question.",
		Buckets:   []float64{0, 1, 2, 3, 4, 5},
	})

	// JudgeVerdicts counts sufficiency verdicts by class.
	JudgeVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "questor",
		Subsystem: "judge",
		Name:      "verdicts_total",
		Help:      "Sufficiency verdicts by class.",
	}, []string{"verdict"})

	// JudgeParseFailures counts judge outputs that did not match the
	// verdict contract and were resolved fail-open.
	JudgeParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "questor",
		Subsystem: "judge",
		Name:      "parse_failures_total",
		Help:      "Judge outputs with an unrecognized verdict, defaulted to sufficient.",
	})

	// AdapterErrors counts evidence source and provider failures after
	// their own retry budget was spent.
	AdapterErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "questor",
		Subsystem: "adapter",
		Name:      "errors_total",
		Help:      "Collaborator failures surfaced to the engine.",
	}, []string{"adapter"})

	// RerankFallbacks counts rerank failures degraded to fused order.
	RerankFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "questor",
		Subsystem: "retrieval",
		Name:      "rerank_fallbacks_total",
		Help:      "Rerank calls that failed and fell back to fused order.",
	})
)
