package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakesage_questions_total",
			Help: "Total number of questions submitted to the pipeline.",
		},
	)
	questionsAnsweredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakesage_questions_answered_total",
			Help: "Total number of questions answered from real result rows.",
		},
	)
	attemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakesage_pipeline_attempts_total",
			Help: "Total number of generate-validate-execute cycles.",
		},
	)
	validationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakesage_validation_failures_total",
			Help: "Total number of candidate queries rejected by the validator.",
		},
	)
	executionErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakesage_execution_errors_total",
			Help: "Total number of warehouse execution errors.",
		},
	)
	retryExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakesage_retry_exhausted_total",
			Help: "Total number of questions that exhausted the attempt budget.",
		},
	)
	modelCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lakesage_model_call_duration_seconds",
			Help:    "Language model call latency by purpose.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"purpose"},
	)
	questionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lakesage_question_duration_seconds",
			Help:    "End-to-end latency from question to answer or failure.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		questionsAnsweredTotal,
		attemptsTotal,
		validationFailuresTotal,
		executionErrorsTotal,
		retryExhaustedTotal,
		modelCallDurationSeconds,
		questionDurationSeconds,
	)
}

func ObserveQuestionStart() {
	questionsTotal.Inc()
}

func ObserveQuestionDone(answered bool, elapsed time.Duration) {
	if answered {
		questionsAnsweredTotal.Inc()
	}
	questionDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveAttempt() {
	attemptsTotal.Inc()
}

func ObserveValidationFailure() {
	validationFailuresTotal.Inc()
}

func ObserveExecutionError() {
	executionErrorsTotal.Inc()
}

func ObserveRetryExhausted() {
	retryExhaustedTotal.Inc()
}

func ObserveModelCall(purpose string, elapsed time.Duration) {
	modelCallDurationSeconds.WithLabelValues(purpose).Observe(elapsed.Seconds())
}
