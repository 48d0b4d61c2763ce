package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		flashcardJobsTotal,
		flashcardJobAttempts,
		flashcardRetryWaitSeconds,
		flashcardJobsInFlight,
		flashcardBatchesTotal,
	)
}

var (
	flashcardJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashcard_jobs_total",
			Help: "Jobs finished, labeled by final status and how they were served.",
		},
		[]string{"status", "source"}, // status: success|failed; source: service|skipped|cache
	)

	flashcardJobAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flashcard_job_attempts",
			Help:    "Attempts used per job that reached the service.",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	flashcardRetryWaitSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashcard_retry_wait_seconds_total",
			Help: "Seconds spent waiting between attempts, by retry reason.",
		},
		[]string{"reason"}, // rate_limit|error
	)

	flashcardJobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flashcard_jobs_in_flight",
			Help: "Jobs currently held by a worker.",
		},
	)

	flashcardBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flashcard_batches_total",
			Help: "Batches dispatched.",
		},
	)
)

func IncJob(status, source string) {
	flashcardJobsTotal.WithLabelValues(norm(status), norm(source)).Inc()
}

func ObserveAttempts(n int) {
	flashcardJobAttempts.Observe(float64(n))
}

func AddRetryWait(reason string, seconds float64) {
	flashcardRetryWaitSeconds.WithLabelValues(norm(reason)).Add(seconds)
}

func JobStarted()  { flashcardJobsInFlight.Inc() }
func JobFinished() { flashcardJobsInFlight.Dec() }

func IncBatch() { flashcardBatchesTotal.Inc() }
