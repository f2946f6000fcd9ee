package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	IngestOutcomeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_outcome_count",
			Help: "Total number of ingested messages by terminal outcome",
		},
		[]string{"outcome"}, // committed, duplicate, malformed, unsupported, unverified, empty
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maildir_scan_duration_seconds",
			Help:    "Duration of a full maildir scan",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	PromptSentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_sent_count",
			Help: "Total number of daily prompt emails composed",
		},
		[]string{"status"}, // sent, failed
	)
)

// RecordIngestOutcome increments the counter for one terminal outcome.
func RecordIngestOutcome(outcome string) {
	IngestOutcomeCount.WithLabelValues(outcome).Inc()
}

// RecordScanDuration records the wall time of one maildir scan.
func RecordScanDuration(d time.Duration) {
	ScanDuration.Observe(d.Seconds())
}

// RecordDBQueryDuration records one database query.
func RecordDBQueryDuration(operation, table string, d time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(d.Seconds())
}

// RecordPromptSent increments the prompt counter.
func RecordPromptSent(status string) {
	PromptSentCount.WithLabelValues(status).Inc()
}

// Push delivers everything recorded so far to a Pushgateway, grouped under
// job. The binaries are run-to-completion, so there is no /metrics endpoint
// to scrape; pushing at run end is how the counters leave the process.
func Push(url, job string) error {
	return push.New(url, job).Gatherer(prometheus.DefaultGatherer).Push()
}
