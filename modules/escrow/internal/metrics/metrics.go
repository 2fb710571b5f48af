package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_events_ingested_total",
			Help: "Total number of newly stored ledger events by event name",
		},
		[]string{"event_name"},
	)

	EventsDuplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_events_duplicated_total",
		Help: "Total number of ledger events ignored because they were already stored",
	})

	EventsUndecodable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_events_undecodable_total",
		Help: "Total number of ledger events skipped because they could not be decoded",
	})

	ConsistencyWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_consistency_warnings_total",
			Help: "Total number of events skipped by the projection or releases refused by the ledger as inconsistent",
		},
		[]string{"source"},
	)

	CurrentSlot = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "escrow_current_slot",
		Help: "Last fully ingested ledger slot",
	})

	BatchProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "escrow_batch_processing_duration_seconds",
		Help:    "Time taken to persist and project one ingestion batch",
		Buckets: prometheus.DefBuckets,
	})
)

// Scheduler metrics
var (
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "escrow_sweep_duration_seconds",
		Help:    "Time taken by one scheduler sweep",
		Buckets: prometheus.DefBuckets,
	})

	SweepsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_sweeps_skipped_total",
		Help: "Total number of sweeps skipped because the previous one was still running",
	})

	DealsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_deals_expired_total",
		Help: "Total number of offers rejected on expiry",
	})

	OpenDisputes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "escrow_open_disputes",
		Help: "Number of deals currently disputed",
	})

	PaymentsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_payments_released_total",
		Help: "Total number of payment releases submitted",
	})

	LedgerSubmissionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_ledger_submission_errors_total",
			Help: "Total number of failed ledger instructions by instruction",
		},
		[]string{"instruction"},
	)
)
