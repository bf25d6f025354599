package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemUploads tracks block and thumbnail uploads per kind and result
	ItemUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophdrive_item_uploads_total",
			Help: "Total number of block and thumbnail upload attempts",
		},
		[]string{"kind", "result"},
	)

	// ItemUploadLatency tracks transport latency of a single item
	ItemUploadLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gophdrive_item_upload_latency_seconds",
			Help:    "Item upload latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// TransportRetries tracks immediate low-level transport retries
	TransportRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gophdrive_transport_retries_total",
			Help: "Total number of immediate transport retries",
		},
	)

	// PageAttempts tracks page upload attempts per outcome
	PageAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophdrive_page_attempts_total",
			Help: "Total number of page upload attempts",
		},
		[]string{"outcome"},
	)

	// TargetReservations tracks content-creation calls per result
	TargetReservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophdrive_target_reservations_total",
			Help: "Total number of upload target reservation calls",
		},
		[]string{"result"},
	)

	// RevisionsFinalized tracks revisions per terminal outcome
	RevisionsFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophdrive_revisions_finalized_total",
			Help: "Total number of revision uploads that reached a terminal outcome",
		},
		[]string{"outcome"},
	)
)

// Result returns the label value for an error outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
