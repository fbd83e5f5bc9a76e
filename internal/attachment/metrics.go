package attachment

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics registers only the paperclip collectors, without the Go runtime
// ones of the default registry.
var metrics = prometheus.NewRegistry()

var (
	variantsProcessed = promauto.With(metrics).NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperclip_variants_processed_total",
			Help: "Variant files written to storage",
		},
		[]string{"attachment", "variant"},
	)

	processingFailures = promauto.With(metrics).NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperclip_processing_failures_total",
			Help: "Save cycles whose variant generation failed",
		},
		[]string{"attachment"},
	)

	storageDeleteFailures = promauto.With(metrics).NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperclip_storage_delete_failures_total",
			Help: "Variant files that could not be deleted",
		},
		[]string{"attachment"},
	)

	processingDuration = promauto.With(metrics).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paperclip_processing_duration_seconds",
			Help:    "Time spent generating and storing all variants of one upload",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"attachment"},
	)
)

// Metrics exposes the attachment collectors, e.g. to a promhttp handler.
func Metrics() prometheus.Gatherer { return metrics }

// WriteMetrics writes the current attachment metrics to path in the text
// exposition format, as read by the node_exporter textfile collector.
func WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, metrics); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
