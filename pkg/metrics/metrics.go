// Package metrics provides access to Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "imgsch"

// Thumbnails
var (
	ThumbnailsErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thumbnails",
			Name:      "errors_total",
		},
		[]string{"reason"},
	)
	ThumbnailsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thumbnails",
			Name:      "generated_total",
		},
	)
	ThumbnailsOriginalImageSizes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "thumbnails",
			Name:      "original_image_size_bytes",
			Buckets: []float64{
				124 << 10, // 124 Kib
				256 << 10, // 256 Kib
				512 << 10, // 512 Kib
				1 << 20,   // 1 Mib
				2 << 20,   // 2 Mib
				5 << 20,   // 5 Mib
				10 << 20,  // 10 Mib
				20 << 20,  // 20 Mib
			},
		},
	)
	ThumbnailsDecodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "thumbnails",
			Name:      "decode_duration_seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		},
	)
	ThumbnailsGenerateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "thumbnails",
			Name:      "generate_duration_seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10},
		},
	)
	ThumbnailsSizeRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "thumbnails",
			Name:      "size_ratio",
			Buckets:   []float64{0.7, 0.9, 1, 2, 5, 10, 20, 30, 50, 70, 100, 150},
		},
	)
)

// Error reasons.
const (
	ReasonDecode           = "decode"
	ReasonEmptyImage       = "empty_image"
	ReasonInvalidDimension = "invalid_dimension"
	ReasonTooLarge         = "too_large"
	ReasonEncode           = "encode"
)

// Init values for common labels.
func init() {
	for _, reason := range []string{ReasonDecode, ReasonEmptyImage, ReasonInvalidDimension, ReasonTooLarge, ReasonEncode} {
		ThumbnailsErrors.With(prometheus.Labels{"reason": reason}).Add(0)
	}
}

// WriteToTextfile writes all registered metrics to the passed file in the format of
// the node_exporter textfile collector.
func WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
