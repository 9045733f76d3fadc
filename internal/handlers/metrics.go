package handlers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kosarica/store-service/internal/hours"
)

var (
	// rankingDuration tracks the time taken to rank stores.
	rankingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_service_ranking_duration_seconds",
		Help:    "Time taken to rank stores by source",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"source"}) // source: product, request

	// rankedStores tracks how many stores a ranking returned.
	rankedStores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "store_service_ranked_stores_count",
		Help:    "Number of stores returned by a ranking",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 500},
	})

	// storeLookupDuration tracks the time taken to load stores, carry links and prices.
	storeLookupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_service_store_lookup_duration_seconds",
		Help:    "Time taken to load store data by result",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"result"})

	// statusResolutions counts resolved store statuses.
	statusResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_service_status_resolutions_total",
		Help: "Total number of opening-hours resolutions by state",
	}, []string{"state"})

	// preferenceOperations counts preference store calls.
	preferenceOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_service_preference_operations_total",
		Help: "Total number of preference store operations by operation and result",
	}, []string{"operation", "result"})
)

// MetricsRecorder provides methods to record handler metrics.
type MetricsRecorder struct{}

// NewMetricsRecorder creates a new metrics recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// RecordRanking records one ranking pass.
func (m *MetricsRecorder) RecordRanking(source string, duration time.Duration, count int) {
	rankingDuration.WithLabelValues(source).Observe(duration.Seconds())
	rankedStores.Observe(float64(count))
}

// RecordStoreLookup records a repository round trip.
func (m *MetricsRecorder) RecordStoreLookup(duration time.Duration, err error) {
	storeLookupDuration.WithLabelValues(result(err)).Observe(duration.Seconds())
}

// RecordStatus records a resolved status.
func (m *MetricsRecorder) RecordStatus(state hours.State) {
	statusResolutions.WithLabelValues(string(state)).Inc()
}

// RecordPreferenceOperation records a preference store call.
func (m *MetricsRecorder) RecordPreferenceOperation(operation string, err error) {
	preferenceOperations.WithLabelValues(operation, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
