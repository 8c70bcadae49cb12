package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"creditrisk/ml"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditrisk_http_requests_total",
			Help: "Total number of HTTP requests by method and status code",
		},
		[]string{"method", "code"},
	)

	predictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditrisk_predictions_total",
			Help: "Total number of records scored, by predicted label",
		},
		[]string{"label"},
	)

	predictErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditrisk_predict_errors_total",
			Help: "Total number of rejected or failed predict requests, by kind",
		},
		[]string{"kind"},
	)

	predictDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "creditrisk_predict_duration_seconds",
			Help:    "Time spent preprocessing and scoring one predict request",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	batchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "creditrisk_predict_batch_size",
			Help:    "Number of records per predict request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

// CacheStats is implemented by ml.CachedPredictor.
type CacheStats interface {
	Stats() (hits, misses int64)
}

// RegisterCacheMetrics exposes the prediction cache counters. Call it once
// per process.
func RegisterCacheMetrics(reg prometheus.Registerer, cache CacheStats) error {
	hits := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "creditrisk_cache_hits_total",
		Help: "Total number of records answered from the prediction cache",
	}, func() float64 {
		h, _ := cache.Stats()
		return float64(h)
	})
	misses := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "creditrisk_cache_misses_total",
		Help: "Total number of records the prediction cache sent to the model",
	}, func() float64 {
		_, m := cache.Stats()
		return float64(m)
	})
	if err := reg.Register(hits); err != nil {
		return err
	}
	return reg.Register(misses)
}

func observePredictions(preds []ml.Prediction) {
	for _, p := range preds {
		if p.Label == 1 {
			predictionsTotal.WithLabelValues("1").Inc()
		} else {
			predictionsTotal.WithLabelValues("0").Inc()
		}
	}
}

var _ CacheStats = (*ml.CachedPredictor)(nil)
