package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PredictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exoplanet_prediction_duration_seconds",
			Help:    "Prediction request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"mode"},
	)

	PredictionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exoplanet_prediction_total",
			Help: "Total predictions by outcome label and status",
		},
		[]string{"label", "status"},
	)

	PredictionProbability = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exoplanet_prediction_probability",
			Help:    "Distribution of normalized prediction probabilities",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exoplanet_cache_hits_total",
			Help: "Total prediction cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exoplanet_cache_misses_total",
			Help: "Total prediction cache misses",
		},
		[]string{"cache_type"},
	)

	PlanetsSeeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exoplanet_planets_seeded_total",
			Help: "Total planets inserted by the seeder",
		},
	)

	CSVRowsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exoplanet_csv_rows_processed_total",
			Help: "Total CSV rows handled by the upload endpoints",
		},
		[]string{"endpoint", "status"},
	)

	ModelVersionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exoplanet_model_versions_total",
			Help: "Number of model versions tracked",
		},
	)
)

func Init() {
	prometheus.MustRegister(PredictionDuration)
	prometheus.MustRegister(PredictionTotal)
	prometheus.MustRegister(PredictionProbability)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(PlanetsSeeded)
	prometheus.MustRegister(CSVRowsProcessed)
	prometheus.MustRegister(ModelVersionsTotal)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
