package renderer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors a renderer updates once per iteration
type Metrics struct {
	Iterations        prometheus.Counter
	CameraPaths       prometheus.Counter
	LightPaths        *prometheus.CounterVec
	CachePoints       prometheus.Gauge
	ZeroNormalization prometheus.Counter
	IterationDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Iterations: factory.NewCounter(prometheus.CounterOpts{
			Name: "rbdpt_iterations_total",
			Help: "Number of completed render iterations",
		}),
		CameraPaths: factory.NewCounter(prometheus.CounterOpts{
			Name: "rbdpt_camera_paths_total",
			Help: "Number of camera sub-paths traced",
		}),
		LightPaths: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rbdpt_light_paths_total",
			Help: "Number of light sub-paths traced, by use",
		}, []string{"use"}),
		CachePoints: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rbdpt_cache_points",
			Help: "Number of cache points created in the last iteration",
		}),
		ZeroNormalization: factory.NewCounter(prometheus.CounterOpts{
			Name: "rbdpt_zero_normalization_total",
			Help: "Cache points whose resampling distribution had no mass",
		}),
		IterationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rbdpt_iteration_duration_seconds",
			Help:    "Wall time of one render iteration",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}
}
