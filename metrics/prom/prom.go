package prom

import (
	"time"

	"github.com/IvanBrykalov/memocache/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cache.Metrics and exports Prometheus counters and
// histograms labelled by function.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	bypasses    *prometheus.CounterVec
	saves       *prometheus.CounterVec
	savedBytes  *prometheus.CounterVec
	storageErrs *prometheus.CounterVec
	compute     *prometheus.HistogramVec
	saved       *prometheus.CounterVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string, label string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, []string{label})
	}
	a := &Adapter{
		hits:        counter("hits_total", "Calls served from the cache", "func"),
		misses:      counter("misses_total", "Calls that had to compute", "func"),
		bypasses:    counter("bypasses_total", "Calls made with caching disabled", "func"),
		saves:       counter("saves_total", "Entries written", "func"),
		savedBytes:  counter("saved_bytes_total", "Bytes written to entries", "func"),
		storageErrs: counter("storage_errors_total", "Cache directory failures by operation", "op"),
		saved:       counter("saved_seconds_total", "Estimated compute time saved by hits", "func"),
		compute: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "compute_seconds",
			Help:        "Wall time of computations on miss",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"func"}),
	}
	reg.MustRegister(a.hits, a.misses, a.bypasses, a.saves, a.savedBytes, a.storageErrs, a.saved, a.compute)
	return a
}

// Hit increments the hit counter of fn.
func (a *Adapter) Hit(fn string) { a.hits.WithLabelValues(fn).Inc() }

// Miss increments the miss counter of fn.
func (a *Adapter) Miss(fn string) { a.misses.WithLabelValues(fn).Inc() }

// Bypass increments the bypass counter of fn.
func (a *Adapter) Bypass(fn string) { a.bypasses.WithLabelValues(fn).Inc() }

// Save counts an entry of n bytes written for fn.
func (a *Adapter) Save(fn string, n int64) {
	a.saves.WithLabelValues(fn).Inc()
	a.savedBytes.WithLabelValues(fn).Add(float64(n))
}

// StorageError counts a failure of op ("lookup", "decode", "save").
func (a *Adapter) StorageError(op string) { a.storageErrs.WithLabelValues(op).Inc() }

// ObserveCompute records the wall time of a computation.
func (a *Adapter) ObserveCompute(fn string, d time.Duration) {
	a.compute.WithLabelValues(fn).Observe(d.Seconds())
}

// ObserveSaved adds the time a hit saved. Negative estimates (the load took
// longer than the original computation) are ignored.
func (a *Adapter) ObserveSaved(fn string, d time.Duration) {
	if d > 0 {
		a.saved.WithLabelValues(fn).Add(d.Seconds())
	}
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
