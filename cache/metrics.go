package cache

import "time"

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit(string)                           {}
func (NoopMetrics) Miss(string)                          {}
func (NoopMetrics) Bypass(string)                        {}
func (NoopMetrics) Save(string, int64)                   {}
func (NoopMetrics) StorageError(string)                  {}
func (NoopMetrics) ObserveCompute(string, time.Duration) {}
func (NoopMetrics) ObserveSaved(string, time.Duration)   {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}

// Counters is a snapshot of a Manager's accounting.
type Counters struct {
	Hits          int64
	Misses        int64
	Bypasses      int64
	Saves         int64
	StorageErrors int64
	ComputeErrors int64
}

// HitRate returns Hits / (Hits + Misses), or 0 before any lookup.
func (c Counters) HitRate() float64 {
	if n := c.Hits + c.Misses; n > 0 {
		return float64(c.Hits) / float64(n)
	}
	return 0
}
