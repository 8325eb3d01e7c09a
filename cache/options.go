package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Metrics exposes memoization observability hooks, labelled by the
// sanitized function label. A NoopMetrics implementation is provided and
// used by default.
type Metrics interface {
	Hit(fn string)
	Miss(fn string)
	Bypass(fn string)
	Save(fn string, bytes int64)
	StorageError(op string)
	ObserveCompute(fn string, d time.Duration)
	ObserveSaved(fn string, d time.Duration)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

type systemClock struct{}

func (systemClock) NowUnixNano() int64 { return time.Now().UnixNano() }

// StorageErrorPolicy decides what Do does when the cache directory
// misbehaves.
type StorageErrorPolicy int

const (
	// Propagate returns storage errors to the caller. On a failed lookup
	// the function is not run; on a failed save the fresh result is
	// returned alongside the error.
	Propagate StorageErrorPolicy = iota
	// Recompute logs a warning and carries on as if the entry were absent,
	// overwriting it on the next save.
	Recompute
)

func (p StorageErrorPolicy) String() string {
	if p == Recompute {
		return "recompute"
	}
	return "propagate"
}

// ParseStorageErrorPolicy accepts "propagate" or "recompute"; the empty
// string means Propagate.
func ParseStorageErrorPolicy(s string) (StorageErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "propagate":
		return Propagate, nil
	case "recompute":
		return Recompute, nil
	}
	return Propagate, fmt.Errorf("cache: unknown storage error policy %q", s)
}

// Options configures a Manager. Zero values are safe apart from Dir;
// defaults are applied in New():
//   - nil Codec    => GobCodec with zstd
//   - nil Logger   => stderr logger prefixed "memocache"
//   - nil Metrics  => NoopMetrics
//   - nil Clock    => time.Now()
type Options struct {
	// Dir is the cache root. Required unless Disabled.
	Dir string

	// Verbosity: 0 silent, 1 hit/miss summaries, 2 adds file paths,
	// 3 adds per-value hash traces at debug level.
	Verbosity int

	// Disabled turns every call into a plain call of the function.
	Disabled bool

	Codec Codec

	// OnStorageError selects the reaction to unreadable entries and
	// failed saves. Missing entries are never storage errors.
	OnStorageError StorageErrorPolicy

	// SingleFlight coalesces concurrent calls with the same key inside
	// this process, so only one of them computes.
	SingleFlight bool

	// MaxDepth bounds argument nesting during hashing; 0 => default.
	MaxDepth int

	Logger  *log.Logger
	Metrics Metrics

	// Clock allows overriding the save timestamp source (tests).
	Clock Clock
}
