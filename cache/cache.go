package cache

import (
	"context"
	"errors"
	"os"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/memocache/hashing"
	"github.com/IvanBrykalov/memocache/internal/singleflight"
	"github.com/charmbracelet/log"
)

// Manager memoizes function calls on disk. All methods are safe for
// concurrent use by multiple goroutines, and any number of processes may
// share one cache directory.
type Manager struct {
	store *Store
	opt   Options
	log   *log.Logger

	// singleflight group keyed by hex digest, used when Options.SingleFlight is set.
	sf singleflight.Group[string, flight]

	hits, misses, bypasses, saves atomic.Int64
	storageErrs, computeErrs      atomic.Int64
}

// flight is what a single-flight leader hands to its followers.
type flight struct {
	value any
	rep   Report
}

// New constructs a Manager with the provided Options.
// The cache directory is created eagerly unless Disabled is set.
func New(opt Options) (*Manager, error) {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Clock == nil {
		opt.Clock = systemClock{}
	}
	if opt.Codec == nil {
		opt.Codec = GobCodec{}
	}
	if opt.Logger == nil {
		opt.Logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix:          "memocache",
			ReportTimestamp: true,
		})
	}
	if opt.Verbosity >= 3 && opt.Logger.GetLevel() > log.DebugLevel {
		// Hash traces are logged at debug level. Raise a copy so the
		// caller's logger keeps its own level.
		opt.Logger = opt.Logger.With()
		opt.Logger.SetLevel(log.DebugLevel)
	}

	m := &Manager{opt: opt, log: opt.Logger}
	if opt.Disabled {
		return m, nil
	}
	st, err := NewStore(StoreOptions{
		Dir:       opt.Dir,
		Codec:     opt.Codec,
		Logger:    opt.Logger,
		Verbosity: opt.Verbosity,
	})
	if err != nil {
		return nil, err
	}
	m.store = st
	return m, nil
}

// Store returns the underlying store, or nil when the Manager is disabled.
func (m *Manager) Store() *Store { return m.store }

// Logger returns the logger the Manager reports to.
func (m *Manager) Logger() *log.Logger { return m.log }

// Stats returns a snapshot of the Manager's counters.
func (m *Manager) Stats() Counters {
	return Counters{
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		Bypasses:      m.bypasses.Load(),
		Saves:         m.saves.Load(),
		StorageErrors: m.storageErrs.Load(),
		ComputeErrors: m.computeErrs.Load(),
	}
}

// Key derives the cache key of call under the Manager's hashing options.
func (m *Manager) Key(call Call) (Key, error) {
	return KeyFor(call, hashing.Options{
		Verbosity: m.opt.Verbosity,
		Logger:    m.log,
		MaxDepth:  m.opt.MaxDepth,
	})
}

// Do returns the result of compute for call, from the cache when an entry
// exists and by running compute (and saving its result) otherwise.
//
// Errors:
//   - key derivation errors (hashing.UnsupportedTypeError,
//     hashing.ErrTooDeep) are returned before compute runs;
//   - errors from compute are returned unchanged and nothing is cached;
//   - storage errors follow Options.OnStorageError.
//
// Panics in compute are not recovered.
func Do[R any](ctx context.Context, m *Manager, call Call, compute func(context.Context) (R, error)) (R, Report, error) {
	label := Label(call.Callee.Name)

	if m.opt.Disabled {
		m.bypasses.Add(1)
		m.opt.Metrics.Bypass(label)
		if m.opt.Verbosity >= 1 {
			m.log.Info("cache disabled, computing", "func", label)
		}
		v, err := compute(ctx)
		if err != nil {
			m.computeErrs.Add(1)
		}
		return v, Report{Bypassed: true}, err
	}

	if call.Result == nil {
		call.Result = reflect.TypeFor[R]()
	}
	start := time.Now()
	key, err := m.Key(call)
	if err != nil {
		var zero R
		return zero, Report{}, err
	}
	rep := Report{Key: key, Path: m.store.Path(key), HashTime: time.Since(start)}

	if !m.opt.SingleFlight {
		return run(ctx, m, rep, compute)
	}

	var out R
	f, shared, err := m.sf.Do(ctx, key.Digest.Hex(), func() (flight, error) {
		v, r, err := run(ctx, m, rep, compute)
		out = v
		return flight{value: v, rep: r}, err
	})
	if !shared {
		// Leader: return the typed value directly.
		return out, f.rep, err
	}
	v, _ := f.value.(R)
	f.rep.Shared = true
	return v, f.rep, err
}

// run is the lookup → compute → save state machine for a derived key.
func run[R any](ctx context.Context, m *Manager, rep Report, compute func(context.Context) (R, error)) (R, Report, error) {
	var zero R
	label := rep.Key.Label

	var rec Record[R]
	loadStart := time.Now()
	err := m.store.Lookup(rep.Key, &rec)
	switch {
	case err == nil:
		rep.Hit = true
		rep.LoadTime = time.Since(loadStart)
		rep.Recorded = rec.Stats
		m.hits.Add(1)
		m.opt.Metrics.Hit(label)
		m.opt.Metrics.ObserveSaved(label, rep.Saved())
		if m.opt.Verbosity >= 1 {
			kv := []any{"func", label,
				"hash", rep.HashTime, "load", rep.LoadTime, "saved", rep.Saved()}
			if m.opt.Verbosity >= 2 {
				kv = append(kv, "path", rep.Path)
			}
			m.log.Info("cache hit", kv...)
		}
		return rec.Result, rep, nil

	case errors.Is(err, ErrNotFound):
		// miss

	default:
		m.storageErrs.Add(1)
		op := "lookup"
		var se *StorageError
		if errors.As(err, &se) {
			op = se.Op
		}
		m.opt.Metrics.StorageError(op)
		if m.opt.OnStorageError == Propagate {
			return zero, rep, err
		}
		if m.opt.Verbosity >= 1 {
			m.log.Warn("unreadable cache entry, recomputing", "func", label, "path", rep.Path, "err", err)
		}
	}

	m.misses.Add(1)
	m.opt.Metrics.Miss(label)

	cpu0 := processCPUTime()
	wall0 := time.Now()
	v, err := compute(ctx)
	rep.ComputeWall = time.Since(wall0)
	rep.ComputeCPU = processCPUTime() - cpu0
	if err != nil {
		m.computeErrs.Add(1)
		return v, rep, err
	}
	m.opt.Metrics.ObserveCompute(label, rep.ComputeWall)

	rec = Record[R]{
		Header: Header{
			Digest: rep.Key.Digest.Hex(),
			Label:  label,
			Stats: Stats{
				FunctionName: label,
				TimeWall:     rep.ComputeWall.Seconds(),
				TimeCPU:      rep.ComputeCPU.Seconds(),
				SaveDate:     time.Unix(0, m.opt.Clock.NowUnixNano()),
			},
		},
		Result: v,
	}
	saveStart := time.Now()
	n, err := m.store.Save(rep.Key, &rec)
	rep.SaveTime = time.Since(saveStart)
	if err != nil {
		m.storageErrs.Add(1)
		m.opt.Metrics.StorageError("save")
		if m.opt.OnStorageError == Propagate {
			return v, rep, err
		}
		if m.opt.Verbosity >= 1 {
			m.log.Warn("could not save cache entry", "func", label, "path", rep.Path, "err", err)
		}
		return v, rep, nil
	}
	m.saves.Add(1)
	m.opt.Metrics.Save(label, n)

	if m.opt.Verbosity >= 1 {
		kv := []any{"func", label,
			"hash", rep.HashTime, "wall", rep.ComputeWall, "cpu", rep.ComputeCPU, "save", rep.SaveTime}
		if m.opt.Verbosity >= 2 {
			kv = append(kv, "path", rep.Path)
		}
		m.log.Info("cache miss", kv...)
	}
	return v, rep, nil
}
