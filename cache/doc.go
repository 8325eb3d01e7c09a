// Package cache provides disk-backed memoization of expensive pure
// functions. A call is identified by a structural digest of the callee's
// source and its arguments (see package hashing); results are stored as
// files under a cache directory, so they survive restarts and can be shared
// by every process pointed at the same directory.
//
// Design
//
//   - Keys: KeyFor folds the callee identity, the positional arguments and
//     the keyword arguments into one SHA-256 digest. Editing a function's
//     body, or passing structurally different arguments, changes the key.
//
//   - Storage: Store shards entries by the first two hex characters of the
//     digest: <dir>/<2-hex>/<16-hex>.<label>.<ext>. Each save writes a temp
//     file in the shard, fsyncs it and renames it into place, so a reader
//     sees either no entry or a complete one. Concurrent writers of the same
//     key race benignly.
//
//   - Codec: records are gob-encoded inside a zstd stream by default
//     (GobCodec). gzip and uncompressed variants are available; results held
//     in interface-typed fields need gob.Register.
//
//   - Errors: a missing entry is a miss, never an error. Unreadable entries
//     and failed saves are *StorageError values and follow
//     Options.OnStorageError. Errors from the memoized function are returned
//     unchanged and nothing is cached. Arguments that cannot be hashed fail
//     with hashing.UnsupportedTypeError before the function runs.
//
//   - Single-flight: with Options.SingleFlight, concurrent calls with the
//     same key inside one process share a single computation. Across
//     processes duplicate computation is possible and harmless.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Bypass/Save/StorageError
//     signals and compute/saved durations. NoopMetrics is the default; the
//     metrics/prom adapter exports them to Prometheus.
//
//   - No eviction: entries live until the directory is cleaned by hand.
//
// Basic usage
//
//	m, err := cache.New(cache.Options{Dir: "/var/cache/myapp", Verbosity: 1})
//	if err != nil { ... }
//
//	invert := cache.Wrap1(m, func(ctx context.Context, x [][]float64) ([][]float64, error) {
//	    return linalg.Invert(x)
//	})
//	inv, err := invert(ctx, matrix) // computed and saved
//	inv, err = invert(ctx, matrix)  // loaded from disk
//
// Calling any function reflectively
//
//	sum, err := cache.Cached[float64](ctx, m, stats.Sum, samples)
//
// Full control
//
//	callee, _ := hashing.FuncOf(render)
//	img, rep, err := cache.Do(ctx, m, cache.Call{
//	    Callee: callee,
//	    Args:   []any{scene},
//	    Kwargs: map[string]any{"width": 1920, "height": 1080},
//	}, func(ctx context.Context) (Image, error) {
//	    return render(scene, 1920, 1080)
//	})
//	if rep.Hit {
//	    fmt.Println("saved", rep.Saved())
//	}
//
// From the environment
//
//	m, err := cache.NewFromEnv() // MEMOCACHE_DIR, MEMOCACHE_VERBOSE, MEMOCACHE_DISABLE, ...
package cache
