package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"time"

	"github.com/IvanBrykalov/memocache/cache"
	pmet "github.com/IvanBrykalov/memocache/metrics/prom"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type benchFlags struct {
	workers     int
	duration    time.Duration
	keys        uint64
	zipfS       float64
	zipfV       float64
	seed        int64
	work        int
	singleFlt   bool
	pprofAddr   string
	metricsAddr string
}

func newBenchCmd(a *app) *cobra.Command {
	var f benchFlags
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic memoized workload against the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, a, f)
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.workers, "workers", runtime.GOMAXPROCS(0), "number of worker goroutines")
	fl.DurationVar(&f.duration, "duration", 10*time.Second, "benchmark duration")
	fl.Uint64Var(&f.keys, "keys", 1_000, "distinct argument values")
	fl.Float64Var(&f.zipfS, "zipf_s", 1.1, "Zipf s > 1 (skew)")
	fl.Float64Var(&f.zipfV, "zipf_v", 1.0, "Zipf v")
	fl.Int64Var(&f.seed, "seed", time.Now().UnixNano(), "random seed")
	fl.IntVar(&f.work, "work", 200_000, "iterations of the synthetic computation")
	fl.BoolVar(&f.singleFlt, "single-flight", false, "coalesce concurrent computations of one key")
	fl.StringVar(&f.pprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	fl.StringVar(&f.metricsAddr, "http", "", "serve Prometheus metrics at addr (e.g. :8080); empty = disabled")
	_ = a.v.BindPFlag("single_flight", fl.Lookup("single-flight"))
	return cmd
}

// work is the synthetic expensive function being memoized.
func work(ctx context.Context, seed int, iterations int) ([]float64, error) {
	out := make([]float64, 8)
	x := float64(seed) + 1
	for i := 0; i < iterations; i++ {
		if i%65536 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		x = math.Sqrt(x*x+float64(i)) + math.Sin(x)
		out[i%len(out)] += x
	}
	return out, nil
}

func runBench(cmd *cobra.Command, a *app, f benchFlags) error {
	log := a.logger

	if f.pprofAddr != "" {
		go func() {
			log.Info("pprof: serving", "addr", f.pprofAddr)
			log.Error("pprof server stopped", "err", http.ListenAndServe(f.pprofAddr, nil))
		}()
	}

	opt := a.opt
	if f.singleFlt {
		opt.SingleFlight = true
	}
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opt.Metrics = pmet.New(reg, "memocache", "bench", nil)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.Info("metrics: serving", "addr", f.metricsAddr)
			log.Error("metrics server stopped", "err", http.ListenAndServe(f.metricsAddr, mux))
		}()
	}
	// Per-call hit/miss lines would drown the summary.
	if opt.Verbosity == 1 {
		opt.Verbosity = 0
	}

	m, err := cache.New(opt)
	if err != nil {
		return err
	}
	memo := cache.Wrap2(m, work)

	workers := f.workers
	if workers <= 0 {
		workers = 1
	}
	keysMax := f.keys - 1
	if f.keys == 0 {
		keysMax = 0
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.duration)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(f.seed + int64(w)*9973))
			zipf := rand.NewZipf(r, f.zipfS, f.zipfV, keysMax)
			for gctx.Err() == nil {
				if _, err := memo(gctx, int(zipf.Uint64()), f.work); err != nil {
					if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := m.Stats()
	calls := st.Hits + st.Misses
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "dir=%s workers=%d keys=%d dur=%v seed=%d\n", opt.Dir, workers, f.keys, elapsed.Round(time.Millisecond), f.seed)
	fmt.Fprintf(out, "calls=%s (%.0f calls/s)  hits=%s  misses=%s  hit-rate=%.2f%%\n",
		humanize.Comma(calls), float64(calls)/elapsed.Seconds(),
		humanize.Comma(st.Hits), humanize.Comma(st.Misses), st.HitRate()*100)
	fmt.Fprintf(out, "saves=%s  storage-errors=%d\n", humanize.Comma(st.Saves), st.StorageErrors)
	if st.StorageErrors > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: storage errors occurred; rerun with --verbose 2 for details")
	}
	return nil
}
