package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goClone "github.com/MrEthical07/goClone"
	"github.com/MrEthical07/goClone/internal/testimpl"
	"github.com/MrEthical07/goClone/permission"
	"github.com/MrEthical07/goClone/selector"
	"github.com/spf13/cobra"
)

func loadtestCmd(opts *rootOptions) *cobra.Command {
	var (
		proxies     int
		concurrency int
		ops         int
	)

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure proxy call latency against the configured backend",
		Long: `loadtest clones --proxies proxies with mask 0b1010 over TestImplV1 and
runs two phases of --ops calls each across --concurrency workers:

  permitted  func12() on a random proxy (must succeed)
  denied     func11() on a random proxy (must be rejected)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if proxies <= 0 || concurrency <= 0 || ops <= 0 {
				return errors.New("proxies, concurrency, and ops must be > 0")
			}

			env, err := opts.environment()
			if err != nil {
				return err
			}
			defer env.Close()

			f, err := env.builder.WithImplementation(testimpl.V1()).BuildContext(cmd.Context())
			if err != nil {
				return fmt.Errorf("deploy factory: %w", err)
			}
			defer f.Close()

			return runLoadtest(cmd.Context(), f, cmd.OutOrStdout(), proxies, concurrency, ops)
		},
	}

	cmd.Flags().IntVar(&proxies, "proxies", 100, "number of proxies to clone")
	cmd.Flags().IntVar(&concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&ops, "ops", 20000, "calls per phase")
	return cmd
}

func runLoadtest(ctx context.Context, f *goClone.Factory, out io.Writer, proxies, concurrency, ops int) error {
	mask, err := permission.ParseMask(f.MaskBits(), "0b1010")
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "cloning %d proxies...\n", proxies)
	startClone := time.Now()
	clones := make([]*goClone.Proxy, proxies)
	for i := range clones {
		p, err := f.Clone(ctx, mask)
		if err != nil {
			return fmt.Errorf("clone %d: %w", i, err)
		}
		clones[i] = p
	}
	fmt.Fprintf(out, "cloned in %s\n", time.Since(startClone).Round(time.Millisecond))

	permitted := runPhase(ctx, clones, selector.FromSignature("func12()"), ops, concurrency, nil)
	denied := runPhase(ctx, clones, selector.FromSignature("func11()"), ops, concurrency, goClone.ErrNoPermission)

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "permitted", permitted)
	printStats(out, "denied", denied)
	return nil
}

// runPhase issues ops calls of sel spread over random proxies. A call counts
// as a failure unless its error matches want.
func runPhase(ctx context.Context, clones []*goClone.Proxy, sel selector.Selector, ops, concurrency int, want error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				p := clones[r.Intn(len(clones))]
				t0 := time.Now()
				_, err := p.Call(ctx, sel, nil)
				d := time.Since(t0)
				if !errors.Is(err, want) {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	s := phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
	}
	if total > 0 {
		s.opsPerS = float64(len(samples)) / total.Seconds()
	}
	return s
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
