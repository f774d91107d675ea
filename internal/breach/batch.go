package breach

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bl4ck0w1/vaultlynx/pkg/models"
	"github.com/bl4ck0w1/vaultlynx/pkg/utils"
)

type BatchConfig struct {
	BatchSize  int
	Stagger    time.Duration
	BatchPause time.Duration
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{BatchSize: 5, Stagger: 200 * time.Millisecond, BatchPause: 1500 * time.Millisecond}
}

type BatchChecker struct {
	checker LeakChecker
	cfg     BatchConfig
	logger  *logrus.Logger
}

func NewBatchChecker(checker LeakChecker, cfg BatchConfig, logger *logrus.Logger) *BatchChecker {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchConfig().BatchSize
	}
	if cfg.Stagger < 0 {
		cfg.Stagger = 0
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	return &BatchChecker{checker: checker, cfg: cfg, logger: logger}
}

// BatchCheck looks up every candidate and returns counts keyed by candidate index.
// Batches run one after another: items inside a batch run concurrently, starts after the
// first batch are staggered, and a pause separates consecutive batches. Failed lookups
// are reported as ErrorCount. The error is non-nil only when ctx ends; batches that were
// never dispatched are then missing from the map.
func (b *BatchChecker) BatchCheck(ctx context.Context, candidates []models.PasswordCandidate, progress func(done, total int)) (map[int]int, error) {
	results := make(map[int]int, len(candidates))
	batches := utils.BatchSlice(candidates, b.cfg.BatchSize)
	total := len(candidates)

	var (
		mu   sync.Mutex
		done int
	)
	record := func(index, count int) {
		mu.Lock()
		defer mu.Unlock()
		results[index] = count
		done++
		if progress != nil {
			progress(done, total)
		}
	}

	for bi, batch := range batches {
		if err := ctx.Err(); err != nil {
			return snapshot(&mu, results), err
		}

		var pacer *rate.Limiter
		if bi > 0 && b.cfg.Stagger > 0 {
			pacer = rate.NewLimiter(rate.Every(b.cfg.Stagger), 1)
		}

		var g errgroup.Group
		for _, c := range batch {
			c := c
			if pacer != nil {
				if err := pacer.Wait(ctx); err != nil {
					_ = g.Wait()
					return snapshot(&mu, results), ctx.Err()
				}
			}
			g.Go(func() error {
				record(c.Index, b.checker.CheckLeak(ctx, c.Password))
				return nil
			})
		}
		_ = g.Wait()

		b.logger.WithFields(logrus.Fields{
			"batch":   bi + 1,
			"batches": len(batches),
			"items":   len(batch),
		}).Debug("breach batch complete")

		if bi < len(batches)-1 {
			if err := sleepCtx(ctx, b.cfg.BatchPause); err != nil {
				return snapshot(&mu, results), err
			}
		}
	}
	return snapshot(&mu, results), ctx.Err()
}

func snapshot(mu *sync.Mutex, m map[int]int) map[int]int {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
