package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/ldsarchive/talkscraper/internal/metrics"
	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// Config tunes pool size, pacing between requests, and retry behavior.
type Config struct {
	Concurrency    int
	Pace           time.Duration // pause each worker takes between tasks
	TaskTimeout    time.Duration
	RetryAttempts  uint
	RetryBaseDelay time.Duration
	Sources        map[scraper.Locale][]string
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 60 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 2 * time.Second
	}
	return c
}

// runPool fans items out to cfg.Concurrency workers. A task returning a
// non-nil error is fatal: the pool context is canceled and the first such
// error is returned. Recoverable per-item failures are handled inside the
// task and reported as nil.
func runPool[T any](ctx context.Context, cfg Config, items []T, task func(ctx context.Context, item T) error) error {
	if len(items) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan T)
	var wg sync.WaitGroup
	var once sync.Once
	var fatal error

	workers := cfg.Concurrency
	if workers > len(items) {
		workers = len(items)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			for item := range ch {
				if err := task(ctx, item); err != nil {
					once.Do(func() {
						fatal = err
						cancel()
					})
					return
				}
				if !pause(ctx, cfg.Pace) {
					return
				}
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case ch <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(ch)
	wg.Wait()

	if fatal != nil {
		return fatal
	}
	return ctx.Err()
}

// pause sleeps for d unless the context ends first. Returns false on
// cancellation.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// attempt runs fn under the per-task timeout, retrying transient failures
// with backoff. Structural failures (parse errors, missing fields) surface
// immediately.
func (p *Pipeline) attempt(ctx context.Context, phase string, fn func(ctx context.Context) error) error {
	cfg := p.cfg
	return retry.Do(
		func() error {
			tctx, cancel := context.WithTimeout(ctx, cfg.TaskTimeout)
			defer cancel()
			return fn(tctx)
		},
		retry.Context(ctx),
		retry.Attempts(cfg.RetryAttempts),
		retry.Delay(cfg.RetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(scraper.IsTransient),
		retry.OnRetry(func(n uint, err error) {
			metrics.ObserveRetry(phase)
			p.logger.Warn("retrying after transient failure",
				zap.String("phase", phase),
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	)
}
