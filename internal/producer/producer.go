package producer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"market_sentry/internal/bus"
	"market_sentry/internal/message"
)

// Producer is the capability interface for price-data sources. Each call
// to Produce fetches from the market-data collaborator and returns the
// resulting envelopes; the Runner publishes them.
type Producer interface {
	Name() string
	Produce(ctx context.Context) ([]message.Envelope, error)
}

// Runner hosts one producer on its own goroutine: an optional immediate
// pass at start, then a fixed-interval loop. Stopping is cooperative; an
// in-flight fetch completes before the stop takes effect.
type Runner struct {
	producer   Producer
	bus        *bus.Bus
	interval   time.Duration
	runAtStart bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner wraps producer for periodic execution.
func NewRunner(p Producer, b *bus.Bus, interval time.Duration, runAtStart bool) *Runner {
	return &Runner{
		producer:   p,
		bus:        b,
		interval:   interval,
		runAtStart: runAtStart,
	}
}

// Name returns the hosted producer's name.
func (r *Runner) Name() string {
	return r.producer.Name()
}

// Start launches the production loop.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if r.runAtStart {
			r.RunOnce(ctx)
		}

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("producer stopped", slog.String("producer", r.producer.Name()))
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()

	slog.Info("producer started",
		slog.String("producer", r.producer.Name()),
		slog.Duration("interval", r.interval))
}

// RunOnce executes a single produce-and-publish pass. Failures are logged
// and swallowed; the next tick retries naturally.
func (r *Runner) RunOnce(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("producer panic recovered",
				slog.String("producer", r.producer.Name()),
				slog.Any("panic", rec))
		}
	}()

	envs, err := r.producer.Produce(ctx)
	if err != nil {
		slog.Error("production pass failed",
			slog.String("producer", r.producer.Name()),
			slog.Any("error", err))
		return
	}

	for _, env := range envs {
		if err := r.bus.Publish(env.Type.Channel(), env); err != nil {
			slog.Error("failed to publish envelope",
				slog.String("producer", r.producer.Name()),
				slog.String("channel", env.Type.Channel()),
				slog.Any("error", err))
		}
	}

	slog.Debug("production pass complete",
		slog.String("producer", r.producer.Name()),
		slog.Int("envelopes", len(envs)))
}

// Stop cancels the loop and waits for the current pass to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
		r.wg.Wait()
	}
}
