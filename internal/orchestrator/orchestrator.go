package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"market_sentry/internal/bus"
	"market_sentry/internal/consumer"
	"market_sentry/internal/domain"
	"market_sentry/internal/message"
	"market_sentry/internal/producer"
)

// SourceName identifies the orchestrator as an envelope source.
const SourceName = "Orchestrator"

// Orchestrator wires producers and consumers to the bus and manages their
// lifecycle. Consumers subscribe before any producer starts: the bus has
// no persistence, so registration order relative to the first publishes is
// an observable correctness concern.
type Orchestrator struct {
	bus          *bus.Bus
	consumers    []consumer.Consumer
	runners      []*producer.Runner
	drainTimeout time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates an orchestrator owning the bus lifecycle.
func New(b *bus.Bus, drainTimeout time.Duration) *Orchestrator {
	if drainTimeout <= 0 {
		drainTimeout = 5 * time.Second
	}
	return &Orchestrator{
		bus:          b,
		drainTimeout: drainTimeout,
	}
}

// AddConsumer registers a consumer to be subscribed at start.
func (o *Orchestrator) AddConsumer(c consumer.Consumer) {
	o.consumers = append(o.consumers, c)
}

// AddRunner registers a hosted producer.
func (o *Orchestrator) AddRunner(r *producer.Runner) {
	o.runners = append(o.runners, r)
}

// Start subscribes every consumer, starts every producer, then announces
// system_start once both sides are live.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return nil
	}

	if err := o.subscribeConsumers(); err != nil {
		return err
	}

	for _, r := range o.runners {
		r.Start(ctx)
	}

	o.publishSystemEvent(domain.EventSystemStart)
	o.started = true
	slog.Info("system started",
		slog.Int("producers", len(o.runners)),
		slog.Int("consumers", len(o.consumers)))
	return nil
}

// Stop shuts the pipeline down: producers first, then the shutdown
// announcement while consumers are still subscribed (a notice published
// after unsubscribing could never be delivered on this bus), then the bus
// itself, which drains queued envelopes before releasing its workers.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	o.stopped = true

	for _, r := range o.runners {
		r.Stop()
	}

	o.publishSystemEvent(domain.EventSystemShutdown)

	// Bounded grace period for in-flight subscriber work.
	time.Sleep(o.drainTimeout)

	o.bus.Close()
	slog.Info("system stopped")
}

// RunOnce executes a single production pass per producer and terminates
// after a bounded wait for in-flight processing to drain.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	o.mu.Lock()
	if err := o.subscribeConsumers(); err != nil {
		o.mu.Unlock()
		return err
	}
	o.publishSystemEvent(domain.EventSystemStart)
	o.started = true
	o.mu.Unlock()

	for _, r := range o.runners {
		r.RunOnce(ctx)
	}

	time.Sleep(o.drainTimeout)
	o.Stop()
	return nil
}

func (o *Orchestrator) subscribeConsumers() error {
	for _, c := range o.consumers {
		for _, channel := range c.Channels() {
			if err := o.bus.Subscribe(channel, c.Name(), c.Process); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) publishSystemEvent(eventType string) {
	producers := make([]string, 0, len(o.runners))
	for _, r := range o.runners {
		producers = append(producers, r.Name())
	}
	consumers := make([]string, 0, len(o.consumers))
	for _, c := range o.consumers {
		consumers = append(consumers, c.Name())
	}

	env, err := message.NewSystemEvent(SourceName, eventType, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"producers": producers,
		"consumers": consumers,
	})
	if err != nil {
		slog.Error("failed to build system event", slog.Any("error", err))
		return
	}
	if err := o.bus.Publish(message.TypeSystemEvent.Channel(), env); err != nil {
		slog.Error("failed to publish system event",
			slog.String("event", eventType),
			slog.Any("error", err))
	}
}
