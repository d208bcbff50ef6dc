package bus

import (
	"fmt"
	"log/slog"
	"sync"

	"market_sentry/internal/domain"
	"market_sentry/internal/infra"
	"market_sentry/internal/message"
)

// Handler processes one delivered envelope. Errors are logged by the
// subscription worker and never affect other subscribers.
type Handler func(env message.Envelope) error

// subscription owns a buffered inbox drained by a dedicated goroutine, so
// one slow subscriber cannot block the publisher or its siblings.
type subscription struct {
	name    string
	channel string
	handler Handler
	inbox   chan message.Envelope
	done    chan struct{}
}

// Bus is an in-memory publish/subscribe broker. Delivery is at-most-once:
// there is no persistence, and late subscribers miss prior messages.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]*subscription
	closed  bool
	wg      sync.WaitGroup
	metrics *infra.Metrics

	// BufferSize is the per-subscription inbox capacity. When a
	// subscriber falls this far behind, further envelopes are dropped
	// for that subscriber only.
	bufferSize int
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize overrides the default per-subscription inbox capacity.
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *infra.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// New creates an idle bus. It is ready for use immediately; Close releases
// its workers.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:       make(map[string][]*subscription),
		metrics:    infra.GlobalMetrics,
		bufferSize: 256,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish broadcasts env to every current subscriber of channel. It never
// blocks on subscriber processing: each subscription drains its own inbox
// asynchronously. Publishing to a channel with no subscribers is a no-op.
func (b *Bus) Publish(channel string, env message.Envelope) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return domain.ErrBusClosed
	}
	subs := b.subs[channel]
	b.mu.RUnlock()

	b.metrics.RecordPublished()

	if len(subs) == 0 {
		slog.Debug("no subscribers on channel, envelope dropped",
			slog.String("channel", channel),
			slog.String("type", string(env.Type)))
		return nil
	}

	for _, sub := range subs {
		select {
		case sub.inbox <- env:
		default:
			// Subscriber inbox full: drop for this subscriber only.
			b.metrics.RecordDropped()
			slog.Warn("subscriber inbox full, envelope dropped",
				slog.String("channel", channel),
				slog.String("subscriber", sub.name),
				slog.String("message_id", env.ID))
		}
	}
	return nil
}

// Subscribe registers handler under name on channel and starts its worker.
// Multiple handlers per channel are supported; each gets every envelope.
func (b *Bus) Subscribe(channel, name string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return domain.ErrBusClosed
	}

	sub := &subscription{
		name:    name,
		channel: channel,
		handler: handler,
		inbox:   make(chan message.Envelope, b.bufferSize),
		done:    make(chan struct{}),
	}
	b.subs[channel] = append(b.subs[channel], sub)

	b.wg.Add(1)
	go b.worker(sub)

	slog.Info("subscribed",
		slog.String("channel", channel),
		slog.String("subscriber", name))
	return nil
}

// Unsubscribe removes every subscription registered under name on channel.
// Other names on the channel, and the same name on other channels, are
// untouched. Removal is best-effort: envelopes already queued in the
// subscription inbox are still processed before the worker exits.
func (b *Bus) Unsubscribe(channel, name string) {
	b.mu.Lock()
	kept := b.subs[channel][:0]
	var removed []*subscription
	for _, sub := range b.subs[channel] {
		if sub.name == name {
			removed = append(removed, sub)
		} else {
			kept = append(kept, sub)
		}
	}
	if len(kept) == 0 {
		delete(b.subs, channel)
	} else {
		b.subs[channel] = kept
	}
	b.mu.Unlock()

	for _, sub := range removed {
		close(sub.done)
	}
}

// Close stops all subscription workers and waits for them to drain.
// Publishing after Close returns ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*subscription
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.subs = make(map[string][]*subscription)
	b.mu.Unlock()

	for _, sub := range all {
		close(sub.done)
	}
	b.wg.Wait()
	slog.Info("bus closed")
}

// SubscriberCount returns the number of live subscriptions on channel.
func (b *Bus) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

// worker drains one subscription. A handler error or panic is logged and
// the worker keeps running; one subscriber's failure never unsubscribes it
// or affects others.
func (b *Bus) worker(sub *subscription) {
	defer b.wg.Done()

	for {
		select {
		case <-sub.done:
			// Drain what is already queued, then exit.
			for {
				select {
				case env := <-sub.inbox:
					b.deliver(sub, env)
				default:
					return
				}
			}
		case env := <-sub.inbox:
			b.deliver(sub, env)
		}
	}
}

func (b *Bus) deliver(sub *subscription, env message.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.RecordError()
			slog.Error("subscriber panic recovered",
				slog.String("channel", sub.channel),
				slog.String("subscriber", sub.name),
				slog.Any("panic", r))
		}
	}()

	if err := sub.handler(env); err != nil {
		b.metrics.RecordError()
		slog.Error("subscriber failed to process envelope",
			slog.String("channel", sub.channel),
			slog.String("subscriber", sub.name),
			slog.String("message_id", env.ID),
			slog.Any("error", err))
		return
	}
	b.metrics.RecordProcessed()
}

// String describes the bus for debug logging.
func (b *Bus) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, subs := range b.subs {
		total += len(subs)
	}
	return fmt.Sprintf("bus{channels=%d subscriptions=%d}", len(b.subs), total)
}
