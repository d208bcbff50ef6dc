package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"market_sentry/internal/bus"
	"market_sentry/internal/consumer"
	"market_sentry/internal/domain"
	"market_sentry/internal/message"
	"market_sentry/internal/producer"
)

// recordingConsumer counts lifecycle events it sees on the bus.
type recordingConsumer struct {
	name      string
	channels  []string
	starts    atomic.Int64
	shutdowns atomic.Int64
	envelopes atomic.Int64
}

func (c *recordingConsumer) Name() string       { return c.name }
func (c *recordingConsumer) Channels() []string { return c.channels }

func (c *recordingConsumer) Process(env message.Envelope) error {
	c.envelopes.Add(1)
	if env.Type == message.TypeSystemEvent {
		ev, err := env.SystemEvent()
		if err != nil {
			return err
		}
		switch ev.EventType {
		case domain.EventSystemStart:
			c.starts.Add(1)
		case domain.EventSystemShutdown:
			c.shutdowns.Add(1)
		}
	}
	return nil
}

// stubProducer emits a fixed tick per pass.
type stubProducer struct {
	name   string
	passes atomic.Int64
}

func (p *stubProducer) Name() string { return p.name }

func (p *stubProducer) Produce(ctx context.Context) ([]message.Envelope, error) {
	p.passes.Add(1)
	env, err := message.NewPriceData(p.name, domain.PriceTick{
		Symbol:    "BTCUSDT",
		Market:    "CRYPTO",
		Timestamp: time.Now().UTC(),
		Close:     50000,
		Frequency: domain.FrequencyMinute,
	})
	if err != nil {
		return nil, err
	}
	return []message.Envelope{env}, nil
}

var _ consumer.Consumer = (*recordingConsumer)(nil)

func TestStartAndStopLifecycle(t *testing.T) {
	b := bus.New()
	orch := New(b, 50*time.Millisecond)

	sink := &recordingConsumer{name: "sink", channels: []string{message.TypeSystemEvent.Channel()}}
	orch.AddConsumer(sink)

	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	orch.Stop()

	// The start event and the shutdown event must both reach the sink:
	// consumers subscribe before the start announcement, and the shutdown
	// notice goes out before the bus closes.
	if got := sink.starts.Load(); got != 1 {
		t.Errorf("start events = %d, want 1", got)
	}
	if got := sink.shutdowns.Load(); got != 1 {
		t.Errorf("shutdown events = %d, want 1", got)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	b := bus.New()
	orch := New(b, 10*time.Millisecond)

	sink := &recordingConsumer{name: "sink", channels: []string{message.TypeSystemEvent.Channel()}}
	orch.AddConsumer(sink)

	orch.Start(context.Background())
	orch.Start(context.Background())
	defer orch.Stop()

	time.Sleep(50 * time.Millisecond)
	if got := sink.starts.Load(); got != 1 {
		t.Errorf("start events after double Start = %d, want 1", got)
	}
	if got := b.SubscriberCount(message.TypeSystemEvent.Channel()); got != 1 {
		t.Errorf("subscriptions = %d, want 1", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	b := bus.New()
	orch := New(b, 10*time.Millisecond)
	orch.AddConsumer(&recordingConsumer{name: "sink", channels: []string{message.TypeSystemEvent.Channel()}})

	orch.Start(context.Background())
	orch.Stop()
	orch.Stop() // must not panic or double-close the bus
}

func TestProducersFlowToConsumers(t *testing.T) {
	b := bus.New()
	orch := New(b, 50*time.Millisecond)

	sink := &recordingConsumer{name: "sink", channels: []string{message.TypePriceData.Channel()}}
	orch.AddConsumer(sink)

	p := &stubProducer{name: "stub"}
	orch.AddRunner(producer.NewRunner(p, b, time.Hour, true))

	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sink.envelopes.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	orch.Stop()

	if sink.envelopes.Load() == 0 {
		t.Error("producer envelope never reached the consumer")
	}
}

func TestRunOnce(t *testing.T) {
	b := bus.New()
	orch := New(b, 50*time.Millisecond)

	prices := &recordingConsumer{name: "prices", channels: []string{message.TypePriceData.Channel()}}
	lifecycle := &recordingConsumer{name: "lifecycle", channels: []string{message.TypeSystemEvent.Channel()}}
	orch.AddConsumer(prices)
	orch.AddConsumer(lifecycle)

	p := &stubProducer{name: "stub"}
	orch.AddRunner(producer.NewRunner(p, b, time.Hour, false))

	if err := orch.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if got := p.passes.Load(); got != 1 {
		t.Errorf("producer passes = %d, want exactly 1", got)
	}
	if got := prices.envelopes.Load(); got != 1 {
		t.Errorf("price envelopes = %d, want 1", got)
	}
	if lifecycle.starts.Load() != 1 || lifecycle.shutdowns.Load() != 1 {
		t.Errorf("lifecycle events = %d/%d, want 1/1",
			lifecycle.starts.Load(), lifecycle.shutdowns.Load())
	}

	// The bus is closed after a one-shot pass.
	env, _ := message.NewSystemEvent("test", "noise", nil)
	if err := b.Publish(message.TypeSystemEvent.Channel(), env); err == nil {
		t.Error("bus still accepts publishes after RunOnce")
	}
}
