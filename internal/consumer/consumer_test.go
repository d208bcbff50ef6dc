package consumer

import (
	"errors"
	"testing"
	"time"

	"market_sentry/internal/domain"
	"market_sentry/internal/message"
)

func testTick() domain.PriceTick {
	return domain.PriceTick{
		Symbol:    "BTCUSDT",
		Market:    "CRYPTO",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Open:      50000,
		High:      50600,
		Low:       49900,
		Close:     50500,
		Volume:    10,
		Frequency: domain.FrequencyMinute,
	}
}

type fakeStore struct {
	saved []domain.PriceTick
	err   error
}

func (f *fakeStore) SavePrice(tick domain.PriceTick) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, tick)
	return nil
}

type fakeNotifier struct {
	alerts    []domain.Alert
	startups  int
	shutdowns []time.Time
	err       error
}

func (f *fakeNotifier) SendAlert(alert domain.Alert) error {
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeNotifier) SendStartup() error {
	if f.err != nil {
		return f.err
	}
	f.startups++
	return nil
}

func (f *fakeNotifier) SendShutdown(at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.shutdowns = append(f.shutdowns, at)
	return nil
}

func TestStorageConsumerChannels(t *testing.T) {
	c := NewStorageConsumer(&fakeStore{})
	channels := c.Channels()
	if len(channels) != 2 {
		t.Fatalf("Channels = %v, want price_data and historical_price_data", channels)
	}
	want := map[string]bool{"price_data": true, "historical_price_data": true}
	for _, ch := range channels {
		if !want[ch] {
			t.Errorf("unexpected channel %q", ch)
		}
	}
}

func TestStorageConsumerPersists(t *testing.T) {
	store := &fakeStore{}
	c := NewStorageConsumer(store)

	live, _ := message.NewPriceData("CryptoProducer", testTick())
	hist, _ := message.NewHistoricalPriceData("DailyHistoryProducer", testTick())

	if err := c.Process(live); err != nil {
		t.Fatalf("Process(live) failed: %v", err)
	}
	if err := c.Process(hist); err != nil {
		t.Fatalf("Process(historical) failed: %v", err)
	}
	if len(store.saved) != 2 {
		t.Errorf("saved %d ticks, want 2", len(store.saved))
	}
}

func TestStorageConsumerDropsMalformed(t *testing.T) {
	store := &fakeStore{}
	c := NewStorageConsumer(store)

	// Alert payload on a price channel: log and drop, no error.
	env, _ := message.NewAlert("e", domain.Alert{Symbol: "X", Frequency: domain.FrequencyMinute})
	env.Type = message.TypePriceData

	if err := c.Process(env); err != nil {
		t.Errorf("malformed envelope returned error: %v", err)
	}
	if len(store.saved) != 0 {
		t.Errorf("malformed envelope was persisted")
	}
}

func TestStorageConsumerSurfacesStoreError(t *testing.T) {
	wantErr := errors.New("disk full")
	c := NewStorageConsumer(&fakeStore{err: wantErr})

	env, _ := message.NewPriceData("p", testTick())
	if err := c.Process(env); !errors.Is(err, wantErr) {
		t.Errorf("Process err = %v, want store error", err)
	}
}

func TestNotificationConsumerAlert(t *testing.T) {
	n := &fakeNotifier{}
	c := NewNotificationConsumer(n)

	alert := domain.Alert{
		Symbol: "600519", Name: "贵州茅台", Frequency: domain.FrequencyMinute,
		CurrentChange: 2.5, Threshold: 2.0,
		CurrentPrice: 1752.0, PreviousPrice: 1709.0,
		Timestamp: time.Now().UTC(),
	}
	env, _ := message.NewAlert("VolatilityEngine", alert)

	if err := c.Process(env); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(n.alerts) != 1 || n.alerts[0].Symbol != "600519" {
		t.Errorf("alerts = %+v, want the dispatched alert", n.alerts)
	}
}

func TestNotificationConsumerSystemEvents(t *testing.T) {
	n := &fakeNotifier{}
	c := NewNotificationConsumer(n)

	start, _ := message.NewSystemEvent("Orchestrator", domain.EventSystemStart, nil)
	if err := c.Process(start); err != nil {
		t.Fatalf("Process(start) failed: %v", err)
	}
	if n.startups != 1 {
		t.Errorf("startups = %d, want 1", n.startups)
	}

	stop, _ := message.NewSystemEvent("Orchestrator", domain.EventSystemShutdown, nil)
	if err := c.Process(stop); err != nil {
		t.Fatalf("Process(stop) failed: %v", err)
	}
	if len(n.shutdowns) != 1 {
		t.Fatalf("shutdowns = %d, want 1", len(n.shutdowns))
	}
	if !n.shutdowns[0].Equal(stop.Timestamp) {
		t.Errorf("shutdown time = %v, want envelope timestamp %v", n.shutdowns[0], stop.Timestamp)
	}

	// Unknown lifecycle events are ignored without error.
	other, _ := message.NewSystemEvent("Orchestrator", "config_reloaded", nil)
	if err := c.Process(other); err != nil {
		t.Errorf("unknown event type returned error: %v", err)
	}
	if n.startups != 1 || len(n.shutdowns) != 1 {
		t.Error("unknown event triggered a notification")
	}
}

func TestNotificationConsumerSwallowsDeliveryFailure(t *testing.T) {
	n := &fakeNotifier{err: errors.New("webhook down")}
	c := NewNotificationConsumer(n)

	env, _ := message.NewAlert("e", domain.Alert{
		Symbol: "BTCUSDT", Frequency: domain.FrequencyMinute, Timestamp: time.Now().UTC(),
	})
	if err := c.Process(env); err != nil {
		t.Errorf("delivery failure surfaced to bus: %v", err)
	}
}
