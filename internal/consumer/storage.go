package consumer

import (
	"log/slog"

	"market_sentry/internal/domain"
	"market_sentry/internal/message"
)

// StorageConsumer persists every price tick that crosses the bus, both
// live and backfilled. Idempotency is not guaranteed at this layer:
// re-delivery produces duplicate rows.
type StorageConsumer struct {
	store domain.PriceAppender
}

// NewStorageConsumer creates a storage sink writing through store.
func NewStorageConsumer(store domain.PriceAppender) *StorageConsumer {
	return &StorageConsumer{store: store}
}

// Name implements Consumer.
func (c *StorageConsumer) Name() string {
	return "StorageConsumer"
}

// Channels implements Consumer: live and historical price data.
func (c *StorageConsumer) Channels() []string {
	return []string{
		message.TypePriceData.Channel(),
		message.TypeHistoricalPriceData.Channel(),
	}
}

// Process decodes the tick and appends it. Malformed envelopes are logged
// and dropped; store failures are logged by the bus worker.
func (c *StorageConsumer) Process(env message.Envelope) error {
	tick, err := env.PriceTick()
	if err != nil {
		slog.Warn("storage sink dropping malformed envelope",
			slog.String("message_id", env.ID),
			slog.Any("error", err))
		return nil
	}

	if err := c.store.SavePrice(tick); err != nil {
		return err
	}

	if env.Type == message.TypeHistoricalPriceData {
		slog.Debug("historical tick persisted",
			slog.String("symbol", tick.Symbol),
			slog.Time("ts", tick.Timestamp))
	} else {
		slog.Debug("tick persisted",
			slog.String("symbol", tick.Symbol),
			slog.Time("ts", tick.Timestamp))
	}
	return nil
}
