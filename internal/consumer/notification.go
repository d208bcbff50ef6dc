package consumer

import (
	"log/slog"
	"time"

	"market_sentry/internal/domain"
	"market_sentry/internal/message"
)

// NotificationConsumer renders alert and lifecycle envelopes into text and
// dispatches them via the webhook notifier. Delivery failures are logged,
// not retried and not surfaced to the publisher.
type NotificationConsumer struct {
	notifier domain.Notifier
}

// NewNotificationConsumer creates a notification sink.
func NewNotificationConsumer(notifier domain.Notifier) *NotificationConsumer {
	return &NotificationConsumer{notifier: notifier}
}

// Name implements Consumer.
func (c *NotificationConsumer) Name() string {
	return "NotificationConsumer"
}

// Channels implements Consumer: alerts and system lifecycle events.
func (c *NotificationConsumer) Channels() []string {
	return []string{
		message.TypeVolatilityAlert.Channel(),
		message.TypeSystemEvent.Channel(),
	}
}

// Process dispatches by envelope type. Shape mismatches are data errors:
// logged and dropped, never a crash.
func (c *NotificationConsumer) Process(env message.Envelope) error {
	switch env.Type {
	case message.TypeVolatilityAlert:
		return c.handleAlert(env)
	case message.TypeSystemEvent:
		return c.handleSystemEvent(env)
	default:
		slog.Warn("notification sink ignoring unexpected envelope",
			slog.String("type", string(env.Type)),
			slog.String("message_id", env.ID))
		return nil
	}
}

func (c *NotificationConsumer) handleAlert(env message.Envelope) error {
	alert, err := env.Alert()
	if err != nil {
		slog.Warn("notification sink dropping malformed alert",
			slog.String("message_id", env.ID),
			slog.Any("error", err))
		return nil
	}

	if err := c.notifier.SendAlert(alert); err != nil {
		slog.Error("alert notification failed",
			slog.String("symbol", alert.Symbol),
			slog.Any("error", err))
		return nil
	}

	slog.Info("alert notification sent",
		slog.String("symbol", alert.Symbol),
		slog.Float64("change", alert.CurrentChange))
	return nil
}

func (c *NotificationConsumer) handleSystemEvent(env message.Envelope) error {
	ev, err := env.SystemEvent()
	if err != nil {
		slog.Warn("notification sink dropping malformed system event",
			slog.String("message_id", env.ID),
			slog.Any("error", err))
		return nil
	}

	switch ev.EventType {
	case domain.EventSystemStart:
		if err := c.notifier.SendStartup(); err != nil {
			slog.Error("startup notification failed", slog.Any("error", err))
		}
	case domain.EventSystemShutdown:
		at := env.Timestamp
		if at.IsZero() {
			at = time.Now().UTC()
		}
		if err := c.notifier.SendShutdown(at); err != nil {
			slog.Error("shutdown notification failed", slog.Any("error", err))
		}
	default:
		slog.Debug("unhandled system event", slog.String("event_type", ev.EventType))
	}
	return nil
}
