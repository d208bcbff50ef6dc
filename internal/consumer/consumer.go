package consumer

import "market_sentry/internal/message"

// Consumer is the capability interface for bus subscribers. The
// orchestrator holds consumers polymorphically and registers Process as
// the handler on every channel the consumer names.
type Consumer interface {
	Name() string
	Channels() []string
	Process(env message.Envelope) error
}
