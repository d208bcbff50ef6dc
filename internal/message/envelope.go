package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"market_sentry/internal/domain"
)

// Type discriminates the payload carried by an envelope. The canonical
// string doubles as the bus channel name for that payload kind.
type Type string

const (
	TypePriceData           Type = "price_data"
	TypeHistoricalPriceData Type = "historical_price_data"
	TypeVolatilityAlert     Type = "volatility_alert"
	TypeSystemEvent         Type = "system_event"
	TypeTaskRequest         Type = "task_request"
	TypeTaskResult          Type = "task_result"
)

// Channel returns the bus channel envelopes of this type travel on.
func (t Type) Channel() string {
	return string(t)
}

// IsValid reports whether t is part of the wire vocabulary.
func (t Type) IsValid() bool {
	switch t {
	case TypePriceData, TypeHistoricalPriceData, TypeVolatilityAlert,
		TypeSystemEvent, TypeTaskRequest, TypeTaskResult:
		return true
	}
	return false
}

// Envelope is the transport wrapper carried over the bus. The payload stays
// raw until a consumer decodes it into the concrete type matching Type.
type Envelope struct {
	ID        string          `json:"message_id"`
	Type      Type            `json:"message_type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
}

// New wraps payload into an envelope with a fresh ID and UTC timestamp.
func New(t Type, source string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Envelope{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Payload:   raw,
	}, nil
}

// NewPriceData wraps a live tick.
func NewPriceData(source string, tick domain.PriceTick) (Envelope, error) {
	return New(TypePriceData, source, tick)
}

// NewHistoricalPriceData wraps a backfilled tick. Consumers may branch on
// the sub-kind for logging, but the payload shape is identical to a live tick.
func NewHistoricalPriceData(source string, tick domain.PriceTick) (Envelope, error) {
	return New(TypeHistoricalPriceData, source, tick)
}

// NewAlert wraps a volatility alert.
func NewAlert(source string, alert domain.Alert) (Envelope, error) {
	return New(TypeVolatilityAlert, source, alert)
}

// NewSystemEvent wraps a lifecycle event.
func NewSystemEvent(source, eventType string, data map[string]any) (Envelope, error) {
	return New(TypeSystemEvent, source, domain.SystemEvent{
		EventType: eventType,
		EventData: data,
	})
}

// Encode serializes the envelope to its JSON wire shape.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an envelope from its wire shape and rejects unknown types.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if !e.Type.IsValid() {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, string(e.Type))
	}
	return e, nil
}
