package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"market_sentry/internal/domain"
)

var (
	// ErrUnknownType is returned for envelopes outside the wire vocabulary.
	ErrUnknownType = errors.New("unknown message type")

	// ErrTypeMismatch is returned when an envelope's declared type does not
	// match the requested payload shape. Consumers treat this as a data
	// error: log and drop, never crash.
	ErrTypeMismatch = errors.New("payload does not match message type")
)

// PriceTick decodes the payload of a price_data or historical_price_data
// envelope.
func (e Envelope) PriceTick() (domain.PriceTick, error) {
	if e.Type != TypePriceData && e.Type != TypeHistoricalPriceData {
		return domain.PriceTick{}, fmt.Errorf("%w: have %s, want price data", ErrTypeMismatch, e.Type)
	}
	var tick domain.PriceTick
	if err := json.Unmarshal(e.Payload, &tick); err != nil {
		return domain.PriceTick{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	if err := tick.Validate(); err != nil {
		return domain.PriceTick{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return tick, nil
}

// Alert decodes the payload of a volatility_alert envelope.
func (e Envelope) Alert() (domain.Alert, error) {
	if e.Type != TypeVolatilityAlert {
		return domain.Alert{}, fmt.Errorf("%w: have %s, want %s", ErrTypeMismatch, e.Type, TypeVolatilityAlert)
	}
	var alert domain.Alert
	if err := json.Unmarshal(e.Payload, &alert); err != nil {
		return domain.Alert{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return alert, nil
}

// SystemEvent decodes the payload of a system_event envelope.
func (e Envelope) SystemEvent() (domain.SystemEvent, error) {
	if e.Type != TypeSystemEvent {
		return domain.SystemEvent{}, fmt.Errorf("%w: have %s, want %s", ErrTypeMismatch, e.Type, TypeSystemEvent)
	}
	var ev domain.SystemEvent
	if err := json.Unmarshal(e.Payload, &ev); err != nil {
		return domain.SystemEvent{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	if ev.EventType == "" {
		return domain.SystemEvent{}, fmt.Errorf("%w: missing event_type", ErrTypeMismatch)
	}
	return ev, nil
}

// TaskRequest decodes the payload of a task_request envelope.
func (e Envelope) TaskRequest() (domain.TaskRequest, error) {
	if e.Type != TypeTaskRequest {
		return domain.TaskRequest{}, fmt.Errorf("%w: have %s, want %s", ErrTypeMismatch, e.Type, TypeTaskRequest)
	}
	var req domain.TaskRequest
	if err := json.Unmarshal(e.Payload, &req); err != nil {
		return domain.TaskRequest{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return req, nil
}

// TaskResult decodes the payload of a task_result envelope.
func (e Envelope) TaskResult() (domain.TaskResult, error) {
	if e.Type != TypeTaskResult {
		return domain.TaskResult{}, fmt.Errorf("%w: have %s, want %s", ErrTypeMismatch, e.Type, TypeTaskResult)
	}
	var res domain.TaskResult
	if err := json.Unmarshal(e.Payload, &res); err != nil {
		return domain.TaskResult{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return res, nil
}
