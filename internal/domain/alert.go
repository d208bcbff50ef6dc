package domain

import (
	"encoding/json"
	"time"
)

// Alert is a single volatility breach event. It is created exclusively by
// the volatility engine and consumed by the notification sink; it is never
// persisted beyond the bus hop.
type Alert struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Frequency     Frequency `json:"frequency"`
	CurrentChange float64   `json:"current_change"`
	Threshold     float64   `json:"threshold"`
	CurrentPrice  float64   `json:"current_price"`
	PreviousPrice float64   `json:"previous_price"`
	Timestamp     time.Time `json:"timestamp"`

	// Market is carried so consumers can resolve the instrument even
	// though the original wire shape keys alerts by symbol+name only.
	Market string `json:"market,omitempty"`
}

// Rising reports whether the breach was an upward move.
func (a Alert) Rising() bool {
	return a.CurrentChange > 0
}

// UnmarshalJSON validates the frequency on the way in; alerts with an
// unknown frequency are a data error at the consumer boundary.
func (a *Alert) UnmarshalJSON(data []byte) error {
	type plain Alert
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	freq, err := ParseFrequency(string(p.Frequency))
	if err != nil {
		return err
	}
	p.Frequency = freq
	*a = Alert(p)
	return nil
}
