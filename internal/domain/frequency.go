package domain

import "fmt"

// Frequency is the sampling granularity of a price observation.
type Frequency string

const (
	FrequencyMinute Frequency = "minute"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Code returns the canonical short code stored on the wire ("1m", "1d", "1w").
func (f Frequency) Code() string {
	switch f {
	case FrequencyMinute:
		return "1m"
	case FrequencyDaily:
		return "1d"
	case FrequencyWeekly:
		return "1w"
	default:
		return string(f)
	}
}

// Label returns the Chinese label used in notification text.
func (f Frequency) Label() string {
	switch f {
	case FrequencyMinute:
		return "分钟级"
	case FrequencyDaily:
		return "日级"
	case FrequencyWeekly:
		return "周级"
	default:
		return "波动"
	}
}

// IsValid reports whether f is one of the three supported frequencies.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyMinute, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// ParseFrequency accepts either the long form ("minute") or the short
// code ("1m") and returns the canonical Frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch s {
	case "minute", "1m":
		return FrequencyMinute, nil
	case "daily", "1d":
		return FrequencyDaily, nil
	case "weekly", "1w":
		return FrequencyWeekly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
}
