package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Bus counters
	envelopesPublished atomic.Uint64
	envelopesProcessed atomic.Uint64
	envelopesDropped   atomic.Uint64

	// Pipeline counters
	ticksAnalyzed       atomic.Uint64
	alertsEmitted       atomic.Uint64
	notificationsSent   atomic.Uint64
	notificationsFailed atomic.Uint64
	fetchSuccesses      atomic.Uint64
	fetchFailures       atomic.Uint64

	errorsTotal atomic.Uint64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordPublished counts an envelope accepted by the bus.
func (m *Metrics) RecordPublished() { m.envelopesPublished.Add(1) }

// RecordProcessed counts a successful subscriber delivery.
func (m *Metrics) RecordProcessed() { m.envelopesProcessed.Add(1) }

// RecordDropped counts an envelope dropped because a subscriber inbox was full.
func (m *Metrics) RecordDropped() { m.envelopesDropped.Add(1) }

// RecordTickAnalyzed counts one tick passed through the volatility engine.
func (m *Metrics) RecordTickAnalyzed() { m.ticksAnalyzed.Add(1) }

// RecordAlert counts an emitted volatility alert.
func (m *Metrics) RecordAlert() { m.alertsEmitted.Add(1) }

// RecordNotification counts one webhook delivery attempt.
func (m *Metrics) RecordNotification(ok bool) {
	if ok {
		m.notificationsSent.Add(1)
	} else {
		m.notificationsFailed.Add(1)
	}
}

// RecordFetch counts one market-data fetch attempt.
func (m *Metrics) RecordFetch(ok bool) {
	if ok {
		m.fetchSuccesses.Add(1)
	} else {
		m.fetchFailures.Add(1)
	}
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() { m.errorsTotal.Add(1) }

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	EnvelopesPublished  uint64
	EnvelopesProcessed  uint64
	EnvelopesDropped    uint64
	TicksAnalyzed       uint64
	AlertsEmitted       uint64
	NotificationsSent   uint64
	NotificationsFailed uint64
	FetchSuccesses      uint64
	FetchFailures       uint64
	ErrorsTotal         uint64
	Timestamp           time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		EnvelopesPublished:  m.envelopesPublished.Load(),
		EnvelopesProcessed:  m.envelopesProcessed.Load(),
		EnvelopesDropped:    m.envelopesDropped.Load(),
		TicksAnalyzed:       m.ticksAnalyzed.Load(),
		AlertsEmitted:       m.alertsEmitted.Load(),
		NotificationsSent:   m.notificationsSent.Load(),
		NotificationsFailed: m.notificationsFailed.Load(),
		FetchSuccesses:      m.fetchSuccesses.Load(),
		FetchFailures:       m.fetchFailures.Load(),
		ErrorsTotal:         m.errorsTotal.Load(),
		Timestamp:           time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.envelopesPublished.Store(0)
	m.envelopesProcessed.Store(0)
	m.envelopesDropped.Store(0)
	m.ticksAnalyzed.Store(0)
	m.alertsEmitted.Store(0)
	m.notificationsSent.Store(0)
	m.notificationsFailed.Store(0)
	m.fetchSuccesses.Store(0)
	m.fetchFailures.Store(0)
	m.errorsTotal.Store(0)
}
