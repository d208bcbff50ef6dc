package domain

import (
	"time"
)

// PriceRecord is the persisted form of a PriceTick.
// Indexes mirror the query paths: latest-by-instrument and
// historical range scans per market+frequency.
type PriceRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol    string    `gorm:"index:idx_symbol_timestamp;not null" json:"symbol"`
	Market    string    `gorm:"index:idx_market_frequency;not null" json:"market"`
	Timestamp time.Time `gorm:"index:idx_symbol_timestamp;not null" json:"timestamp"`
	Open      float64   `gorm:"not null" json:"open"`
	High      float64   `gorm:"not null" json:"high"`
	Low       float64   `gorm:"not null" json:"low"`
	Close     float64   `gorm:"not null" json:"close"`
	Volume    float64   `gorm:"default:0" json:"volume"`
	Frequency string    `gorm:"index:idx_market_frequency;default:'1m'" json:"frequency"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the table name used by the storage schema.
func (PriceRecord) TableName() string {
	return "price_data"
}

// NewPriceRecord converts a tick into its persisted form.
func NewPriceRecord(t PriceTick) PriceRecord {
	return PriceRecord{
		Symbol:    t.Symbol,
		Market:    t.Market,
		Timestamp: t.Timestamp.UTC(),
		Open:      t.Open,
		High:      t.High,
		Low:       t.Low,
		Close:     t.Close,
		Volume:    t.Volume,
		Frequency: t.Frequency.Code(),
	}
}

// Tick converts a persisted record back into a PriceTick.
func (r PriceRecord) Tick() (PriceTick, error) {
	freq, err := ParseFrequency(r.Frequency)
	if err != nil {
		return PriceTick{}, err
	}
	return PriceTick{
		Symbol:    r.Symbol,
		Market:    r.Market,
		Timestamp: r.Timestamp.UTC(),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
		Frequency: freq,
	}, nil
}
