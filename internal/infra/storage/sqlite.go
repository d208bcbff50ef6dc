package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"market_sentry/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists price history in SQLite. It implements both the
// PriceAppender contract used by the storage sink and the PriceHistory
// query contract used by the volatility engine.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at path.
func NewStorage(path string) (*Storage, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go SQLite driver
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.PriceRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// SavePrice appends one tick. Appends are not deduplicated here;
// re-delivered envelopes produce duplicate rows.
func (s *Storage) SavePrice(tick domain.PriceTick) error {
	rec := domain.NewPriceRecord(tick)
	return s.db.Create(&rec).Error
}

// GetLatest returns the most recent persisted tick for the instrument at
// the given frequency, or nil when none exists.
func (s *Storage) GetLatest(symbol, market string, freq domain.Frequency) (*domain.PriceTick, error) {
	var rec domain.PriceRecord
	err := s.db.
		Where("symbol = ? AND market = ? AND frequency = ?", symbol, market, freq.Code()).
		Order("timestamp DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	tick, err := rec.Tick()
	if err != nil {
		return nil, err
	}
	return &tick, nil
}

// GetHistorical returns persisted ticks in [start, end], ascending by
// timestamp.
func (s *Storage) GetHistorical(symbol, market string, freq domain.Frequency, start, end time.Time) ([]domain.PriceTick, error) {
	var records []domain.PriceRecord
	err := s.db.
		Where("symbol = ? AND market = ? AND frequency = ? AND timestamp BETWEEN ? AND ?",
			symbol, market, freq.Code(), start.UTC(), end.UTC()).
		Order("timestamp ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	ticks := make([]domain.PriceTick, 0, len(records))
	for _, rec := range records {
		tick, err := rec.Tick()
		if err != nil {
			return nil, err
		}
		ticks = append(ticks, tick)
	}
	return ticks, nil
}

// Count returns the number of persisted rows (used by the shutdown summary).
func (s *Storage) Count() (int64, error) {
	var n int64
	err := s.db.Model(&domain.PriceRecord{}).Count(&n).Error
	return n, err
}
