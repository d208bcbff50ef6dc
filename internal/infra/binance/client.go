package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"market_sentry/internal/domain"
	"market_sentry/internal/infra"
)

// Client is the Binance REST API client (boundary layer). It implements
// domain.MarketFetcher for crypto pairs. Binance encodes prices as JSON
// strings; they are parsed with decimal before conversion to float ticks.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Binance REST client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// ticker24h is the /api/v3/ticker/24hr response subset we consume.
type ticker24h struct {
	Symbol    string `json:"symbol"`
	OpenPrice string `json:"openPrice"`
	HighPrice string `json:"highPrice"`
	LowPrice  string `json:"lowPrice"`
	LastPrice string `json:"lastPrice"`
	Volume    string `json:"volume"`
	CloseTime int64  `json:"closeTime"`
}

// FetchRealtime returns the latest 24h-ticker snapshot per pair as a
// minute-frequency tick. Pairs that fail to fetch are skipped.
func (c *Client) FetchRealtime(ctx context.Context, instruments []domain.InstrumentSpec) ([]domain.PriceTick, error) {
	ticks := make([]domain.PriceTick, 0, len(instruments))
	var lastErr error

	for _, inst := range instruments {
		tick, err := c.fetchTicker(ctx, inst)
		if err != nil {
			lastErr = err
			continue
		}
		ticks = append(ticks, tick)
	}

	if len(ticks) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return ticks, nil
}

func (c *Client) fetchTicker(ctx context.Context, inst domain.InstrumentSpec) (domain.PriceTick, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s",
		c.baseURL, url.QueryEscape(strings.ToUpper(inst.Symbol)))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return domain.PriceTick{}, err
	}

	var t ticker24h
	if err := json.Unmarshal(body, &t); err != nil {
		return domain.PriceTick{}, fmt.Errorf("parse ticker for %s: %w", inst.Symbol, err)
	}

	open, err := parsePrice(t.OpenPrice)
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("ticker %s: %w", inst.Symbol, err)
	}
	high, err := parsePrice(t.HighPrice)
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("ticker %s: %w", inst.Symbol, err)
	}
	low, err := parsePrice(t.LowPrice)
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("ticker %s: %w", inst.Symbol, err)
	}
	last, err := parsePrice(t.LastPrice)
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("ticker %s: %w", inst.Symbol, err)
	}
	volume, err := parsePrice(t.Volume)
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("ticker %s: %w", inst.Symbol, err)
	}

	return domain.PriceTick{
		Symbol:    inst.Symbol,
		Market:    inst.Market,
		Timestamp: time.UnixMilli(t.CloseTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     last,
		Volume:    volume,
		Frequency: domain.FrequencyMinute,
	}, nil
}

// FetchHistorical returns daily or weekly klines in [start, end].
func (c *Client) FetchHistorical(ctx context.Context, inst domain.InstrumentSpec, freq domain.Frequency, start, end time.Time) ([]domain.PriceTick, error) {
	interval, err := klineInterval(freq)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&endTime=%d",
		c.baseURL, url.QueryEscape(strings.ToUpper(inst.Symbol)), interval,
		start.UnixMilli(), end.UnixMilli())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	// Klines arrive as positional arrays:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse klines for %s: %w", inst.Symbol, err)
	}

	ticks := make([]domain.PriceTick, 0, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			continue
		}
		open, err1 := parseRawPrice(row[1])
		high, err2 := parseRawPrice(row[2])
		low, err3 := parseRawPrice(row[3])
		closePrice, err4 := parseRawPrice(row[4])
		volume, err5 := parseRawPrice(row[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}

		ticks = append(ticks, domain.PriceTick{
			Symbol:    inst.Symbol,
			Market:    inst.Market,
			Timestamp: time.UnixMilli(openTime).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			Frequency: freq,
		})
	}
	return ticks, nil
}

func klineInterval(freq domain.Frequency) (string, error) {
	switch freq {
	case domain.FrequencyDaily:
		return "1d", nil
	case domain.FrequencyWeekly:
		return "1w", nil
	case domain.FrequencyMinute:
		return "1m", nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, string(freq))
	}
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("fetch", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError("fetch", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewNetworkError("fetch",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}
	return body, nil
}

// parsePrice parses Binance's string-encoded decimal prices.
func parsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("bad price %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative price %q", s)
	}
	return d.InexactFloat64(), nil
}

func parseRawPrice(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return parsePrice(s)
}
