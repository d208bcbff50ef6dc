package itick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"market_sentry/internal/domain"
	"market_sentry/internal/infra"
)

// kType values per the iTick kline API.
const (
	kTypeMinute = "1"
	kTypeDaily  = "8"
	kTypeWeekly = "9"
)

// Client is the iTick REST API client covering A-shares, HK stocks and
// futures. It implements domain.MarketFetcher. Auth is a per-request
// token header.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an iTick client. The token is required by the API for
// every call; an empty token still constructs a client so that config
// validation, not this package, decides whether stocks are monitored.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "https://api.itick.org"
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// klineBar is a single iTick kline entry. Prices are plain JSON numbers.
type klineBar struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

type klineResponse struct {
	Code int        `json:"code"`
	Msg  string     `json:"msg"`
	Data []klineBar `json:"data"`
}

// FetchRealtime returns the most recent minute bar per instrument.
// Instruments that fail to fetch are skipped.
func (c *Client) FetchRealtime(ctx context.Context, instruments []domain.InstrumentSpec) ([]domain.PriceTick, error) {
	ticks := make([]domain.PriceTick, 0, len(instruments))
	var lastErr error

	for _, inst := range instruments {
		bars, err := c.fetchKlines(ctx, inst, kTypeMinute)
		if err != nil {
			lastErr = err
			continue
		}
		if len(bars) == 0 {
			continue
		}
		ticks = append(ticks, toTick(inst, bars[len(bars)-1], domain.FrequencyMinute))
	}

	if len(ticks) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return ticks, nil
}

// FetchHistorical returns daily or weekly bars in [start, end].
func (c *Client) FetchHistorical(ctx context.Context, inst domain.InstrumentSpec, freq domain.Frequency, start, end time.Time) ([]domain.PriceTick, error) {
	var kType string
	switch freq {
	case domain.FrequencyDaily:
		kType = kTypeDaily
	case domain.FrequencyWeekly:
		kType = kTypeWeekly
	case domain.FrequencyMinute:
		kType = kTypeMinute
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, string(freq))
	}

	bars, err := c.fetchKlines(ctx, inst, kType)
	if err != nil {
		return nil, err
	}

	ticks := make([]domain.PriceTick, 0, len(bars))
	for _, bar := range bars {
		ts := time.UnixMilli(bar.Timestamp).UTC()
		if ts.Before(start) || ts.After(end) {
			continue
		}
		ticks = append(ticks, toTick(inst, bar, freq))
	}
	return ticks, nil
}

func (c *Client) fetchKlines(ctx context.Context, inst domain.InstrumentSpec, kType string) ([]klineBar, error) {
	params := url.Values{}
	params.Set("region", inst.Market)
	params.Set("code", inst.Symbol)
	params.Set("kType", kType)
	endpoint := fmt.Sprintf("%s/stock/kline?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("token", c.token)
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

	var kr klineResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		return nil, fmt.Errorf("parse klines for %s: %w", inst.Symbol, err)
	}
	if kr.Code != 0 && len(kr.Data) == 0 {
		return nil, fmt.Errorf("itick error for %s: code=%d msg=%s", inst.Symbol, kr.Code, kr.Msg)
	}
	return kr.Data, nil
}

func toTick(inst domain.InstrumentSpec, bar klineBar, freq domain.Frequency) domain.PriceTick {
	ts := time.UnixMilli(bar.Timestamp).UTC()
	if bar.Timestamp == 0 {
		ts = time.Now().UTC()
	}
	return domain.PriceTick{
		Symbol:    inst.Symbol,
		Market:    inst.Market,
		Timestamp: ts,
		Open:      bar.Open,
		High:      bar.High,
		Low:       bar.Low,
		Close:     bar.Close,
		Volume:    bar.Volume,
		Frequency: freq,
	}
}
