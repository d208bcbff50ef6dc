package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"market_sentry/internal/domain"
)

func btc() domain.InstrumentSpec {
	return domain.InstrumentSpec{Name: "比特币", Symbol: "BTCUSDT", Market: "CRYPTO", Threshold: 2.0}
}

func TestFetchRealtime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/24hr" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %q", got)
		}
		w.Write([]byte(`{
			"symbol": "BTCUSDT",
			"openPrice": "50000.00000000",
			"highPrice": "51000.50000000",
			"lowPrice": "49500.00000000",
			"lastPrice": "50500.12340000",
			"volume": "12345.67800000",
			"closeTime": 1748779200000
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	ticks, err := c.FetchRealtime(context.Background(), []domain.InstrumentSpec{btc()})
	if err != nil {
		t.Fatalf("FetchRealtime failed: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("got %d ticks, want 1", len(ticks))
	}

	tick := ticks[0]
	if tick.Close != 50500.1234 {
		t.Errorf("Close = %v, want 50500.1234", tick.Close)
	}
	if tick.Open != 50000 || tick.High != 51000.5 || tick.Low != 49500 {
		t.Errorf("OHL = %v/%v/%v", tick.Open, tick.High, tick.Low)
	}
	if tick.Frequency != domain.FrequencyMinute {
		t.Errorf("Frequency = %s, want minute", tick.Frequency)
	}
	if tick.Market != "CRYPTO" {
		t.Errorf("Market = %q", tick.Market)
	}
	if tick.Timestamp != time.UnixMilli(1748779200000).UTC() {
		t.Errorf("Timestamp = %v", tick.Timestamp)
	}
	if err := tick.Validate(); err != nil {
		t.Errorf("fetched tick invalid: %v", err)
	}
}

func TestFetchRealtimeSkipsFailingSymbol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "BADUSDT" {
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"symbol":"BTCUSDT","openPrice":"1","highPrice":"1","lowPrice":"1","lastPrice":"1","volume":"1","closeTime":1748779200000}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	ticks, err := c.FetchRealtime(context.Background(), []domain.InstrumentSpec{
		{Symbol: "BADUSDT", Market: "CRYPTO"},
		btc(),
	})
	if err != nil {
		t.Fatalf("FetchRealtime failed: %v", err)
	}
	if len(ticks) != 1 || ticks[0].Symbol != "BTCUSDT" {
		t.Errorf("ticks = %+v, want only the good symbol", ticks)
	}
}

func TestFetchRealtimeAllFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if _, err := c.FetchRealtime(context.Background(), []domain.InstrumentSpec{btc()}); err == nil {
		t.Error("total failure returned no error")
	}
}

func TestFetchHistorical(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "1d" {
			t.Errorf("interval = %q, want 1d", got)
		}
		w.Write([]byte(`[
			[1748736000000, "49000.0", "49800.0", "48500.0", "49500.0", "100.0", 1748822399999],
			[1748822400000, "49500.0", "51000.0", "49400.0", "50500.0", "150.0", 1748908799999]
		]`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	start := time.UnixMilli(1748736000000).UTC()
	end := start.AddDate(0, 0, 3)

	bars, err := c.FetchHistorical(context.Background(), btc(), domain.FrequencyDaily, start, end)
	if err != nil {
		t.Fatalf("FetchHistorical failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].Close != 49500 || bars[1].Close != 50500 {
		t.Errorf("closes = %v/%v", bars[0].Close, bars[1].Close)
	}
	if bars[0].Frequency != domain.FrequencyDaily {
		t.Errorf("Frequency = %s, want daily", bars[0].Frequency)
	}
	if !bars[1].Timestamp.After(bars[0].Timestamp) {
		t.Error("bars not ascending")
	}
}

func TestFetchHistoricalRejectsUnknownFrequency(t *testing.T) {
	c := NewClient("http://example.invalid")
	_, err := c.FetchHistorical(context.Background(), btc(), domain.Frequency("hourly"), time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Error("unknown frequency accepted")
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"50000.12340000", 50000.1234, false},
		{"0.00000001", 0.00000001, false},
		{"0", 0, false},
		{"-1.5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parsePrice(tt.in)
		if tt.wantErr != (err != nil) {
			t.Errorf("parsePrice(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parsePrice(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
