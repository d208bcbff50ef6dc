package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"market_sentry/internal/bus"
	"market_sentry/internal/domain"
	"market_sentry/internal/infra"
	"market_sentry/internal/message"
)

const (
	defaultWSURL = "wss://stream.binance.com:9443/stream"
	maxRetries   = 10
	readTimeout  = 60 * time.Second
)

// WorkerSource identifies the stream worker as an envelope source.
const WorkerSource = "BinanceStreamWorker"

// miniTickerEvent is the combined-stream miniTicker payload. All prices
// are string encoded.
type miniTickerEvent struct {
	Stream string `json:"stream"`
	Data   struct {
		EventType string `json:"e"` // 24hrMiniTicker
		EventTime int64  `json:"E"`
		Symbol    string `json:"s"`
		Close     string `json:"c"`
		Open      string `json:"o"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
	} `json:"data"`
}

// Worker maintains a Binance combined miniTicker stream and publishes each
// update to the bus as a price_data envelope. It reconnects with
// exponential backoff on any dial or read failure.
type Worker struct {
	wsURL       string
	instruments map[string]domain.InstrumentSpec // keyed by upper symbol
	bus         *bus.Bus

	conn      *websocket.Conn
	mu        sync.RWMutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker creates a stream worker for the given crypto pairs.
func NewWorker(wsURL string, instruments []domain.InstrumentSpec, b *bus.Bus) *Worker {
	if wsURL == "" {
		wsURL = defaultWSURL
	}
	wsURL = strings.TrimRight(wsURL, "/")
	if !strings.HasSuffix(wsURL, "/stream") {
		wsURL += "/stream"
	}
	bySymbol := make(map[string]domain.InstrumentSpec, len(instruments))
	for _, inst := range instruments {
		bySymbol[strings.ToUpper(inst.Symbol)] = inst
	}
	return &Worker{
		wsURL:       wsURL,
		instruments: bySymbol,
		bus:         b,
	}
}

// Connect starts the connection loop in the background.
func (w *Worker) Connect(ctx context.Context) error {
	if len(w.instruments) == 0 {
		return fmt.Errorf("no instruments to stream")
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Binance stream connection failed",
				slog.Any("error", err), slog.Int("retry", retryCount))
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, w.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	slog.Info("Binance stream connected 📡", slog.Int("subs", len(w.instruments)))
	return nil
}

// streamURL builds the combined-stream endpoint. Binance wants stream
// names lowercased.
func (w *Worker) streamURL() string {
	streams := make([]string, 0, len(w.instruments))
	for symbol := range w.instruments {
		streams = append(streams, strings.ToLower(symbol)+"@miniTicker")
	}
	return w.wsURL + "?streams=" + strings.Join(streams, "/")
}

func (w *Worker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.closeConnection()
			return
		default:
		}

		w.mu.RLock()
		if w.conn == nil {
			w.mu.RUnlock()
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(readTimeout))
		w.mu.RUnlock()

		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *Worker) handleMessage(msg []byte) {
	var ev miniTickerEvent
	if json.Unmarshal(msg, &ev) != nil || ev.Data.EventType != "24hrMiniTicker" {
		return
	}

	inst, ok := w.instruments[strings.ToUpper(ev.Data.Symbol)]
	if !ok {
		return
	}

	open, err1 := parsePrice(ev.Data.Open)
	high, err2 := parsePrice(ev.Data.High)
	low, err3 := parsePrice(ev.Data.Low)
	last, err4 := parsePrice(ev.Data.Close)
	volume, err5 := parsePrice(ev.Data.Volume)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		slog.Warn("dropping malformed miniTicker", slog.String("symbol", ev.Data.Symbol))
		return
	}

	tick := domain.PriceTick{
		Symbol:    inst.Symbol,
		Market:    inst.Market,
		Timestamp: time.UnixMilli(ev.Data.EventTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     last,
		Volume:    volume,
		Frequency: domain.FrequencyMinute,
	}

	env, err := message.NewPriceData(WorkerSource, tick)
	if err != nil {
		slog.Warn("skipping unencodable tick",
			slog.String("symbol", tick.Symbol), slog.Any("error", err))
		return
	}
	if err := w.bus.Publish(env.Type.Channel(), env); err != nil {
		slog.Warn("stream publish failed", slog.Any("error", err))
	}
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect stops the loop and closes the socket.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
