package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"coinbot/internal/domain"
	"coinbot/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	maxRetries   = 10
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
)

// tickerMessage represents one ticker frame from the stream
type tickerMessage struct {
	Type      string  `json:"type"` // ticker
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume24h float64 `json:"volume_24h"`
	Timestamp int64   `json:"timestamp"`
}

// Worker handles the live ticker WebSocket connection. It reconnects with
// exponential backoff and forwards parsed ticks to the quote board's inbox;
// ticks are dropped rather than blocking when the inbox is full.
type Worker struct {
	wsURL     string
	symbols   []string
	inbox     chan<- []domain.Tick
	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker creates a new ticker stream worker
func NewWorker(wsURL string, symbols []string, inbox chan<- []domain.Tick) *Worker {
	return &Worker{
		wsURL:   wsURL,
		symbols: symbols,
		inbox:   inbox,
	}
}

// Connect starts the WebSocket connection
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// IsConnected reports the current connection state
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
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
			slog.Warn("Stream connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
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
	header := make(http.Header)

	conn, _, err := dialer.DialContext(ctx, w.wsURL, header)
	if err != nil {
		return domain.NewNetworkError("dial", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	infra.GlobalStats.SetStreamConnected(true)

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	slog.Info("Stream connected", slog.Int("subs", len(w.symbols)))
	return nil
}

func (w *Worker) subscribe() error {
	msg := map[string]interface{}{
		"op":      "subscribe",
		"channel": "ticker",
		"symbols": w.symbols,
	}
	b, _ := json.Marshal(msg)
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *Worker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *Worker) readLoop(ctx context.Context) {
	pinger := time.NewTicker(pingInterval)
	defer pinger.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pinger.C:
				if err := w.threadSafeWrite(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
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
	tick, ok := parseTick(msg)
	if !ok {
		return
	}

	select {
	case w.inbox <- []domain.Tick{tick}:
		infra.GlobalStats.RecordTicks(1)
	default: // DROP
	}
}

func parseTick(msg []byte) (domain.Tick, bool) {
	var m tickerMessage
	if json.Unmarshal(msg, &m) != nil || m.Type != "ticker" || m.Symbol == "" {
		return domain.Tick{}, false
	}

	return domain.Tick{
		Symbol:    m.Symbol,
		Price:     decimal.NewFromFloat(m.Price),
		Change24h: decimal.NewFromFloat(m.Change24h),
		Volume24h: decimal.NewFromFloat(m.Volume24h),
	}, true
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
	infra.GlobalStats.SetStreamConnected(false)
}

// Disconnect stops the worker and closes the connection
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
