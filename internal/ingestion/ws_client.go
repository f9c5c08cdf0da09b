// Package ingestion captures live trade ticks from the Binance aggTrade
// stream and aggregates them into stored bars for later backtesting.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"shockflip-lab/internal/marketdata"
	"shockflip-lab/internal/observability"
)

// StreamConfig configures WebSocket stream behavior.
type StreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// TradeStream consumes one symbol's aggTrade WebSocket stream and exposes it
// as a tick channel. The stream reconnects with exponential backoff and never
// drops ticks under backpressure; sends block instead.
type TradeStream struct {
	url    string
	config StreamConfig
	log    zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	out  chan marketdata.Tick
	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewTradeStream connects to the aggTrade stream for a symbol.
// baseURL is the exchange WebSocket endpoint, e.g. wss://stream.binance.com:9443.
func NewTradeStream(ctx context.Context, baseURL, symbol string, config *StreamConfig, log zerolog.Logger) (*TradeStream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &TradeStream{
		url:    fmt.Sprintf("%s/ws/%s@aggTrade", strings.TrimRight(baseURL, "/"), strings.ToLower(symbol)),
		config: cfg,
		log:    log,
		out:    make(chan marketdata.Tick, 10000),
		done:   make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Ticks returns the tick channel. It is closed when the stream closes.
func (s *TradeStream) Ticks() <-chan marketdata.Tick {
	return s.out
}

// connect establishes the WebSocket connection.
func (s *TradeStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// Close closes the stream and its tick channel.
func (s *TradeStream) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.out)
	return nil
}

// readLoop reads messages from the WebSocket and emits parsed ticks.
func (s *TradeStream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			// Connection error, attempt reconnect with exponential backoff
			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// reconnect attempts to re-establish the connection after a delay.
func (s *TradeStream) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.log.Warn().Err(err).Msg("stream reconnect failed, will retry")
		observability.RecordIngestionError("reconnect")
		return
	}

	s.log.Info().Str("url", s.url).Msg("stream reconnected")
}

// handleMessage parses one aggTrade message and forwards the tick.
func (s *TradeStream) handleMessage(message []byte) {
	tick, err := parseAggTrade(message)
	if err != nil {
		s.log.Debug().Err(err).Msg("skipping unparseable stream message")
		observability.RecordIngestionError("parse")
		return
	}

	observability.RecordTickProcessed()

	// Block until the consumer keeps up; ticks are never dropped.
	select {
	case s.out <- tick:
	case <-s.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *TradeStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			s.connMu.Unlock()
		}
	}
}

// aggTradeMessage is the Binance aggTrade payload. Price and quantity arrive
// as decimal strings.
type aggTradeMessage struct {
	EventType    string `json:"e"`
	Symbol       string `json:"s"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// parseAggTrade converts one aggTrade message into a tick.
func parseAggTrade(message []byte) (marketdata.Tick, error) {
	var msg aggTradeMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return marketdata.Tick{}, fmt.Errorf("unmarshal aggTrade: %w", err)
	}
	if msg.EventType != "aggTrade" {
		return marketdata.Tick{}, fmt.Errorf("unexpected event type %q", msg.EventType)
	}

	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		return marketdata.Tick{}, fmt.Errorf("parse price %q: %w", msg.Price, err)
	}
	qty, err := strconv.ParseFloat(msg.Quantity, 64)
	if err != nil {
		return marketdata.Tick{}, fmt.Errorf("parse quantity %q: %w", msg.Quantity, err)
	}

	return marketdata.Tick{
		TimestampMs:  msg.TradeTime,
		Price:        price,
		Qty:          qty,
		IsBuyerMaker: msg.IsBuyerMaker,
	}, nil
}
