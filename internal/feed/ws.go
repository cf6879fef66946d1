package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Malick1802/signal-stride-forex-sub005/pkg/config"
	"github.com/Malick1802/signal-stride-forex-sub005/pkg/logger"
)

const (
	// Reconnect settings
	reconnectDelay    = 5 * time.Second
	maxReconnectDelay = 2 * time.Minute

	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// WSClient streams live quotes from the provider's websocket endpoint into
// the quote cache and notifies subscribers of each accepted update.
// SSOT: the streaming connection is managed by this client and only here
type WSClient struct {
	cfg    config.FeedConfig
	logger *logger.Logger
	cache  *QuoteCache

	conn   *websocket.Conn
	connMu sync.RWMutex

	onUpdate func(symbol string, price float64)

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWSClient creates a new streaming quote client.
func NewWSClient(cfg config.FeedConfig, log *logger.Logger, cache *QuoteCache) *WSClient {
	return &WSClient{
		cfg:    cfg,
		logger: log,
		cache:  cache,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// OnUpdate registers the callback invoked for each accepted price update.
func (c *WSClient) OnUpdate(fn func(symbol string, price float64)) {
	c.onUpdate = fn
}

// Start connects and launches the read and ping loops.
func (c *WSClient) Start(ctx context.Context) error {
	c.logger.Info("Starting streaming quote client")

	if err := c.connect(ctx); err != nil {
		return fmt.Errorf("initial connection failed: %w", err)
	}

	go c.readLoop(ctx)
	go c.pingLoop(ctx)

	return nil
}

// Stop closes the connection and waits for the read loop to exit.
func (c *WSClient) Stop() {
	c.logger.Info("Stopping streaming quote client")

	close(c.stopCh)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	<-c.doneCh
}

// connect establishes the websocket connection.
func (c *WSClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.logger.WithField("url", c.cfg.WSURL).Debug("Connecting to quote stream")

	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, c.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.conn = conn

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Authenticate with the provider
	auth := map[string]string{"userKey": c.cfg.APIKey, "symbol": "subscribe-all"}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(auth); err != nil {
		conn.Close()
		return fmt.Errorf("auth write failed: %w", err)
	}

	c.logger.Info("Quote stream connected")
	return nil
}

// streamMessage mirrors the provider's tick payload.
type streamMessage struct {
	Symbol string  `json:"symbol"`
	Mid    float64 `json:"mid"`
	TS     int64   `json:"ts"` // unix millis
}

// readLoop consumes tick messages until stopped, reconnecting on errors.
func (c *WSClient) readLoop(ctx context.Context) {
	defer close(c.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}
			c.logger.WithError(err).Warn("Quote stream read failed, reconnecting")
			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Providers interleave heartbeats and acks with ticks.
			continue
		}
		if msg.Symbol == "" || msg.Mid <= 0 {
			continue
		}

		ts := time.Now()
		if msg.TS > 0 {
			ts = time.UnixMilli(msg.TS)
		}

		accepted := c.cache.Update(&Quote{
			Symbol:    msg.Symbol,
			Price:     msg.Mid,
			Timestamp: ts,
			Source:    SourceWS,
		})
		if accepted && c.onUpdate != nil {
			c.onUpdate(msg.Symbol, msg.Mid)
		}
	}
}

// reconnect retries the connection with exponential backoff. Returns false
// when shutdown was requested while waiting.
func (c *WSClient) reconnect(ctx context.Context) bool {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return false
		case <-c.stopCh:
			return false
		case <-time.After(delay):
		}

		if err := c.connect(ctx); err == nil {
			return true
		}

		c.logger.WithField("delay", delay).Warn("Quote stream reconnect failed, backing off")
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// pingLoop keeps the connection alive.
func (c *WSClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.WithError(err).Debug("Ping failed")
			}
		}
	}
}
