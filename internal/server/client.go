// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/chat"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Client represents one WebSocket connection. It is the connection handle the
// chat Directory hands envelopes to, and it owns the Session that processes
// what the peer sends.
type Client struct {
	id             string
	conn           *websocket.Conn
	hub            *Hub
	session        *chat.Session
	addr           string
	log            *zap.Logger
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewClient creates a new Client for conn, bound to the hub's registries. The
// client's send channel is buffered to absorb bursts of fan-out.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := uuid.NewString()
	c := &Client{
		id:             id,
		conn:           conn,
		hub:            hub,
		addr:           addr,
		log:            hub.log.With(zap.String("conn_id", id), zap.String("remote_addr", addr)),
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit),
		rateLimit:      cfg.RateLimit,
		send:           make(chan []byte, cfg.SendBufferSize),
	}
	c.session = chat.NewSession(c, hub.directory, hub.router, hub.log)
	return c
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// GetSendChan returns the client's send channel for reading outgoing messages.
// This channel is read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// Session returns the chat session bound to this connection.
func (c *Client) Session() *chat.Session {
	return c.session
}

// Deliver queues env for the write pump. It never blocks: a full queue or a
// closed connection is reported to the caller instead.
func (c *Client) Deliver(env chat.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// closeSend stops further deliveries and lets the write pump drain and exit.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("error setting read deadline in pong handler", zap.Error(err))
		}
		return nil
	})
}

// handleReadError logs appropriate error messages based on the error type
// and returns true if the read loop should break
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn("message exceeded maximum size", zap.Int64("max_bytes", c.maxMessageSize))
		return true
	}

	// Check for expected close scenarios
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Info("client disconnected", zap.Error(err))
		return true
	}

	// Check for network errors
	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Info("client connection closed", zap.Error(err))
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.log.Warn("unexpected WebSocket close", zap.Error(err))
		return true
	}

	c.log.Warn("WebSocket read error", zap.Error(err))
	return true
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("rate limit exceeded; discarding message",
			zap.Int("burst", c.rateLimit.Burst),
			zap.Duration("refill_interval", c.rateLimit.RefillInterval))
		return false
	}
	return true
}

// processMessage decodes one envelope and hands it to the session. Errors are
// logged and never end the connection.
func (c *Client) processMessage(rawMessage []byte) bool {
	var env chat.Envelope
	if err := json.Unmarshal(rawMessage, &env); err != nil {
		c.log.Warn("invalid envelope", zap.Error(err))
		return false
	}

	if err := c.session.Handle(env); err != nil {
		c.log.Warn("envelope not processed",
			zap.String("mode", string(env.Mode)),
			zap.Error(err))
		return false
	}
	return true
}

// readPump is the connection's only reader, so envelopes are processed in
// arrival order. Every exit path detaches the session from the Directory.
func (c *Client) readPump() {
	defer func() {
		c.session.Close()
		c.hub.release(c)
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				c.log.Warn("error closing connection in readPump", zap.Error(err))
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if c.handleReadError(err) {
			break
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error closing connection in writePump", zap.Error(err))
		}
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.log.Warn("error setting write deadline", zap.Error(err))
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing close message", zap.Error(err))
		}
	}
	return false
}

// writeTextMessage writes a text message and any queued messages, one
// envelope per line.
func (c *Client) writeTextMessage(message []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		c.log.Warn("error creating writer", zap.Error(err))
		return false
	}

	if _, err := w.Write(message); err != nil {
		c.log.Warn("error writing message", zap.Error(err))
		return false
	}

	if !c.writeQueuedMessages(w) {
		return false
	}

	if err := w.Close(); err != nil {
		c.log.Warn("error closing writer", zap.Error(err))
		return false
	}
	return true
}

// writeQueuedMessages appends whatever is already queued to the current frame.
func (c *Client) writeQueuedMessages(w io.Writer) bool {
	n := len(c.send)
	for i := 0; i < n; i++ {
		queued, ok := <-c.send
		if !ok {
			return true
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			c.log.Warn("error writing newline", zap.Error(err))
			return false
		}
		if _, err := w.Write(queued); err != nil {
			c.log.Warn("error writing queued message", zap.Error(err))
			return false
		}
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.log.Warn("error setting write deadline for ping", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn("error writing ping message", zap.Error(err))
		return false
	}
	return true
}
