// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Tyrowin/sketchhub/internal/chat"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one WebSocket connection. Its read pump feeds inbound frames to
// the connection's chat.Dispatcher and its write pump drains the outbound
// queue filled through Send.
type Client struct {
	id             string
	conn           *websocket.Conn
	hub            *Hub
	dispatcher     *chat.Dispatcher
	addr           string
	log            *zap.Logger
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig

	mu     sync.Mutex
	send   chan [][]byte
	closed bool
}

// NewClient creates a Client for conn and binds it to a fresh dispatcher of
// svc under connection id. The send channel is buffered by cfg.SendBufferSize;
// each slot holds one event, or a whole history replay.
func NewClient(conn *websocket.Conn, hub *Hub, svc *chat.Service, id, addr string, cfg Config, log *zap.Logger) *Client {
	cfg = sanitizeConfig(cfg)
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	c := &Client{
		id:             id,
		conn:           conn,
		hub:            hub,
		addr:           addr,
		log:            log.With(zap.String("socket", id), zap.String("addr", addr)),
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit),
		rateLimit:      cfg.RateLimit,
		send:           make(chan [][]byte, cfg.SendBufferSize),
	}
	c.dispatcher = svc.NewDispatcher(id, c)
	return c
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Send encodes evt and queues it for the write pump without blocking. When
// the queue is full the event is dropped and the connection is closed, so a
// slow reader cannot hold up broadcasts to its rooms.
func (c *Client) Send(evt chat.Event) error {
	return c.SendBatch([]chat.Event{evt})
}

// SendBatch encodes evts and queues them as one slot, written back to back
// by the write pump. It fails like Send when the queue is full.
func (c *Client) SendBatch(evts []chat.Event) error {
	frames := make([][]byte, 0, len(evts))
	for _, evt := range evts {
		payload, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		frames = append(frames, payload)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientClosed
	}

	select {
	case c.send <- frames:
		return nil
	default:
		c.closeConnection()
		return errSendBufferFull
	}
}

// closeSend closes the outbound queue once. The write pump then sends a
// close frame and exits.
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

// logReadError logs a read failure at a level matching how expected it is.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("message exceeded maximum size", zap.Int64("limit", c.maxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("client disconnected", zap.Error(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("client connection closed", zap.Error(err))
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("unexpected WebSocket close", zap.Error(err))
	default:
		c.log.Warn("WebSocket read error", zap.Error(err))
	}
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("rate limit exceeded; discarding message",
			zap.Int("burst", c.rateLimit.Burst),
			zap.Duration("interval", c.rateLimit.RefillInterval))
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		// The session leaves the registry before the queue is closed, so no
		// broadcast can target a closed queue.
		c.dispatcher.Disconnect(context.Background())
		c.hub.unregisterClient(c)
		c.closeConnection()
	}()

	c.setupReadConnection()

	if err := c.dispatcher.Connect(c.hub.ctx); err != nil {
		c.log.Error("connection setup failed", zap.Error(err))
		return
	}

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.dispatcher.Handle(c.hub.ctx, rawMessage)
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
	case frames, ok := <-c.send:
		return c.handleMessage(frames, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("error closing connection", zap.Error(err))
	}
}

// handleMessage writes each queued event as its own text frame and returns
// false if the connection should be closed
func (c *Client) handleMessage(frames [][]byte, ok bool) bool {
	if !ok {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			c.log.Warn("error setting write deadline", zap.Error(err))
			return false
		}
		return c.writeCloseMessage()
	}

	for _, frame := range frames {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			c.log.Warn("error setting write deadline", zap.Error(err))
			return false
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			if !isExpectedCloseError(err) {
				c.log.Warn("error writing message", zap.Error(err))
			}
			return false
		}
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil && !isExpectedCloseError(err) {
		c.log.Warn("error writing close message", zap.Error(err))
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("error setting write deadline for ping", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing ping message", zap.Error(err))
		}
		return false
	}
	return true
}
