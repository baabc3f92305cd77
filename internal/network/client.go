package network

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// sendBuffer is the number of outbound envelopes queued per client before
// new ones are dropped.
const sendBuffer = 256

// Client is one connected player as the server sees it.
type Client struct {
	// The framed connection: TCP lines or WebSocket frames.
	transport Transport

	// The hub this client registers with while it is served.
	hub *Hub
	log *zap.Logger

	// send is drained by writeLoop. It is never closed; done stops the loop.
	send chan Message
	done chan struct{}
	once sync.Once

	// identity is set by Hub.Bind and cleared by Hub.Unbind.
	mu       sync.RWMutex
	identity string
}

// NewClient wraps t. Nothing is read or written until Serve runs.
func NewClient(t Transport, hub *Hub, log *zap.Logger) *Client {
	return &Client{
		transport: t,
		hub:       hub,
		log:       log.With(zap.String("remote", t.RemoteAddr())),
		send:      make(chan Message, sendBuffer),
		done:      make(chan struct{}),
	}
}

// Identity is the username bound at login, or "".
func (c *Client) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Client) setIdentity(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = id
}

// RemoteAddr is the peer address, for logs.
func (c *Client) RemoteAddr() string { return c.transport.RemoteAddr() }

// Deliver queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) Deliver(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.log.Warn("send buffer full, dropping message", zap.String("type", msg.Type))
		return false
	}
}

// Close stops the write loop and closes the transport. Safe to call more
// than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.transport.Close()
	})
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// Serve runs the client until its connection ends: writes in a goroutine,
// reads and dispatches on the calling one.
func (c *Client) Serve(handler EventHandler) {
	c.hub.add(c)
	handler.OnConnect(c)
	go c.writeLoop()
	c.readLoop(handler)
}

// readLoop reads envelopes until the connection fails or the handler
// rejects one. Cleanup order matters: the handler sees the identity before
// the hub forgets it.
func (c *Client) readLoop(handler EventHandler) {
	defer func() {
		handler.OnDisconnect(c)
		c.hub.remove(c)
		c.Close()
	}()

	for {
		msg, err := c.transport.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if err := c.dispatch(handler, msg); err != nil {
			c.log.Warn("dropping connection", zap.String("type", msg.Type), zap.Error(err))
			return
		}
	}
}

// dispatch runs the handler, turning a panic into an error so only this
// connection goes away.
func (c *Client) dispatch(handler EventHandler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic while handling message",
				zap.String("type", msg.Type), zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler.OnMessage(c, msg)
}

// logReadError picks a level by cause: a normal close is debug noise.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.log.Debug("connection closed")
	case errors.Is(err, ErrProtocol):
		c.log.Warn("malformed envelope", zap.Error(err))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.log.Debug("websocket closed")
	default:
		c.log.Info("read failed", zap.Error(err))
	}
}

// writeLoop is the only goroutine that writes to the transport.
// WebSocket clients also get keepalive pings from here.
func (c *Client) writeLoop() {
	// A nil channel never fires, so TCP clients skip the ping case.
	var tick <-chan time.Time
	p, canPing := c.transport.(pinger)
	if canPing {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.transport.WriteMessage(msg); err != nil {
				c.log.Info("write failed", zap.String("type", msg.Type), zap.Error(err))
				c.Close()
				return
			}
		case <-tick:
			// A failed ping means the peer is gone; readLoop will see the close.
			if err := p.Ping(); err != nil {
				c.Close()
				return
			}
		}
	}
}
