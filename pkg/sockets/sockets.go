// Package sockets wraps a server side gorilla websocket with serialized
// writes, keepalive pings and a blocking read loop.
package sockets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("closed connection")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Conn struct {
	ws             *websocket.Conn
	mu             sync.Mutex
	closed         bool
	done           chan struct{}
	closeOnce      sync.Once
	pingInterval   time.Duration
	writeTimeout   time.Duration
	maxMessageSize int64
	onError        func(err error)
	onMessage      func([]byte, *Conn)
}

// Upgrade switches the request to the websocket protocol. On failure the
// upgrader has already written an HTTP error.
func Upgrade(w http.ResponseWriter, r *http.Request, opts ...func(*Conn)) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newConn(ws, opts...), nil
}

func newConn(ws *websocket.Conn, opts ...func(*Conn)) *Conn {
	c := &Conn{
		ws:             ws,
		done:           make(chan struct{}),
		writeTimeout:   10 * time.Second,
		maxMessageSize: 4096,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// SendJSON writes v as a single text frame. Safe for concurrent use.
func (c *Conn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *Conn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(messageType, data); err != nil {
		c.closeLocked()
		c.fail(err)
		return err
	}
	return nil
}

// Close sends a normal close frame and releases the connection. Calling it
// more than once is safe.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.closeLocked()
	return nil
}

func (c *Conn) closeLocked() {
	c.closed = true
	c.closeOnce.Do(func() {
		c.ws.Close()
		close(c.done)
	})
}

func (c *Conn) fail(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

// Serve runs the read loop until the peer goes away, Close is called or ctx
// is cancelled.
func (c *Conn) Serve(ctx context.Context) error {
	c.ws.SetReadLimit(c.maxMessageSize)
	if c.pingInterval > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
		})
		go c.ping()
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closedHere := c.closed
			c.closeLocked()
			c.mu.Unlock()
			if closedHere || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			c.fail(err)
			return err
		}
		if c.onMessage != nil {
			c.onMessage(msg, c)
		}
	}
}

func (c *Conn) ping() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
