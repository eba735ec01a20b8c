// Package ws provides the WebSocket client transport. Each accepted
// socket carries the same JSON envelopes as the TCP transport; WebSocket's
// native message boundaries satisfy the framing contract.
package ws

import (
	"bytes"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may go without a pong before the
	// read side fails.
	pongWait = 60 * time.Second
	// pingPeriod must be under pongWait.
	pingPeriod = 54 * time.Second
)

// Conn adapts a WebSocket connection to the dispatcher's frame interface.
// One goroutine reads; frame writes and keepalive pings are serialized by
// the write mutex.
type Conn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewConn wraps an upgraded WebSocket connection and starts its keepalive
// pings.
//
// Precondition: ws must be an open connection from a successful upgrade.
func NewConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:   ws,
		done: make(chan struct{}),
	}

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.keepalive()
	return c
}

// ReadFrame blocks for the next message from the peer.
func (c *Conn) ReadFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// WriteFrame sends one envelope as a single text message. The TCP frame
// delimiter, if present, is dropped: message boundaries come from the
// WebSocket layer here.
func (c *Conn) WriteFrame(frame []byte) error {
	frame = bytes.TrimSuffix(frame, []byte{'\n'})

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// Close closes the socket and stops the keepalive loop. Idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// RemoteAddr returns the peer's network address.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// keepalive pings the peer until the connection closes; an unanswered
// ping fails the read side via the pong deadline.
func (c *Conn) keepalive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
