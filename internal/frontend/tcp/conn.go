// Package tcp provides the framed-TCP client transport: a listener in the
// acceptor/handler idiom and a connection type that delimits wire frames.
package tcp

import (
	"net"
	"sync"
	"time"

	"github.com/pokerplan/pokerplan/internal/protocol"
)

// Conn wraps a TCP connection with frame extraction and write
// serialization. One goroutine reads; writes may come from any goroutine.
type Conn struct {
	raw    net.Conn
	frames *protocol.FrameReader

	writeMu      sync.Mutex
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps a raw TCP connection.
//
// Precondition: raw must be open. maxFrameBytes <= 0 selects the codec
// default. Zero timeouts disable the corresponding deadline.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration, maxFrameBytes int) *Conn {
	return &Conn{
		raw:          raw,
		frames:       protocol.NewFrameReader(raw, maxFrameBytes),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadFrame blocks for the next complete frame. Frames coalesced into one
// segment or split across segments are returned one at a time.
//
// Postcondition: Returns the frame without its delimiter, or an error
// (protocol.ErrFrameTooLarge is recoverable; anything else is
// transport-fatal).
func (c *Conn) ReadFrame() ([]byte, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return c.frames.ReadFrame()
}

// WriteFrame sends one complete frame, delimiter included.
func (c *Conn) WriteFrame(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.raw.Write(frame)
	return err
}

// Close closes the underlying TCP connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the peer's network address.
func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}
