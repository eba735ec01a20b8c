// Package session owns the mapping of connections to players to rooms. It
// implements the registry operations, room id generation, and the fan-out
// of room snapshots to member connections.
package session

import (
	"fmt"
	"sync"
)

// Outbox is a bounded per-connection queue of outbound frames. The
// registry pushes into it without blocking; the connection's sender
// goroutine drains it to the transport. This keeps network I/O out of
// every registry and room critical section.
type Outbox struct {
	connID string
	frames chan []byte

	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox for the given connection id.
//
// Precondition: connID must be non-empty.
func NewOutbox(connID string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		connID: connID,
		frames: make(chan []byte, bufferSize),
	}
}

// ConnID returns the owning connection's id.
func (o *Outbox) ConnID() string {
	return o.connID
}

// Push enqueues a frame for delivery. It never blocks: a closed or full
// outbox returns an error and the frame is dropped. Delivery is
// best-effort; the caller logs and swallows the error.
func (o *Outbox) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s closed", o.connID)
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return fmt.Errorf("outbox %s full, frame dropped", o.connID)
	}
}

// Frames returns the read side of the queue. It is closed by Close, which
// ends the connection's sender loop.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close marks the outbox closed and closes the frame channel. Idempotent.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.frames)
	}
}

// IsClosed reports whether Close has been called.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
