// Package testutil provides a framed TCP test client for integration
// tests.
package testutil

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/pokerplan/pokerplan/internal/protocol"
)

// Client is a wire-protocol test client speaking framed JSON envelopes.
type Client struct {
	conn   net.Conn
	frames *protocol.FrameReader
	t      *testing.T
}

// Dial connects to the given address and returns a test client.
//
// Precondition: addr must be a "host:port" string with a listening server.
// Postcondition: Returns a connected Client or fails the test.
func Dial(t *testing.T, addr string) *Client {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v", addr, err)
	}
	t.Cleanup(func() {
		conn.Close()
	})

	return &Client{
		conn:   conn,
		frames: protocol.NewFrameReader(conn, 0),
		t:      t,
	}
}

// Send encodes and writes one envelope.
func (c *Client) Send(msgType string, data any) {
	c.t.Helper()
	frame, err := protocol.Encode(msgType, data)
	if err != nil {
		c.t.Fatalf("encoding %s: %v", msgType, err)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.conn.Write(frame); err != nil {
		c.t.Fatalf("sending %s: %v", msgType, err)
	}
}

// SendRaw writes raw bytes, for malformed-input tests.
func (c *Client) SendRaw(data []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.conn.Write(data); err != nil {
		c.t.Fatalf("sending raw bytes: %v", err)
	}
}

// Recv reads the next envelope, failing the test on timeout.
func (c *Client) Recv(timeout time.Duration) protocol.Envelope {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	frame, err := c.frames.ReadFrame()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.t.Fatalf("decoding envelope %q: %v", frame, err)
	}
	return env
}

// RecvType reads envelopes until one of the given type arrives, failing
// the test after timeout or ten mismatched messages.
func (c *Client) RecvType(msgType string, timeout time.Duration) protocol.Envelope {
	c.t.Helper()
	for i := 0; i < 10; i++ {
		env := c.Recv(timeout)
		if env.Type == msgType {
			return env
		}
	}
	c.t.Fatalf("no %s envelope within 10 messages", msgType)
	return protocol.Envelope{}
}

// Decode unmarshals an envelope payload into out.
func (c *Client) Decode(env protocol.Envelope, out any) {
	c.t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		c.t.Fatalf("decoding %s payload: %v", env.Type, err)
	}
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.conn.Close()
}
