package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxPushAndDrain(t *testing.T) {
	o := NewOutbox("conn-1", 4)

	require.NoError(t, o.Push([]byte("first")))
	require.NoError(t, o.Push([]byte("second")))

	assert.Equal(t, []byte("first"), <-o.Frames())
	assert.Equal(t, []byte("second"), <-o.Frames())
}

func TestOutboxFullDropsFrame(t *testing.T) {
	o := NewOutbox("conn-1", 2)

	require.NoError(t, o.Push([]byte("a")))
	require.NoError(t, o.Push([]byte("b")))

	err := o.Push([]byte("c"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")

	// The queued frames are intact; the overflow frame is gone.
	assert.Equal(t, []byte("a"), <-o.Frames())
	assert.Equal(t, []byte("b"), <-o.Frames())
	select {
	case f := <-o.Frames():
		t.Fatalf("unexpected frame %q", f)
	default:
	}
}

func TestOutboxClose(t *testing.T) {
	o := NewOutbox("conn-1", 2)
	require.NoError(t, o.Push([]byte("queued")))

	assert.False(t, o.IsClosed())
	o.Close()
	o.Close() // idempotent
	assert.True(t, o.IsClosed())

	err := o.Push([]byte("late"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")

	// Frames queued before Close still drain, then the channel closes.
	assert.Equal(t, []byte("queued"), <-o.Frames())
	_, open := <-o.Frames()
	assert.False(t, open)
}

func TestOutboxDefaultBuffer(t *testing.T) {
	o := NewOutbox("conn-1", 0)
	for i := 0; i < 64; i++ {
		require.NoError(t, o.Push([]byte(fmt.Sprintf("frame-%d", i))))
	}
	assert.Error(t, o.Push([]byte("overflow")))
}

func TestOutboxConnID(t *testing.T) {
	o := NewOutbox("conn-42", 1)
	assert.Equal(t, "conn-42", o.ConnID())
}
