// Package handlers bridges client transports to the session registry: one
// receive loop per connection decoding frames into registry operations,
// and one sender loop draining the connection's outbox.
package handlers

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pokerplan/pokerplan/internal/game/session"
	"github.com/pokerplan/pokerplan/internal/protocol"
)

// FrameConn is the transport contract the dispatcher runs against. Both
// the TCP and WebSocket connections satisfy it.
type FrameConn interface {
	// ReadFrame blocks for the next complete inbound frame.
	ReadFrame() ([]byte, error)
	// WriteFrame sends one complete frame.
	WriteFrame(frame []byte) error
	// RemoteAddr returns the peer address for logging.
	RemoteAddr() string
	// Close closes the transport.
	Close() error
}

// Dispatcher processes one client session per call to HandleSession.
type Dispatcher struct {
	registry *session.Registry
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher over the given registry.
//
// Precondition: registry and logger must be non-nil.
func NewDispatcher(registry *session.Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logger,
	}
}

// HandleSession runs the receive loop for one connection until the
// transport fails, the peer closes, or ctx is cancelled. Decode failures
// are answered with an error envelope and never end the session; on
// return, disconnect cleanup has run and the sender loop has drained.
func (d *Dispatcher) HandleSession(ctx context.Context, conn FrameConn) error {
	client := d.registry.Connect(conn.RemoteAddr())

	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		d.senderLoop(client, conn)
	}()

	defer func() {
		// Disconnect closes the outbox, which ends the sender loop.
		d.registry.Disconnect(client.ConnID)
		<-senderDone
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := conn.ReadFrame()
		if err != nil {
			if errors.Is(err, protocol.ErrFrameTooLarge) {
				d.reply(client, protocol.TypeError, protocol.Error{Message: "Message too large."})
				continue
			}
			return fmt.Errorf("reading frame: %w", err)
		}

		msg, err := protocol.DecodeInbound(frame)
		if err != nil {
			d.logger.Debug("discarding undecodable frame",
				zap.String("conn_id", client.ConnID),
				zap.Error(err),
			)
			d.reply(client, protocol.TypeError, protocol.Error{Message: decodeErrorMessage(err)})
			continue
		}

		d.dispatch(client, msg)
	}
}

// dispatch routes one decoded message to the registry. The switch is
// exhaustive over the closed Inbound set.
func (d *Dispatcher) dispatch(client *session.Client, msg protocol.Inbound) {
	switch m := msg.(type) {
	case *protocol.CreateRoom:
		roomID, playerID, err := d.registry.CreateRoom(client.ConnID, m.PlayerName)
		if err != nil {
			d.replyError(client, err)
			return
		}
		d.reply(client, protocol.TypeSuccess, protocol.Success{
			RoomID:   roomID,
			PlayerID: playerID,
			Message:  fmt.Sprintf("Room %s created.", roomID),
		})

	case *protocol.JoinRoom:
		roomID, playerID, err := d.registry.JoinRoom(client.ConnID, m.RoomID, m.PlayerName)
		if err != nil {
			d.replyError(client, err)
			return
		}
		d.reply(client, protocol.TypeSuccess, protocol.Success{
			RoomID:   roomID,
			PlayerID: playerID,
			Message:  fmt.Sprintf("Joined room %s.", roomID),
		})

	case *protocol.LeaveRoom:
		if err := d.registry.LeaveRoom(client.ConnID); err != nil {
			d.replyError(client, err)
			return
		}
		d.reply(client, protocol.TypeSuccess, protocol.Success{Message: "Left the room."})

	case *protocol.StartVoting:
		if err := d.registry.StartVoting(client.ConnID, m.Story); err != nil {
			d.replyError(client, err)
		}

	case *protocol.SubmitVote:
		if err := d.registry.SubmitVote(client.ConnID, m.Vote); err != nil {
			d.replyError(client, err)
			return
		}
		d.reply(client, protocol.TypeSuccess, protocol.Success{Message: "Vote recorded."})

	case *protocol.RevealVotes:
		if err := d.registry.RevealVotes(client.ConnID); err != nil {
			d.replyError(client, err)
		}

	case *protocol.ResetRound:
		if err := d.registry.ResetRound(client.ConnID); err != nil {
			d.replyError(client, err)
		}
	}
}

// reply enqueues an envelope on the caller's outbox so that direct replies
// and room broadcasts reach the client in operation order.
func (d *Dispatcher) reply(client *session.Client, msgType string, data any) {
	if err := client.Outbox.Push(protocol.MustEncode(msgType, data)); err != nil {
		d.logger.Warn("dropping reply",
			zap.String("conn_id", client.ConnID),
			zap.String("type", msgType),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) replyError(client *session.Client, err error) {
	d.reply(client, protocol.TypeError, protocol.Error{Message: errorMessage(err)})
}

// senderLoop drains the outbox to the transport. A write failure stops
// delivery for this connection only; the receive loop notices the broken
// transport on its next read.
func (d *Dispatcher) senderLoop(client *session.Client, conn FrameConn) {
	for frame := range client.Outbox.Frames() {
		if err := conn.WriteFrame(frame); err != nil {
			d.logger.Debug("write failed, closing connection",
				zap.String("conn_id", client.ConnID),
				zap.Error(err),
			)
			_ = conn.Close()
			// Keep draining so Disconnect's channel close is reached.
			for range client.Outbox.Frames() {
			}
			return
		}
	}
}
