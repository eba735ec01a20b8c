package session

import (
	"go.uber.org/zap"

	"github.com/pokerplan/pokerplan/internal/protocol"
)

// Broadcaster pushes room snapshots to member outboxes. Delivery is
// best-effort: a full or closed outbox drops that member's frame without
// affecting the others and without rolling back the mutation that
// triggered the broadcast.
type Broadcaster struct {
	logger *zap.Logger
}

// NewBroadcaster creates a Broadcaster.
//
// Precondition: logger must be non-nil.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

// RoomStatus encodes the snapshot once and pushes it to every target.
func (b *Broadcaster) RoomStatus(snap protocol.RoomStatus, targets []*Outbox) {
	frame := protocol.MustEncode(protocol.TypeRoomStatus, snap)
	for _, out := range targets {
		if err := out.Push(frame); err != nil {
			b.logger.Warn("dropping room status frame",
				zap.String("room_id", snap.RoomID),
				zap.String("conn_id", out.ConnID()),
				zap.Error(err),
			)
		}
	}
}
