package handlers

import (
	"errors"

	"github.com/pokerplan/pokerplan/internal/game/room"
	"github.com/pokerplan/pokerplan/internal/game/session"
	"github.com/pokerplan/pokerplan/internal/protocol"
)

// errorMessage maps a registry or room sentinel error to the human message
// carried in the error envelope.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrRoomNotFound):
		return "Room not found."
	case errors.Is(err, session.ErrNotInRoom):
		return "You are not in a room."
	case errors.Is(err, room.ErrNotHost):
		return "Only the host can do that."
	case errors.Is(err, room.ErrAlreadyVoting):
		return "Voting is already in progress."
	case errors.Is(err, room.ErrNotVoting):
		return "There is no voting in progress."
	case errors.Is(err, room.ErrNoActiveVoting):
		return "There is no active voting to reveal."
	case errors.Is(err, room.ErrInvalidVote):
		return "Invalid vote value."
	case errors.Is(err, room.ErrDuplicatePlayer):
		return "A player with that id is already in the room."
	default:
		return "Operation failed."
	}
}

// decodeErrorMessage distinguishes an unknown type from a malformed frame.
func decodeErrorMessage(err error) string {
	if errors.Is(err, protocol.ErrUnknownType) {
		return "Unknown message type."
	}
	return "Malformed message."
}
