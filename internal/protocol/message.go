// Package protocol defines the wire envelope, the closed set of inbound
// message kinds, and the framed codec used by every client transport.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type identifiers shared with clients.
const (
	TypeCreateRoom  = "create_room"
	TypeJoinRoom    = "join_room"
	TypeLeaveRoom   = "leave_room"
	TypeStartVoting = "start_voting"
	TypeSubmitVote  = "submit_vote"
	TypeRevealVotes = "reveal_votes"
	TypeResetRound  = "reset_round"

	TypeRoomStatus = "room_status"
	TypeSuccess    = "success"
	TypeError      = "error"
)

var (
	// ErrMalformedMessage reports an envelope or payload that could not be
	// parsed. The offending frame is discarded; the connection stays open.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnknownType reports an envelope with an unrecognized type field.
	ErrUnknownType = errors.New("unknown message type")
)

// Envelope is the outer wire structure: a type tag and an opaque payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound is the closed set of client-originated messages. Each variant
// carries its own validated payload; the dispatcher switches exhaustively
// over the concrete types.
type Inbound interface {
	inbound()
}

// CreateRoom asks the server to create a room with the sender as host.
type CreateRoom struct {
	PlayerName string `json:"player_name"`
}

// JoinRoom asks the server to add the sender to an existing room.
type JoinRoom struct {
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
}

// LeaveRoom removes the sender from its room without closing the connection.
type LeaveRoom struct{}

// StartVoting begins a voting round. Host only.
type StartVoting struct {
	Story string `json:"story"`
}

// SubmitVote records the sender's vote for the current round.
type SubmitVote struct {
	Vote string `json:"vote"`
}

// RevealVotes ends the round early, freezing all votes. Host only.
type RevealVotes struct{}

// ResetRound clears votes and story and returns the room to idle. Host only.
type ResetRound struct{}

func (CreateRoom) inbound()  {}
func (JoinRoom) inbound()    {}
func (LeaveRoom) inbound()   {}
func (StartVoting) inbound() {}
func (SubmitVote) inbound()  {}
func (RevealVotes) inbound() {}
func (ResetRound) inbound()  {}

// DecodeInbound parses one frame into its typed inbound variant.
//
// Postcondition: Returns one of the Inbound variants, or an error wrapping
// ErrMalformedMessage or ErrUnknownType. Neither error is fatal to the
// connection.
func DecodeInbound(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	decode := func(v Inbound) (Inbound, error) {
		if len(env.Data) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(env.Data, v); err != nil {
			return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedMessage, env.Type, err)
		}
		return v, nil
	}

	switch env.Type {
	case TypeCreateRoom:
		return decode(&CreateRoom{})
	case TypeJoinRoom:
		return decode(&JoinRoom{})
	case TypeLeaveRoom:
		return &LeaveRoom{}, nil
	case TypeStartVoting:
		return decode(&StartVoting{})
	case TypeSubmitVote:
		return decode(&SubmitVote{})
	case TypeRevealVotes:
		return &RevealVotes{}, nil
	case TypeResetRound:
		return &ResetRound{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Success is the payload acknowledging a completed operation. RoomID and
// PlayerID are set on room creation and join.
type Success struct {
	RoomID   string `json:"room_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Message  string `json:"message"`
}

// Error is the payload reporting a recoverable failure to the sender.
type Error struct {
	Message string `json:"message"`
}

// PlayerStatus is one member's entry in a room snapshot. Vote is populated
// only once the room has revealed; before that it is always empty.
type PlayerStatus struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	HasVoted bool   `json:"has_voted"`
	Vote     string `json:"vote,omitempty"`
	IsHost   bool   `json:"is_host"`
}

// RoomStatus is the full room snapshot broadcast to every member after a
// state mutation.
type RoomStatus struct {
	RoomID       string         `json:"room_id"`
	HostID       string         `json:"host_id"`
	State        string         `json:"state"`
	CurrentStory string         `json:"current_story"`
	AllVoted     bool           `json:"all_voted"`
	Players      []PlayerStatus `json:"players"`
}
