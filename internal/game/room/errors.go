package room

import "errors"

// Sentinel errors for every recoverable room-level failure. The dispatcher
// classifies these with errors.Is and reports them to the caller as error
// envelopes; none of them terminates a connection.
var (
	// ErrNotHost reports a host-only operation attempted by a non-host member.
	ErrNotHost = errors.New("only the host may perform this action")
	// ErrAlreadyVoting reports StartVoting while a round is in progress.
	ErrAlreadyVoting = errors.New("voting already in progress")
	// ErrNotVoting reports SubmitVote outside an active round.
	ErrNotVoting = errors.New("no voting in progress")
	// ErrNoActiveVoting reports RevealVotes outside an active round.
	ErrNoActiveVoting = errors.New("no active voting to reveal")
	// ErrInvalidVote reports a vote value outside the card deck.
	ErrInvalidVote = errors.New("invalid vote value")
	// ErrDuplicatePlayer reports a player id collision on join.
	ErrDuplicatePlayer = errors.New("player already in room")
	// ErrNotMember reports an operation referencing a player the room
	// does not contain.
	ErrNotMember = errors.New("player not in room")
)
