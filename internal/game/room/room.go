// Package room implements the voting state machine for a single planning
// poker room: membership, host succession, round lifecycle, and snapshot
// construction.
package room

import (
	"fmt"
	"sync"

	"github.com/pokerplan/pokerplan/internal/protocol"
)

// State is the room's round lifecycle phase.
type State string

// Room states. A room starts Idle; StartVoting moves Idle or Revealed to
// Voting; all-voted or RevealVotes moves Voting to Revealed; ResetRound
// moves any state to Idle.
const (
	StateIdle     State = "idle"
	StateVoting   State = "voting"
	StateRevealed State = "revealed"
)

// Room is one estimation session. All methods are safe for concurrent use;
// every mutation runs under the room's own mutex so auto-reveal and host
// migration are atomic with their triggering event.
type Room struct {
	id string

	mu      sync.Mutex
	hostID  string
	state   State
	story   string
	players map[string]*Player
	order   []string // join order; determines host succession
}

// New creates a room in the Idle state with host as its first member.
//
// Precondition: id must be non-empty; host must be non-nil.
func New(id string, host *Player) *Room {
	return &Room{
		id:      id,
		hostID:  host.ID,
		state:   StateIdle,
		players: map[string]*Player{host.ID: host},
		order:   []string{host.ID},
	}
}

// ID returns the room code. Immutable after creation.
func (r *Room) ID() string {
	return r.id
}

// HostID returns the id of the member currently holding host privileges.
func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// State returns the current round phase.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PlayerCount returns the number of members.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// MemberIDs returns the member player ids in join order.
func (r *Room) MemberIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// AddPlayer adds a member. A player joining mid-round has no vote and
// blocks auto-reveal until they vote or leave.
//
// Postcondition: Returns an error wrapping ErrDuplicatePlayer on id
// collision; the room is unchanged in that case.
func (r *Room) AddPlayer(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[p.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlayer, p.ID)
	}
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// RemovePlayer removes a member. If the departing member was host and
// others remain, host privilege transfers to the longest-standing
// remaining member. If the removal completes the current round's vote set,
// the room auto-reveals.
//
// Postcondition: empty reports whether the room has no members left (the
// caller must destroy it); revealed reports an auto-reveal triggered by
// the departure.
func (r *Room) RemovePlayer(playerID string) (empty, revealed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[playerID]; !exists {
		return false, false, fmt.Errorf("%w: %s", ErrNotMember, playerID)
	}
	delete(r.players, playerID)
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if len(r.players) == 0 {
		return true, false, nil
	}

	if r.hostID == playerID {
		r.hostID = r.order[0]
	}

	// A departure can complete the round: the leaver is dropped from the
	// completeness check.
	if r.state == StateVoting && r.allVoted() {
		r.state = StateRevealed
		revealed = true
	}
	return false, revealed, nil
}

// StartVoting begins a round: clears all votes, records the story, and
// transitions to Voting. Legal from Idle and Revealed.
//
// Postcondition: Returns ErrNotHost if callerID is not the host, or
// ErrAlreadyVoting if a round is already in progress; state is unchanged
// on error.
func (r *Room) StartVoting(callerID, story string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callerID != r.hostID {
		return ErrNotHost
	}
	if r.state == StateVoting {
		return ErrAlreadyVoting
	}

	r.state = StateVoting
	r.story = story
	for _, p := range r.players {
		p.resetVote()
	}
	return nil
}

// SubmitVote records a member's vote. Re-voting within the round replaces
// the earlier vote. If every current member has now voted, the room
// transitions to Revealed in the same critical section.
//
// Postcondition: revealed reports the auto-reveal. Returns ErrNotMember or
// ErrNotVoting without mutating state.
func (r *Room) SubmitVote(playerID string, vote Card) (revealed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.players[playerID]
	if !exists {
		return false, fmt.Errorf("%w: %s", ErrNotMember, playerID)
	}
	if r.state != StateVoting {
		return false, ErrNotVoting
	}

	v := vote
	p.vote = &v

	if r.allVoted() {
		r.state = StateRevealed
		revealed = true
	}
	return revealed, nil
}

// RevealVotes freezes the round, transitioning Voting to Revealed.
//
// Postcondition: Returns ErrNotHost or ErrNoActiveVoting without mutating
// state.
func (r *Room) RevealVotes(callerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callerID != r.hostID {
		return ErrNotHost
	}
	if r.state != StateVoting {
		return ErrNoActiveVoting
	}
	r.state = StateRevealed
	return nil
}

// ResetRound clears votes and story and returns the room to Idle,
// regardless of the prior state. Calling it from Idle is a no-op with no
// error.
//
// Postcondition: Returns ErrNotHost without mutating state.
func (r *Room) ResetRound(callerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callerID != r.hostID {
		return ErrNotHost
	}
	r.state = StateIdle
	r.story = ""
	for _, p := range r.players {
		p.resetVote()
	}
	return nil
}

// Snapshot builds the status broadcast to every member. Vote values are
// included only once the room has revealed; the host flag is derived from
// hostID here rather than stored on players.
func (r *Room) Snapshot() protocol.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]protocol.PlayerStatus, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		ps := protocol.PlayerStatus{
			ID:       p.ID,
			Name:     p.Name,
			HasVoted: p.vote != nil,
			IsHost:   p.ID == r.hostID,
		}
		if r.state == StateRevealed && p.vote != nil {
			ps.Vote = string(*p.vote)
		}
		players = append(players, ps)
	}

	return protocol.RoomStatus{
		RoomID:       r.id,
		HostID:       r.hostID,
		State:        string(r.state),
		CurrentStory: r.story,
		AllVoted:     r.allVoted(),
		Players:      players,
	}
}

// allVoted reports round completeness over the current member set.
// Caller must hold r.mu.
func (r *Room) allVoted() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if p.vote == nil {
			return false
		}
	}
	return true
}
