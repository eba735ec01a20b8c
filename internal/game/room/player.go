package room

// DefaultPlayerName is used when a client supplies an empty display name.
const DefaultPlayerName = "Player"

// Player is one room member. The host role is not stored here; it is
// derived from the room's hostID at snapshot time so the two can never
// diverge.
type Player struct {
	// ID is the opaque token assigned at join time, stable for the
	// lifetime of the player's connection.
	ID string
	// Name is the client-supplied display name.
	Name string

	// vote is nil until the player votes in the current round.
	vote *Card
}

// NewPlayer creates a Player, substituting DefaultPlayerName for an empty
// name.
func NewPlayer(id, name string) *Player {
	if name == "" {
		name = DefaultPlayerName
	}
	return &Player{ID: id, Name: name}
}

// HasVoted reports whether the player has voted this round.
func (p *Player) HasVoted() bool {
	return p.vote != nil
}

// resetVote clears the player's vote for a new round.
func (p *Player) resetVote() {
	p.vote = nil
}
