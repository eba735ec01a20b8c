package room

import "fmt"

// Card is one element of the fixed estimation deck.
type Card string

// Deck is the valid vote alphabet. Any other value is rejected.
var Deck = []Card{"0", "1", "2", "3", "5", "8", "13", "21", "?", "☕"}

var deckSet = func() map[Card]struct{} {
	s := make(map[Card]struct{}, len(Deck))
	for _, c := range Deck {
		s[c] = struct{}{}
	}
	return s
}()

// ParseCard validates a raw vote value against the deck.
//
// Postcondition: Returns the Card, or an error wrapping ErrInvalidVote.
func ParseCard(raw string) (Card, error) {
	c := Card(raw)
	if _, ok := deckSet[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidVote, raw)
	}
	return c, nil
}
