package session

import (
	"crypto/rand"
	"fmt"
)

// Room codes are 6 characters drawn uniformly from uppercase letters and
// digits: 36^6 ≈ 2.2 billion codes.
const (
	roomIDLength   = 6
	roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// newRoomID generates a random room code. Uniqueness against live rooms is
// the caller's responsibility: the registry retries under its own lock
// until the code is free.
//
// Postcondition: Returns a roomIDLength-character code over roomIDAlphabet.
func newRoomID() (string, error) {
	// Rejection sampling keeps the draw uniform: 252 is the largest
	// multiple of len(roomIDAlphabet) below 256.
	const limit = 252

	code := make([]byte, roomIDLength)
	buf := make([]byte, roomIDLength)
	filled := 0
	for filled < roomIDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating room id: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code[filled] = roomIDAlphabet[int(b)%len(roomIDAlphabet)]
			filled++
			if filled == roomIDLength {
				break
			}
		}
	}
	return string(code), nil
}
