package session

import (
	"bytes"
	"encoding/json"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pokerplan/pokerplan/internal/game/room"
	"github.com/pokerplan/pokerplan/internal/protocol"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(16, "", zap.NewNop())
}

// lastStatus drains the client's outbox and returns the most recent room
// status frame, failing the test if none arrived.
func lastStatus(t *testing.T, c *Client) protocol.RoomStatus {
	t.Helper()
	snap, ok := drainStatus(t, c)
	require.True(t, ok, "no room_status frame for conn %s", c.ConnID)
	return snap
}

func drainStatus(t *testing.T, c *Client) (protocol.RoomStatus, bool) {
	t.Helper()
	var (
		snap  protocol.RoomStatus
		found bool
	)
	for {
		select {
		case frame, open := <-c.Outbox.Frames():
			if !open {
				return snap, found
			}
			var env protocol.Envelope
			require.NoError(t, json.Unmarshal(bytes.TrimRight(frame, "\n"), &env))
			if env.Type != protocol.TypeRoomStatus {
				continue
			}
			require.NoError(t, json.Unmarshal(env.Data, &snap))
			found = true
		default:
			return snap, found
		}
	}
}

func TestCreateRoom(t *testing.T) {
	reg := newTestRegistry(t)
	c := reg.Connect("127.0.0.1:9999")

	roomID, playerID, err := reg.CreateRoom(c.ConnID, "Alice")
	require.NoError(t, err)
	assert.Len(t, roomID, 6)
	assert.Len(t, playerID, 8)
	assert.Equal(t, 1, reg.RoomCount())

	rm, ok := reg.Room(roomID)
	require.True(t, ok)
	assert.Equal(t, playerID, rm.HostID())
	assert.Equal(t, room.StateIdle, rm.State())

	snap := lastStatus(t, c)
	assert.Equal(t, roomID, snap.RoomID)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "Alice", snap.Players[0].Name)
	assert.True(t, snap.Players[0].IsHost)
}

func TestCreateRoomDefaultName(t *testing.T) {
	reg := newTestRegistry(t)
	c := reg.Connect("addr")

	_, _, err := reg.CreateRoom(c.ConnID, "  ")
	require.NoError(t, err)

	snap := lastStatus(t, c)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, room.DefaultPlayerName, snap.Players[0].Name)
}

func TestJoinRoom(t *testing.T) {
	reg := newTestRegistry(t)
	host := reg.Connect("addr-1")
	guest := reg.Connect("addr-2")

	roomID, hostPID, err := reg.CreateRoom(host.ConnID, "Alice")
	require.NoError(t, err)

	joined, guestPID, err := reg.JoinRoom(guest.ConnID, roomID, "Bob")
	require.NoError(t, err)
	assert.Equal(t, roomID, joined)
	assert.NotEqual(t, hostPID, guestPID)

	// Both members see the two-player snapshot.
	for _, c := range []*Client{host, guest} {
		snap := lastStatus(t, c)
		assert.Len(t, snap.Players, 2)
		assert.Equal(t, hostPID, snap.HostID)
	}
}

func TestJoinRoomCaseInsensitive(t *testing.T) {
	reg := newTestRegistry(t)
	host := reg.Connect("addr-1")
	guest := reg.Connect("addr-2")

	roomID, _, err := reg.CreateRoom(host.ConnID, "Alice")
	require.NoError(t, err)

	joined, _, err := reg.JoinRoom(guest.ConnID, "  "+toLower(roomID)+" ", "Bob")
	require.NoError(t, err)
	assert.Equal(t, roomID, joined)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func TestJoinRoomNotFound(t *testing.T) {
	reg := newTestRegistry(t)
	c := reg.Connect("addr")

	_, _, err := reg.JoinRoom(c.ConnID, "NOSUCH", "Bob")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestCreateWhileInRoomLeavesFirst(t *testing.T) {
	reg := newTestRegistry(t)
	host := reg.Connect("addr-1")
	guest := reg.Connect("addr-2")

	first, _, err := reg.CreateRoom(host.ConnID, "Alice")
	require.NoError(t, err)
	_, _, err = reg.JoinRoom(guest.ConnID, first, "Bob")
	require.NoError(t, err)

	second, _, err := reg.CreateRoom(guest.ConnID, "Bob")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, reg.RoomCount())

	rm, ok := reg.Room(first)
	require.True(t, ok)
	assert.Equal(t, 1, rm.PlayerCount(), "guest must have left the first room")

	// The remaining member of the first room sees the departure.
	snap := lastStatus(t, host)
	assert.Len(t, snap.Players, 1)
}

func TestLeaveRoom(t *testing.T) {
	reg := newTestRegistry(t)
	c := reg.Connect("addr")

	assert.ErrorIs(t, reg.LeaveRoom(c.ConnID), ErrNotInRoom)

	roomID, _, err := reg.CreateRoom(c.ConnID, "Alice")
	require.NoError(t, err)

	require.NoError(t, reg.LeaveRoom(c.ConnID))
	_, ok := reg.Room(roomID)
	assert.False(t, ok, "room with no members is destroyed")
	assert.Equal(t, 0, reg.RoomCount())
	assert.Equal(t, 1, reg.ClientCount(), "connection outlives the room")

	assert.ErrorIs(t, reg.LeaveRoom(c.ConnID), ErrNotInRoom)
}

func TestDisconnectMigratesHost(t *testing.T) {
	reg := newTestRegistry(t)
	host := reg.Connect("addr-1")
	guest := reg.Connect("addr-2")

	roomID, _, err := reg.CreateRoom(host.ConnID, "Alice")
	require.NoError(t, err)
	_, guestPID, err := reg.JoinRoom(guest.ConnID, roomID, "Bob")
	require.NoError(t, err)

	reg.Disconnect(host.ConnID)
	assert.Equal(t, 1, reg.ClientCount())
	assert.True(t, host.Outbox.IsClosed())

	rm, ok := reg.Room(roomID)
	require.True(t, ok)
	assert.Equal(t, guestPID, rm.HostID())

	snap := lastStatus(t, guest)
	assert.Equal(t, guestPID, snap.HostID)
	require.Len(t, snap.Players, 1)
	assert.True(t, snap.Players[0].IsHost)
}

func TestDisconnectLastMemberDestroysRoom(t *testing.T) {
	reg := newTestRegistry(t)
	c := reg.Connect("addr")

	roomID, _, err := reg.CreateRoom(c.ConnID, "Alice")
	require.NoError(t, err)

	reg.Disconnect(c.ConnID)
	_, ok := reg.Room(roomID)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.RoomCount())
	assert.Equal(t, 0, reg.ClientCount())
}

func TestDisconnectUnknownConnIsNoOp(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Disconnect("never-registered")
	assert.Equal(t, 0, reg.ClientCount())
}

func TestVotingFlow(t *testing.T) {
	reg := newTestRegistry(t)
	host := reg.Connect("addr-1")
	guest := reg.Connect("addr-2")

	roomID, _, err := reg.CreateRoom(host.ConnID, "Alice")
	require.NoError(t, err)
	_, _, err = reg.JoinRoom(guest.ConnID, roomID, "Bob")
	require.NoError(t, err)

	// Only the host can start.
	assert.ErrorIs(t, reg.StartVoting(guest.ConnID, "story"), room.ErrNotHost)
	require.NoError(t, reg.StartVoting(host.ConnID, "login page"))

	snap := lastStatus(t, guest)
	assert.Equal(t, string(room.StateVoting), snap.State)
	assert.Equal(t, "login page", snap.CurrentStory)

	require.NoError(t, reg.SubmitVote(host.ConnID, "5"))
	snap = lastStatus(t, guest)
	assert.False(t, snap.AllVoted)
	for _, p := range snap.Players {
		assert.Empty(t, p.Vote, "votes stay hidden mid-round")
	}

	// Second vote completes the round and reveals.
	require.NoError(t, reg.SubmitVote(guest.ConnID, "8"))
	snap = lastStatus(t, guest)
	assert.Equal(t, string(room.StateRevealed), snap.State)
	assert.True(t, snap.AllVoted)
	votes := map[string]string{}
	for _, p := range snap.Players {
		votes[p.Name] = p.Vote
	}
	assert.Equal(t, "5", votes["Alice"])
	assert.Equal(t, "8", votes["Bob"])

	// Reset returns to idle with cleared votes and story.
	require.NoError(t, reg.ResetRound(host.ConnID))
	snap = lastStatus(t, guest)
	assert.Equal(t, string(room.StateIdle), snap.State)
	assert.Empty(t, snap.CurrentStory)
	for _, p := range snap.Players {
		assert.False(t, p.HasVoted)
	}
}

func TestSubmitVoteInvalidCard(t *testing.T) {
	reg := newTestRegistry(t)
	c := reg.Connect("addr")
	_, _, err := reg.CreateRoom(c.ConnID, "Alice")
	require.NoError(t, err)
	require.NoError(t, reg.StartVoting(c.ConnID, "s"))

	assert.ErrorIs(t, reg.SubmitVote(c.ConnID, "4"), room.ErrInvalidVote)
}

func TestRoomOpsRequireMembership(t *testing.T) {
	reg := newTestRegistry(t)
	c := reg.Connect("addr")

	assert.ErrorIs(t, reg.StartVoting(c.ConnID, "s"), ErrNotInRoom)
	assert.ErrorIs(t, reg.SubmitVote(c.ConnID, "5"), ErrNotInRoom)
	assert.ErrorIs(t, reg.RevealVotes(c.ConnID), ErrNotInRoom)
	assert.ErrorIs(t, reg.ResetRound(c.ConnID), ErrNotInRoom)
}

func TestRoomOpsUnknownConn(t *testing.T) {
	reg := newTestRegistry(t)

	_, _, err := reg.CreateRoom("ghost", "Alice")
	assert.ErrorIs(t, err, ErrUnknownConn)
	_, _, err = reg.JoinRoom("ghost", "ABCDEF", "Bob")
	assert.ErrorIs(t, err, ErrUnknownConn)
	assert.ErrorIs(t, reg.StartVoting("ghost", "s"), ErrUnknownConn)
}

func TestBroadcastTargetsMatchSnapshot(t *testing.T) {
	reg := newTestRegistry(t)
	host := reg.Connect("addr-1")
	guest := reg.Connect("addr-2")

	roomID, _, err := reg.CreateRoom(host.ConnID, "Alice")
	require.NoError(t, err)
	_, _, err = reg.JoinRoom(guest.ConnID, roomID, "Bob")
	require.NoError(t, err)

	require.NoError(t, reg.LeaveRoom(guest.ConnID))
	drainStatus(t, host)
	drainStatus(t, guest)

	// A mutation after the departure addresses exactly the members the
	// snapshot lists: the leaver gets nothing.
	require.NoError(t, reg.StartVoting(host.ConnID, "s"))

	snap := lastStatus(t, host)
	assert.Len(t, snap.Players, 1)
	_, got := drainStatus(t, guest)
	assert.False(t, got, "departed member must not receive the room broadcast")
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short ascii", "login page", 50, "login page"},
		{"long ascii", "abcdefgh", 5, "abcde"},
		{"multibyte cut", "été☕été☕", 3, "été"},
		{"multibyte kept", "☕☕", 10, "☕☕"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestDisconnectedMemberMissesBroadcast(t *testing.T) {
	reg := newTestRegistry(t)
	host := reg.Connect("addr-1")
	guest := reg.Connect("addr-2")

	roomID, _, err := reg.CreateRoom(host.ConnID, "Alice")
	require.NoError(t, err)
	_, _, err = reg.JoinRoom(guest.ConnID, roomID, "Bob")
	require.NoError(t, err)

	// A closed outbox must not break broadcasts to the other members.
	guest.Outbox.Close()
	reg.Disconnect(guest.ConnID)

	require.NoError(t, reg.StartVoting(host.ConnID, "s"))
	snap := lastStatus(t, host)
	assert.Equal(t, string(room.StateVoting), snap.State)
	assert.Len(t, snap.Players, 1)
}
