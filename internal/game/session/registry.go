package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pokerplan/pokerplan/internal/game/room"
	"github.com/pokerplan/pokerplan/internal/protocol"
)

var (
	// ErrRoomNotFound reports a join against a room code that is not live.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotInRoom reports a room operation from a connection with no
	// active room.
	ErrNotInRoom = errors.New("not in a room")
	// ErrUnknownConn reports an operation for a connection id the registry
	// does not track. Seen only on a registry misuse, never from clients.
	ErrUnknownConn = errors.New("unknown connection")
)

// Client is the registry's record for one live connection: the two
// indexes (connection → player, player → room) plus the outbound queue.
// Fields other than ConnID and Outbox are guarded by the registry mutex.
type Client struct {
	ConnID     string
	RemoteAddr string
	PlayerID   string
	RoomID     string
	Outbox     *Outbox
}

// Registry is the sole owner of mutable shared state: live rooms and live
// connections. The registry mutex protects only the maps and Client
// membership fields; each room serializes its own voting mutations under
// its own lock, so unrelated rooms never contend. Lock order is always
// registry before room.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*room.Room
	clients  map[string]*Client // connID → client
	byPlayer map[string]*Client // playerID → client, for broadcast fan-out

	outboxBuffer int
	defaultName  string
	broadcaster  *Broadcaster
	logger       *zap.Logger
}

// NewRegistry creates an empty Registry.
//
// Precondition: logger must be non-nil. outboxBuffer <= 0 selects the
// Outbox default; defaultName == "" selects room.DefaultPlayerName.
func NewRegistry(outboxBuffer int, defaultName string, logger *zap.Logger) *Registry {
	if defaultName == "" {
		defaultName = room.DefaultPlayerName
	}
	return &Registry{
		rooms:        make(map[string]*room.Room),
		clients:      make(map[string]*Client),
		byPlayer:     make(map[string]*Client),
		outboxBuffer: outboxBuffer,
		defaultName:  defaultName,
		broadcaster:  NewBroadcaster(logger),
		logger:       logger,
	}
}

// Connect registers a new connection and allocates its outbox.
//
// Postcondition: Returns a Client with a fresh connection id, not yet in
// any room.
func (r *Registry) Connect(remoteAddr string) *Client {
	c := &Client{
		ConnID:     uuid.NewString(),
		RemoteAddr: remoteAddr,
	}
	c.Outbox = NewOutbox(c.ConnID, r.outboxBuffer)

	r.mu.Lock()
	r.clients[c.ConnID] = c
	total := len(r.clients)
	r.mu.Unlock()

	r.logger.Info("connection registered",
		zap.String("conn_id", c.ConnID),
		zap.String("remote_addr", remoteAddr),
		zap.Int("connections", total),
	)
	return c
}

// Disconnect removes the connection: the player leaves its room (with host
// migration or room destruction as needed) and the outbox is closed,
// ending the connection's sender loop.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	c, ok := r.clients[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	snap, targets := r.removeFromRoomLocked(c)
	delete(r.clients, connID)
	total := len(r.clients)
	r.mu.Unlock()

	c.Outbox.Close()
	if targets != nil {
		r.broadcaster.RoomStatus(snap, targets)
	}

	r.logger.Info("connection removed",
		zap.String("conn_id", connID),
		zap.Int("connections", total),
	)
}

// CreateRoom creates a room with the caller as host. A caller already in a
// room leaves it first, exactly as if it had sent leave_room.
//
// Postcondition: Returns the new room and player ids. The room id is
// unique among live rooms.
func (r *Registry) CreateRoom(connID, playerName string) (roomID, playerID string, err error) {
	r.mu.Lock()
	c, ok := r.clients[connID]
	if !ok {
		r.mu.Unlock()
		return "", "", fmt.Errorf("%w: %s", ErrUnknownConn, connID)
	}
	prevSnap, prevTargets := r.removeFromRoomLocked(c)

	roomID, err = r.freeRoomIDLocked()
	if err != nil {
		r.mu.Unlock()
		return "", "", err
	}

	playerID = newPlayerID()
	p := room.NewPlayer(playerID, r.playerName(playerName))
	rm := room.New(roomID, p)
	r.rooms[roomID] = rm
	r.enterRoomLocked(c, playerID, roomID)

	snap, targets := r.roomTargetsLocked(rm)
	r.mu.Unlock()

	if prevTargets != nil {
		r.broadcaster.RoomStatus(prevSnap, prevTargets)
	}
	r.broadcaster.RoomStatus(snap, targets)

	r.logger.Info("room created",
		zap.String("room_id", roomID),
		zap.String("player_id", playerID),
		zap.String("player_name", p.Name),
	)
	return roomID, playerID, nil
}

// JoinRoom adds the caller to a live room. Room codes are matched
// case-insensitively; a caller already in a room leaves it first.
//
// Postcondition: Returns the normalized room id and new player id, or
// ErrRoomNotFound / room.ErrDuplicatePlayer. On error the caller's
// previous membership is unchanged.
func (r *Registry) JoinRoom(connID, rawRoomID, playerName string) (roomID, playerID string, err error) {
	roomID = strings.ToUpper(strings.TrimSpace(rawRoomID))

	r.mu.Lock()
	c, ok := r.clients[connID]
	if !ok {
		r.mu.Unlock()
		return "", "", fmt.Errorf("%w: %s", ErrUnknownConn, connID)
	}
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return "", "", fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}

	playerID = newPlayerID()
	p := room.NewPlayer(playerID, r.playerName(playerName))
	if err := rm.AddPlayer(p); err != nil {
		r.mu.Unlock()
		return "", "", err
	}
	prevSnap, prevTargets := r.removeFromRoomLocked(c)
	r.enterRoomLocked(c, playerID, roomID)

	snap, targets := r.roomTargetsLocked(rm)
	r.mu.Unlock()

	if prevTargets != nil {
		r.broadcaster.RoomStatus(prevSnap, prevTargets)
	}
	r.broadcaster.RoomStatus(snap, targets)

	r.logger.Info("player joined room",
		zap.String("room_id", roomID),
		zap.String("player_id", playerID),
		zap.String("player_name", p.Name),
	)
	return roomID, playerID, nil
}

// LeaveRoom removes the caller from its room without closing the
// connection.
//
// Postcondition: Returns ErrNotInRoom if the caller has no active room.
func (r *Registry) LeaveRoom(connID string) error {
	r.mu.Lock()
	c, ok := r.clients[connID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownConn, connID)
	}
	if c.RoomID == "" {
		r.mu.Unlock()
		return ErrNotInRoom
	}
	snap, targets := r.removeFromRoomLocked(c)
	r.mu.Unlock()

	if targets != nil {
		r.broadcaster.RoomStatus(snap, targets)
	}
	return nil
}

// StartVoting transitions the caller's room to Voting, clearing votes and
// recording the story.
func (r *Registry) StartVoting(connID, story string) error {
	c, rm, err := r.resolve(connID)
	if err != nil {
		return err
	}
	if err := rm.StartVoting(c.PlayerID, story); err != nil {
		return err
	}
	r.broadcastRoom(rm)
	r.logger.Info("voting started",
		zap.String("room_id", rm.ID()),
		zap.String("story", truncate(story, 50)),
	)
	return nil
}

// SubmitVote records the caller's vote. If this completes the round, the
// room reveals atomically with the vote.
func (r *Registry) SubmitVote(connID, vote string) error {
	card, err := room.ParseCard(vote)
	if err != nil {
		return err
	}
	c, rm, err := r.resolve(connID)
	if err != nil {
		return err
	}
	revealed, err := rm.SubmitVote(c.PlayerID, card)
	if err != nil {
		return err
	}
	r.broadcastRoom(rm)
	if revealed {
		r.logger.Info("all votes in, revealing",
			zap.String("room_id", rm.ID()),
		)
	}
	return nil
}

// RevealVotes freezes the caller's room's round. Host only.
func (r *Registry) RevealVotes(connID string) error {
	c, rm, err := r.resolve(connID)
	if err != nil {
		return err
	}
	if err := rm.RevealVotes(c.PlayerID); err != nil {
		return err
	}
	r.broadcastRoom(rm)
	r.logger.Info("votes revealed", zap.String("room_id", rm.ID()))
	return nil
}

// ResetRound clears the caller's room back to Idle. Host only.
func (r *Registry) ResetRound(connID string) error {
	c, rm, err := r.resolve(connID)
	if err != nil {
		return err
	}
	if err := rm.ResetRound(c.PlayerID); err != nil {
		return err
	}
	r.broadcastRoom(rm)
	r.logger.Info("round reset", zap.String("room_id", rm.ID()))
	return nil
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// ClientCount returns the number of registered connections.
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Room returns the live room with the given id.
//
// Postcondition: Returns (room, true) if live, or (nil, false).
func (r *Registry) Room(roomID string) (*room.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	return rm, ok
}

// resolve maps a connection to its client record and live room.
//
// In-room operations run against the returned room without the registry
// lock. This is safe: the room cannot be destroyed while the caller is a
// member, and membership for this connection only changes from its own
// dispatch loop.
func (r *Registry) resolve(connID string) (*Client, *room.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[connID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownConn, connID)
	}
	if c.RoomID == "" {
		return nil, nil, ErrNotInRoom
	}
	rm, ok := r.rooms[c.RoomID]
	if !ok {
		return nil, nil, ErrNotInRoom
	}
	return c, rm, nil
}

// broadcastRoom snapshots the room and fans it out to current members.
func (r *Registry) broadcastRoom(rm *room.Room) {
	r.mu.RLock()
	snap, targets := r.roomTargetsLocked(rm)
	r.mu.RUnlock()
	r.broadcaster.RoomStatus(snap, targets)
}

// roomTargetsLocked builds the snapshot and member outbox list. Targets
// come from the snapshot's own player list so the addressed member set is
// always the one the snapshot describes. Caller must hold r.mu.
func (r *Registry) roomTargetsLocked(rm *room.Room) (protocol.RoomStatus, []*Outbox) {
	snap := rm.Snapshot()
	targets := make([]*Outbox, 0, len(snap.Players))
	for _, p := range snap.Players {
		if mc, ok := r.byPlayer[p.ID]; ok {
			targets = append(targets, mc.Outbox)
		}
	}
	return snap, targets
}

// enterRoomLocked records membership on the client and the player index.
// Caller must hold r.mu for writing.
func (r *Registry) enterRoomLocked(c *Client, playerID, roomID string) {
	c.PlayerID = playerID
	c.RoomID = roomID
	r.byPlayer[playerID] = c
}

// removeFromRoomLocked takes the client out of its current room, migrating
// the host role or destroying an emptied room. Caller must hold r.mu for
// writing.
//
// Postcondition: Returns the post-removal snapshot and remaining member
// outboxes for broadcast, or a nil target slice when there is nothing to
// broadcast (not in a room, or the room was destroyed).
func (r *Registry) removeFromRoomLocked(c *Client) (protocol.RoomStatus, []*Outbox) {
	if c.RoomID == "" {
		return protocol.RoomStatus{}, nil
	}
	rm, ok := r.rooms[c.RoomID]
	roomID, playerID := c.RoomID, c.PlayerID
	delete(r.byPlayer, playerID)
	c.PlayerID = ""
	c.RoomID = ""
	if !ok {
		return protocol.RoomStatus{}, nil
	}

	empty, revealed, err := rm.RemovePlayer(playerID)
	if err != nil {
		return protocol.RoomStatus{}, nil
	}
	if empty {
		delete(r.rooms, roomID)
		r.logger.Info("room destroyed",
			zap.String("room_id", roomID),
		)
		return protocol.RoomStatus{}, nil
	}
	if revealed {
		r.logger.Info("departure completed round, revealing",
			zap.String("room_id", roomID),
		)
	}
	r.logger.Info("player left room",
		zap.String("room_id", roomID),
		zap.String("player_id", playerID),
	)
	snap, targets := r.roomTargetsLocked(rm)
	return snap, targets
}

// freeRoomIDLocked generates a room code unused by any live room.
// Caller must hold r.mu for writing.
func (r *Registry) freeRoomIDLocked() (string, error) {
	for {
		id, err := newRoomID()
		if err != nil {
			return "", err
		}
		if _, taken := r.rooms[id]; !taken {
			return id, nil
		}
	}
}

func (r *Registry) playerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return r.defaultName
	}
	return name
}

// newPlayerID returns the 8-character player token.
func newPlayerID() string {
	return uuid.NewString()[:8]
}

// truncate caps a log field at n runes without splitting a multi-byte
// character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
