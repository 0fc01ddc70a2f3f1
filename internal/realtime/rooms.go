package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/channel"
	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

const (
	typeResultsUpdated = "results.updated"
	typeChannelState   = "channel.state"
	typeError          = "error"
)

// Store is the persistence the realtime side reads polls from and writes
// votes cast over websockets to.
type Store interface {
	LoadPoll(ctx context.Context, pollID string) (*poll.PollState, error)
	LoadVotes(ctx context.Context, pollID string) ([]poll.Vote, error)
	SaveVote(ctx context.Context, pollID string, v poll.Vote) error
	UpdatePollStatus(ctx context.Context, pollID string, status poll.Status) error
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Room is the live state of one poll on this instance: a tally fed by the
// poll's vote channel, shared by every view of the poll.
type Room struct {
	pollID  string
	tally   *poll.Tally
	channel *channel.Channel
	rooms   *Rooms
	refs    int
}

func (r *Room) PollID() string {
	return r.pollID
}

func (r *Room) Channel() *channel.Channel {
	return r.channel
}

// Snapshot returns the room's current results message.
func (r *Room) Snapshot() []byte {
	state, _, revealed := r.tally.Snapshot()
	return r.rooms.encode(typeResultsUpdated, poll.NewResultsView(state, revealed))
}

func (r *Room) onVote(v poll.Vote) {
	r.tally.RecordVote(v)
	r.rooms.hub.Publish(r.pollID, r.Snapshot())
}

func (r *Room) onReveal() {
	r.tally.Reveal()
	r.rooms.logger.Info("results revealed", "poll_id", r.pollID)
	r.rooms.hub.Publish(r.pollID, r.Snapshot())
}

func (r *Room) onStateChange(s channel.State) {
	r.rooms.hub.Publish(r.pollID, r.rooms.encode(typeChannelState, map[string]string{"state": s.String()}))
}

// Rooms keeps one Room per poll with connected views. The first Acquire of a
// poll loads it and binds its channel; the last Release unbinds it.
type Rooms struct {
	ctx       context.Context
	store     Store
	transport channel.Transport
	hub       *Hub
	logger    *slog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRooms binds channels for the lifetime of ctx.
func NewRooms(ctx context.Context, store Store, transport channel.Transport, hub *Hub, logger *slog.Logger) *Rooms {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rooms{
		ctx:       ctx,
		store:     store,
		transport: transport,
		hub:       hub,
		logger:    logger,
		rooms:     make(map[string]*Room),
	}
}

// Acquire returns pollID's room, opening it on first use. A room whose
// channel went disconnected is bound again.
func (rs *Rooms) Acquire(ctx context.Context, pollID string) (*Room, error) {
	if room := rs.existing(pollID); room != nil {
		rs.rebindIfDisconnected(room)
		return room, nil
	}

	state, err := rs.store.LoadPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	votes, err := rs.store.LoadVotes(ctx, pollID)
	if err != nil {
		return nil, err
	}
	state.Votes = votes

	rs.mu.Lock()
	if room, ok := rs.rooms[pollID]; ok {
		room.refs++
		rs.mu.Unlock()
		rs.rebindIfDisconnected(room)
		return room, nil
	}
	room := &Room{pollID: pollID, tally: poll.NewTally(*state), rooms: rs, refs: 1}
	room.channel = channel.New(rs.transport, channel.Handlers{
		OnVote:        room.onVote,
		OnReveal:      room.onReveal,
		OnStateChange: room.onStateChange,
	}, rs.logger)
	room.channel.Bind(rs.ctx, pollID)
	rs.rooms[pollID] = room
	rs.mu.Unlock()

	rs.logger.Debug("room opened", "poll_id", pollID, "votes", len(votes))
	return room, nil
}

func (rs *Rooms) existing(pollID string) *Room {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	room, ok := rs.rooms[pollID]
	if !ok {
		return nil
	}
	room.refs++
	return room
}

// rebindIfDisconnected resubscribes a room the caller holds a reference to.
// Votes published while it was disconnected are not replayed.
func (rs *Rooms) rebindIfDisconnected(room *Room) {
	if room.channel.State() != channel.Disconnected {
		return
	}
	rs.logger.Info("rebinding disconnected room", "poll_id", room.pollID)
	room.channel.Bind(rs.ctx, room.pollID)
}

func (rs *Rooms) Release(room *Room) {
	rs.mu.Lock()
	room.refs--
	last := room.refs == 0
	if last && rs.rooms[room.pollID] == room {
		delete(rs.rooms, room.pollID)
	}
	rs.mu.Unlock()

	if last {
		room.channel.Close()
		rs.logger.Debug("room closed", "poll_id", room.pollID)
	}
}

// Open returns how many rooms are bound.
func (rs *Rooms) Open() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.rooms)
}

func (rs *Rooms) encode(typ string, payload any) []byte {
	data, err := json.Marshal(envelope{Type: typ, Payload: payload})
	if err != nil {
		rs.logger.Error("encode realtime message failed", "type", typ, "error", err)
		return []byte(fmt.Sprintf(`{"type":%q,"payload":null}`, typeError))
	}
	return data
}
