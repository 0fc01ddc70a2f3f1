package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/channel"
	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

// HostVerifier checks the host token that allows revealing results.
type HostVerifier interface {
	Verify(raw, pollID string) error
}

type Options struct {
	// AllowedOrigins lists the origins allowed to open a websocket. Empty
	// allows any origin.
	AllowedOrigins []string
	// SendTimeout bounds how long a send waits for the channel to connect.
	SendTimeout time.Duration
}

type Server struct {
	hub      *Hub
	rooms    *Rooms
	store    Store
	hosts    HostVerifier
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewServer(hub *Hub, rooms *Rooms, store Store, hosts HostVerifier, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	s := &Server{
		hub:    hub,
		rooms:  rooms,
		store:  store,
		hosts:  hosts,
		opts:   opts,
		logger: logger,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// Router creates the chi.Router with the realtime routes.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	return r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.opts.AllowedOrigins, r.Header.Get("Origin"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "realtime",
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	pollID := r.URL.Query().Get("pollId")
	if pollID == "" {
		writeError(w, http.StatusBadRequest, "pollId is required")
		return
	}
	if !s.checkOrigin(r) {
		writeError(w, http.StatusForbidden, "origin not allowed")
		return
	}

	room, err := s.rooms.Acquire(r.Context(), pollID)
	if errors.Is(err, poll.ErrPollNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("open room failed", "poll_id", pollID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.rooms.Release(room)
		s.logger.Warn("ws upgrade failed", "poll_id", pollID, "error", err)
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		pollID:  pollID,
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		onFrame: s.handleFrame,
		onClose: func(*Client) { s.rooms.Release(room) },
		logger:  s.logger,
	}
	if !s.hub.Register(client) {
		s.rooms.Release(room)
		_ = conn.Close()
		return
	}
	s.hub.SendTo(client, room.Snapshot())

	go client.writePump()
	go client.readPump()
}

type clientFrame struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	HostToken string          `json:"hostToken,omitempty"`
}

type framePayload struct {
	VoterID          string `json:"voterId"`
	SelectedOptionID string `json:"selectedOptionId"`
}

// handleFrame runs a view's command. Failures go back to that view only.
func (s *Server) handleFrame(c *Client, data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.reply(c, "invalid frame", false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.SendTimeout)
	defer cancel()

	switch frame.Type {
	case channel.TypeVoteCast:
		var p framePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil || p.VoterID == "" || p.SelectedOptionID == "" {
			s.reply(c, "vote needs voterId and selectedOptionId", false)
			return
		}
		if err := s.castVote(ctx, c.pollID, poll.Vote{VoterID: p.VoterID, SelectedOptionID: p.SelectedOptionID}); err != nil {
			s.replyErr(c, err)
		}
	case channel.TypeRevealResults:
		if err := s.hosts.Verify(frame.HostToken, c.pollID); err != nil {
			s.reply(c, err.Error(), false)
			return
		}
		if err := s.reveal(ctx, c.pollID); err != nil {
			s.replyErr(c, err)
		}
	default:
		s.reply(c, "unknown frame type "+frame.Type, false)
	}
}

var errPollClosed = errors.New("poll is not accepting votes")

type unknownOptionError string

func (e unknownOptionError) Error() string {
	return "unknown option " + string(e)
}

func (s *Server) castVote(ctx context.Context, pollID string, v poll.Vote) error {
	state, err := s.store.LoadPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if state.Status != poll.StatusVoting {
		return errPollClosed
	}
	if _, ok := state.Option(v.SelectedOptionID); !ok {
		return unknownOptionError(v.SelectedOptionID)
	}
	v.Timestamp = time.Now().UnixMilli()
	if err := s.store.SaveVote(ctx, pollID, v); err != nil {
		return err
	}
	return s.BroadcastVote(ctx, pollID, v)
}

func (s *Server) reveal(ctx context.Context, pollID string) error {
	if err := s.store.UpdatePollStatus(ctx, pollID, poll.StatusCompleted); err != nil {
		return err
	}
	return s.BroadcastReveal(ctx, pollID)
}

func (s *Server) replyErr(c *Client, err error) {
	var unknown unknownOptionError
	switch {
	case errors.Is(err, channel.ErrChannelNotConnected):
		s.reply(c, err.Error(), true)
	case errors.Is(err, errPollClosed), errors.As(err, &unknown), errors.Is(err, poll.ErrPollNotFound):
		s.reply(c, err.Error(), false)
	default:
		s.logger.Warn("realtime command failed", "client_id", c.id, "poll_id", c.pollID, "error", err)
		s.reply(c, "command failed, please retry", true)
	}
}

func (s *Server) reply(c *Client, msg string, retry bool) {
	s.hub.SendTo(c, s.rooms.encode(typeError, map[string]any{"message": msg, "retry": retry}))
}

// BroadcastVote sends v on the poll's vote channel.
func (s *Server) BroadcastVote(ctx context.Context, pollID string, v poll.Vote) error {
	return s.withChannel(ctx, pollID, func(ch *channel.Channel) error {
		return ch.SendVote(ctx, v)
	})
}

// BroadcastReveal sends the reveal command on the poll's vote channel.
func (s *Server) BroadcastReveal(ctx context.Context, pollID string) error {
	return s.withChannel(ctx, pollID, func(ch *channel.Channel) error {
		return ch.SendRevealCommand(ctx)
	})
}

func (s *Server) withChannel(ctx context.Context, pollID string, send func(*channel.Channel) error) error {
	room, err := s.rooms.Acquire(ctx, pollID)
	if err != nil {
		return err
	}
	defer s.rooms.Release(room)

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()
	if err := room.channel.AwaitConnected(waitCtx); err != nil {
		return err
	}
	return send(room.channel)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
