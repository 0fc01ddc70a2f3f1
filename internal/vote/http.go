package vote

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

// Broadcaster pushes accepted votes and reveals onto the poll's vote channel.
type Broadcaster interface {
	BroadcastVote(ctx context.Context, pollID string, v poll.Vote) error
	BroadcastReveal(ctx context.Context, pollID string) error
}

// HostTokens issues and checks the capability of a poll's initiator.
type HostTokens interface {
	Issue(pollID string) (string, error)
	Verify(raw, pollID string) error
}

type HTTPServer struct {
	store       Store
	broadcaster Broadcaster
	hosts       HostTokens
	logger      *slog.Logger
}

func NewServer(store Store, broadcaster Broadcaster, hosts HostTokens, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{
		store:       store,
		broadcaster: broadcaster,
		hosts:       hosts,
		logger:      logger,
	}
}

func NewRouter(store Store, broadcaster Broadcaster, hosts HostTokens, logger *slog.Logger) http.Handler {
	return NewServer(store, broadcaster, hosts, logger).Router()
}

func (s *HTTPServer) Router() chi.Router {
	r := chi.NewRouter()

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"service": "vote-service",
		})
	})

	r.Get("/lists", s.handleLists)
	r.Get("/voters/new", s.handleNewVoter)

	// polls
	r.Post("/polls", s.handleCreatePoll)
	r.Post("/activities", s.handleStartActivity)
	r.Get("/polls/{id}", s.handleGetPoll)
	r.Post("/polls/{id}/tiebreaker", s.handleTiebreaker)

	// voting
	r.Post("/polls/{id}/votes", s.handleCastVote)
	r.Get("/polls/{id}/results", s.handleResults)
	r.Post("/polls/{id}/reveal", s.handleReveal)

	return r
}
