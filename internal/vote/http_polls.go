package vote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/hostauth"
	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

const maxStartingStateBytes = 64 << 10

func (s *HTTPServer) handleLists(w http.ResponseWriter, r *http.Request) {
	lists, err := poll.PredefinedLists()
	if err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lists": lists})
}

func (s *HTTPServer) handleNewVoter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"voterId": poll.NewVoterID()})
}

func (s *HTTPServer) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var body createPollRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeVoteError(w, r, err)
		return
	}

	options, err := optionsFor(body)
	if err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	correct, ok := optionNamed(options, body.CorrectOption)
	if !ok {
		writeError(w, http.StatusBadRequest, poll.ErrUnknownCorrectOption.Error())
		return
	}

	state, err := poll.NewPollState(body.Question, options, body.OptionsSource, correct.ID)
	if err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	created, err := s.register(r.Context(), state)
	if err != nil {
		s.writeVoteError(w, r, err)
		return
	}

	s.logger.Info("poll created",
		"poll_id", state.PollID,
		"options_source", state.OptionsSource,
		"options", len(state.Options),
	)
	writeJSON(w, http.StatusCreated, created)
}

// handleStartActivity registers the poll a host session handed over as its
// starting state. Registering the same poll twice is harmless.
func (s *HTTPServer) handleStartActivity(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStartingStateBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "starting state too large")
		return
	}
	state := poll.LoadStartingState(s.logger, string(raw))
	if state == nil {
		writeError(w, http.StatusUnprocessableEntity, poll.ErrInvalidStartingState.Error())
		return
	}
	if err := poll.ValidateStartingState(*state); err != nil {
		s.logger.Warn("starting state rejected", "poll_id", state.PollID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.SavePoll(r.Context(), *state); err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	stored, err := s.loadPollWithVotes(r.Context(), state.PollID)
	if err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *HTTPServer) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadPollWithVotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleTiebreaker(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")
	if err := s.requireHost(r, pollID); err != nil {
		s.writeVoteError(w, r, err)
		return
	}

	prev, err := s.loadPollWithVotes(r.Context(), pollID)
	if err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	if prev.Status != poll.StatusCompleted {
		writeError(w, http.StatusConflict, "results have not been revealed")
		return
	}

	next, err := poll.NewTiebreaker(*prev, poll.ComputeResults(prev.Votes, prev.Options))
	if errors.Is(err, poll.ErrNoTie) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	created, err := s.register(r.Context(), next)
	if err != nil {
		s.writeVoteError(w, r, err)
		return
	}

	s.logger.Info("tiebreaker created",
		"poll_id", next.PollID,
		"previous_poll_id", prev.PollID,
		"round", next.Round,
	)
	writeJSON(w, http.StatusCreated, created)
}

// register stores a new poll and prepares what its host needs.
func (s *HTTPServer) register(ctx context.Context, state poll.PollState) (PollCreated, error) {
	if err := s.store.SavePoll(ctx, state); err != nil {
		return PollCreated{}, err
	}
	token, err := s.hosts.Issue(state.PollID)
	if err != nil {
		return PollCreated{}, err
	}
	blob, err := poll.EncodeStartingState(state)
	if err != nil {
		return PollCreated{}, err
	}
	return PollCreated{Poll: state, StartingState: blob, HostToken: token}, nil
}

func (s *HTTPServer) loadPollWithVotes(ctx context.Context, pollID string) (*poll.PollState, error) {
	state, err := s.store.LoadPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	votes, err := s.store.LoadVotes(ctx, pollID)
	if err != nil {
		return nil, err
	}
	state.Votes = votes
	return state, nil
}

func (s *HTTPServer) requireHost(r *http.Request, pollID string) error {
	token, err := hostauth.BearerToken(r)
	if err == nil {
		err = s.hosts.Verify(token, pollID)
	}
	if err != nil {
		return &voteError{status: http.StatusUnauthorized, msg: err.Error()}
	}
	return nil
}

func optionsFor(body createPollRequest) ([]poll.PollOption, error) {
	switch body.OptionsSource {
	case poll.SourcePredefined:
		list, ok := poll.FindPredefinedList(body.ListID)
		if !ok {
			return nil, &voteError{status: http.StatusBadRequest, msg: "unknown list " + body.ListID}
		}
		return poll.OptionsFromNames(list.Options), nil
	case poll.SourceCustom:
		if err := poll.ValidateCustomOptions(body.CustomOptions); err != nil {
			return nil, err
		}
		return poll.ParseCustomOptions(body.CustomOptions), nil
	default:
		return nil, &voteError{status: http.StatusBadRequest, msg: "optionsSource must be predefined or custom"}
	}
}

func optionNamed(options []poll.PollOption, name string) (poll.PollOption, bool) {
	name = strings.TrimSpace(name)
	for _, opt := range options {
		if strings.EqualFold(opt.Name, name) {
			return opt, true
		}
	}
	return poll.PollOption{}, false
}
