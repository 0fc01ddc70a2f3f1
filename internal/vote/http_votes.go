package vote

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

// handleCastVote stores the vote, then broadcasts it. A vote that could not be
// broadcast is reported so the voter can retry; the stored copy is replaced on
// retry.
func (s *HTTPServer) handleCastVote(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")

	var body castVoteRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	if body.SelectedOptionID == "" {
		writeError(w, http.StatusBadRequest, "selectedOptionId is required")
		return
	}

	state, err := s.store.LoadPoll(r.Context(), pollID)
	if err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	if state.Status != poll.StatusVoting {
		writeError(w, http.StatusConflict, "poll is not accepting votes")
		return
	}
	if _, ok := state.Option(body.SelectedOptionID); !ok {
		writeError(w, http.StatusBadRequest, "unknown option "+body.SelectedOptionID)
		return
	}

	v := poll.Vote{
		VoterID:          body.VoterID,
		SelectedOptionID: body.SelectedOptionID,
		Timestamp:        time.Now().UnixMilli(),
	}
	if v.VoterID == "" {
		v.VoterID = poll.NewVoterID()
	}

	if err := s.store.SaveVote(r.Context(), pollID, v); err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	if err := s.broadcaster.BroadcastVote(r.Context(), pollID, v); err != nil {
		s.logger.Warn("vote broadcast failed",
			"poll_id", pollID,
			"voter_id", v.VoterID,
			"error", err,
		)
		writeError(w, http.StatusServiceUnavailable, "vote not delivered, please retry: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, VoteResponse{Vote: v})
}

func (s *HTTPServer) handleResults(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadPollWithVotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, poll.NewResultsView(*state, state.Status == poll.StatusCompleted))
}

func (s *HTTPServer) handleReveal(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")
	if err := s.requireHost(r, pollID); err != nil {
		s.writeVoteError(w, r, err)
		return
	}

	if err := s.store.UpdatePollStatus(r.Context(), pollID, poll.StatusCompleted); err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	if err := s.broadcaster.BroadcastReveal(r.Context(), pollID); err != nil {
		s.logger.Warn("reveal broadcast failed", "poll_id", pollID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "reveal not delivered, please retry: "+err.Error())
		return
	}

	state, err := s.loadPollWithVotes(r.Context(), pollID)
	if err != nil {
		s.writeVoteError(w, r, err)
		return
	}
	s.logger.Info("results revealed", "poll_id", pollID, "votes", len(state.Votes))
	writeJSON(w, http.StatusOK, poll.NewResultsView(*state, state.Status == poll.StatusCompleted))
}
