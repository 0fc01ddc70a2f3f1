package vote

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *HTTPServer) writeVoteError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *voteError
	switch {
	case errors.As(err, &ve):
		writeError(w, ve.status, ve.msg)
	case errors.Is(err, poll.ErrPollNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case poll.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("vote request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &voteError{status: http.StatusBadRequest, msg: "invalid JSON body"}
	}
	return nil
}
