package poll

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// NewPollState starts a first-round poll in the voting status.
func NewPollState(question string, options []PollOption, source OptionsSource, correctOptionID string) (PollState, error) {
	if len(options) < minOptions {
		return PollState{}, ErrTooFewOptions
	}
	state := PollState{
		Options:         options,
		Votes:           []Vote{},
		Status:          StatusVoting,
		Question:        strings.TrimSpace(question),
		PollID:          NewPollID(),
		Round:           1,
		OptionsSource:   source,
		CorrectOptionID: correctOptionID,
	}
	if _, ok := state.Option(correctOptionID); !ok {
		return PollState{}, ErrUnknownCorrectOption
	}
	return state, nil
}

// NewTiebreaker opens the next round restricted to the options tied for first
// place. Option ids are kept so the correct option survives when it was tied.
func NewTiebreaker(prev PollState, results VoteResults) (PollState, error) {
	if !results.HasTie || len(results.TiedOptions) < minOptions {
		return PollState{}, ErrNoTie
	}
	options := make([]PollOption, len(results.TiedOptions))
	copy(options, results.TiedOptions)

	next := PollState{
		Options:       options,
		Votes:         []Vote{},
		Status:        StatusVoting,
		Question:      prev.Question,
		PollID:        NewPollID(),
		Round:         prev.Round + 1,
		OptionsSource: prev.OptionsSource,
	}
	if _, ok := next.Option(prev.CorrectOptionID); ok {
		next.CorrectOptionID = prev.CorrectOptionID
	}
	return next, nil
}

// EncodeStartingState serializes the state the host session hands to every view.
func EncodeStartingState(state PollState) (string, error) {
	if state.Votes == nil {
		state.Votes = []Vote{}
	}
	b, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode starting state: %w", err)
	}
	return string(b), nil
}

func DecodeStartingState(blob string) (*PollState, error) {
	if strings.TrimSpace(blob) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidStartingState)
	}
	var state PollState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStartingState, err)
	}
	if state.PollID == "" {
		return nil, fmt.Errorf("%w: missing pollId", ErrInvalidStartingState)
	}
	if state.Votes == nil {
		state.Votes = []Vote{}
	}
	return &state, nil
}

// ValidateStartingState checks a handed over state the way NewPollState and
// NewTiebreaker build one: 2 to 50 options with distinct non-empty ids, a
// voting status and a correct option among the options. Only tiebreak rounds
// may leave the correct option empty.
func ValidateStartingState(state PollState) error {
	if len(state.Options) < minOptions {
		return ErrTooFewOptions
	}
	if len(state.Options) > maxOptions {
		return ErrTooManyOptions
	}
	seen := make(map[string]struct{}, len(state.Options))
	for _, opt := range state.Options {
		if opt.ID == "" {
			return fmt.Errorf("%w: option without id", ErrInvalidStartingState)
		}
		if _, ok := seen[opt.ID]; ok {
			return fmt.Errorf("%w: option id %q", ErrDuplicateOption, opt.ID)
		}
		seen[opt.ID] = struct{}{}
	}
	if state.Status != StatusVoting {
		return fmt.Errorf("%w: %q", ErrNotVoting, state.Status)
	}
	if state.CorrectOptionID == "" && state.Round > 1 {
		return nil
	}
	if _, ok := state.Option(state.CorrectOptionID); !ok {
		return ErrUnknownCorrectOption
	}
	return nil
}

// LoadStartingState decodes a starting-state blob and returns nil when it cannot,
// after logging why. A view without state keeps waiting for one.
func LoadStartingState(logger *slog.Logger, blob string) *PollState {
	state, err := DecodeStartingState(blob)
	if err != nil {
		resolveLogger(logger).Warn("starting state unreadable", "error", err)
		return nil
	}
	return state
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
