package poll

import "errors"

type Status string

const (
	StatusSetup     Status = "setup"
	StatusVoting    Status = "voting"
	StatusCompleted Status = "completed"
)

type OptionsSource string

const (
	SourcePredefined OptionsSource = "predefined"
	SourceCustom     OptionsSource = "custom"
)

type PollOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Vote is an anonymous ballot. Timestamp is unix milliseconds.
type Vote struct {
	VoterID          string `json:"voterId"`
	SelectedOptionID string `json:"selectedOptionId"`
	Timestamp        int64  `json:"timestamp"`
}

// PollState is the whole poll as handed to every view when the activity starts.
// Options are frozen after creation; votes accumulate.
type PollState struct {
	Options         []PollOption  `json:"options"`
	Votes           []Vote        `json:"votes"`
	Status          Status        `json:"status"`
	Question        string        `json:"question,omitempty"`
	PollID          string        `json:"pollId"`
	Round           int           `json:"round"`
	OptionsSource   OptionsSource `json:"optionsSource"`
	CorrectOptionID string        `json:"correctOptionId,omitempty"`
}

// Option returns the option with the given id.
func (s PollState) Option(id string) (PollOption, bool) {
	for _, opt := range s.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return PollOption{}, false
}

type VoteResult struct {
	OptionID   string  `json:"optionId"`
	OptionName string  `json:"optionName"`
	VoteCount  int     `json:"voteCount"`
	Percentage float64 `json:"percentage"`
}

// VoteResults is derived from the vote collection and never stored on its own.
type VoteResults struct {
	Results     []VoteResult `json:"results"`
	TotalVotes  int          `json:"totalVotes"`
	HasTie      bool         `json:"hasTie"`
	TiedOptions []PollOption `json:"tiedOptions"`
	Winner      *VoteResult  `json:"winner"`
}

var (
	ErrPollNotFound         = errors.New("poll not found")
	ErrTooFewOptions        = errors.New("at least 2 options are required")
	ErrTooManyOptions       = errors.New("at most 50 options are allowed")
	ErrDuplicateOption      = errors.New("duplicate option")
	ErrUnknownCorrectOption = errors.New("correct option is not one of the poll options")
	ErrNoTie                = errors.New("results have no tie to break")
	ErrInvalidStartingState = errors.New("invalid starting state")
	ErrNotVoting            = errors.New("poll is not in the voting status")
)

// IsValidation reports whether err comes from validating poll input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrTooFewOptions) ||
		errors.Is(err, ErrTooManyOptions) ||
		errors.Is(err, ErrDuplicateOption) ||
		errors.Is(err, ErrUnknownCorrectOption)
}
