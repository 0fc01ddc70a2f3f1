package vote

import "github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"

type createPollRequest struct {
	Question      string             `json:"question"`
	OptionsSource poll.OptionsSource `json:"optionsSource"`
	ListID        string             `json:"listId,omitempty"`
	CustomOptions string             `json:"customOptions,omitempty"`
	// CorrectOption is the name of the correct option, matched case-insensitively.
	CorrectOption string `json:"correctOption"`
}

// PollCreated is what the host session needs to start the activity.
type PollCreated struct {
	Poll          poll.PollState `json:"poll"`
	StartingState string         `json:"startingState"`
	HostToken     string         `json:"hostToken"`
}

type castVoteRequest struct {
	VoterID          string `json:"voterId,omitempty"`
	SelectedOptionID string `json:"selectedOptionId"`
}

type VoteResponse struct {
	Vote poll.Vote `json:"vote"`
}

// err domain
type voteError struct {
	status int
	msg    string
}

func (e *voteError) Error() string {
	return e.msg
}
