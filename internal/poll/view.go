package poll

type OptionCount struct {
	OptionID   string `json:"optionId"`
	OptionName string `json:"optionName"`
	VoteCount  int    `json:"voteCount"`
}

// ResultsView is what a view may show of a poll: live counts in option order
// until results are revealed, then the ranked results and the correct option.
type ResultsView struct {
	PollID          string        `json:"pollId"`
	Question        string        `json:"question,omitempty"`
	Status          Status        `json:"status"`
	Round           int           `json:"round"`
	Revealed        bool          `json:"revealed"`
	TotalVotes      int           `json:"totalVotes"`
	Counts          []OptionCount `json:"counts,omitempty"`
	Results         *VoteResults  `json:"results,omitempty"`
	CorrectOptionID string        `json:"correctOptionId,omitempty"`
}

func NewResultsView(state PollState, revealed bool) ResultsView {
	res := ComputeResults(state.Votes, state.Options)
	view := ResultsView{
		PollID:     state.PollID,
		Question:   state.Question,
		Status:     state.Status,
		Round:      state.Round,
		Revealed:   revealed,
		TotalVotes: res.TotalVotes,
	}
	if revealed {
		view.Results = &res
		view.CorrectOptionID = state.CorrectOptionID
		return view
	}

	counts := make(map[string]int, len(res.Results))
	for _, r := range res.Results {
		counts[r.OptionID] = r.VoteCount
	}
	view.Counts = make([]OptionCount, 0, len(state.Options))
	for _, opt := range state.Options {
		view.Counts = append(view.Counts, OptionCount{OptionID: opt.ID, OptionName: opt.Name, VoteCount: counts[opt.ID]})
	}
	return view
}
