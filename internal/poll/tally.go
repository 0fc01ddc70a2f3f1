package poll

import "sync"

// ReplaceVote drops any earlier vote of v.VoterID and appends v. The input slice
// is left untouched.
func ReplaceVote(votes []Vote, v Vote) []Vote {
	out := make([]Vote, 0, len(votes)+1)
	for _, existing := range votes {
		if existing.VoterID != v.VoterID {
			out = append(out, existing)
		}
	}
	return append(out, v)
}

// Tally is one view's local picture of a poll: the votes it has observed, last
// observed vote per voter winning, and whether results were revealed.
type Tally struct {
	mu       sync.RWMutex
	state    PollState
	revealed bool
}

// NewTally starts from state and replays its votes in order.
func NewTally(state PollState) *Tally {
	votes := state.Votes
	state.Votes = []Vote{}
	t := &Tally{state: state, revealed: state.Status == StatusCompleted}
	for _, v := range votes {
		t.state.Votes = ReplaceVote(t.state.Votes, v)
	}
	return t
}

func (t *Tally) RecordVote(v Vote) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Votes = ReplaceVote(t.state.Votes, v)
}

func (t *Tally) Reveal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revealed = true
	t.state.Status = StatusCompleted
}

func (t *Tally) Revealed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revealed
}

// Snapshot returns a copy of the state, the results computed from it and the
// reveal flag.
func (t *Tally) Snapshot() (PollState, VoteResults, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state := t.state
	state.Votes = make([]Vote, len(t.state.Votes))
	copy(state.Votes, t.state.Votes)
	state.Options = make([]PollOption, len(t.state.Options))
	copy(state.Options, t.state.Options)
	return state, ComputeResults(state.Votes, state.Options), t.revealed
}
