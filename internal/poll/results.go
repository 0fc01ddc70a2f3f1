package poll

import "sort"

// ComputeResults tallies votes per option.
//
// TotalVotes is len(votes): a vote whose option does not exist is not counted for
// any option but still counts toward the total. Votes are not deduplicated here;
// replacing a voter's earlier vote is the caller's job (see ReplaceVote).
func ComputeResults(votes []Vote, options []PollOption) VoteResults {
	results, _ := tally(votes, options)
	return summarize(results, len(votes))
}

// ComputeMatchedResults is ComputeResults with TotalVotes restricted to votes
// that matched an option, so the per-option counts always add up to the total.
func ComputeMatchedResults(votes []Vote, options []PollOption) VoteResults {
	results, matched := tally(votes, options)
	return summarize(results, matched)
}

func tally(votes []Vote, options []PollOption) ([]VoteResult, int) {
	results := make([]VoteResult, len(options))
	index := make(map[string]int, len(options))
	for i, opt := range options {
		results[i] = VoteResult{OptionID: opt.ID, OptionName: opt.Name}
		if _, dup := index[opt.ID]; !dup {
			index[opt.ID] = i
		}
	}

	matched := 0
	for _, v := range votes {
		i, ok := index[v.SelectedOptionID]
		if !ok {
			continue
		}
		results[i].VoteCount++
		matched++
	}
	return results, matched
}

func summarize(results []VoteResult, total int) VoteResults {
	for i := range results {
		if total > 0 {
			results[i].Percentage = float64(results[i].VoteCount) / float64(total) * 100
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].VoteCount > results[j].VoteCount
	})

	out := VoteResults{
		Results:     results,
		TotalVotes:  total,
		TiedOptions: []PollOption{},
	}
	if len(results) == 0 || results[0].VoteCount == 0 {
		return out
	}

	maxVotes := results[0].VoteCount
	var top []PollOption
	for _, r := range results {
		if r.VoteCount != maxVotes {
			break
		}
		top = append(top, PollOption{ID: r.OptionID, Name: r.OptionName})
	}

	if len(top) > 1 {
		out.HasTie = true
		out.TiedOptions = top
		return out
	}
	winner := results[0]
	out.Winner = &winner
	return out
}
