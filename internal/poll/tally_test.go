package poll

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceVote(t *testing.T) {
	votes := []Vote{vote("v1", "a"), vote("v2", "b")}
	got := ReplaceVote(votes, vote("v1", "b"))

	assert.Equal(t, []Vote{vote("v2", "b"), vote("v1", "b")}, got)
	assert.Equal(t, []Vote{vote("v1", "a"), vote("v2", "b")}, votes)
	assert.Equal(t, []Vote{vote("v3", "a")}, ReplaceVote(nil, vote("v3", "a")))
}

func TestTally(t *testing.T) {
	state := PollState{
		PollID:  "poll_1",
		Options: []PollOption{anna, bernat},
		Status:  StatusVoting,
		Votes:   []Vote{vote("v1", "a"), vote("v1", "b"), vote("v2", "b")},
	}
	tally := NewTally(state)

	got, res, revealed := tally.Snapshot()
	assert.False(t, revealed)
	assert.Len(t, got.Votes, 2)
	assert.Equal(t, 2, res.TotalVotes)
	require.NotNil(t, res.Winner)
	assert.Equal(t, "b", res.Winner.OptionID)

	tally.RecordVote(vote("v2", "a"))
	tally.RecordVote(vote("v3", "a"))
	_, res, _ = tally.Snapshot()
	assert.Equal(t, 3, res.TotalVotes)
	assert.Equal(t, "a", res.Winner.OptionID)

	tally.Reveal()
	got, _, revealed = tally.Snapshot()
	assert.True(t, revealed)
	assert.True(t, tally.Revealed())
	assert.Equal(t, StatusCompleted, got.Status)

	// snapshots are detached from the tally
	got.Votes[0].SelectedOptionID = "zzz"
	again, _, _ := tally.Snapshot()
	assert.NotEqual(t, "zzz", again.Votes[0].SelectedOptionID)
}

func TestTally_CompletedStateStartsRevealed(t *testing.T) {
	tally := NewTally(PollState{Status: StatusCompleted})
	assert.True(t, tally.Revealed())
}

func TestTally_ConcurrentVotes(t *testing.T) {
	tally := NewTally(PollState{Options: []PollOption{anna, bernat}})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opt := "a"
			if i%2 == 0 {
				opt = "b"
			}
			tally.RecordVote(vote(string(rune('A'+i%10)), opt))
		}(i)
	}
	wg.Wait()

	_, res, _ := tally.Snapshot()
	assert.Equal(t, 10, res.TotalVotes)
}
