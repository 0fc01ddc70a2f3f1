package vote

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("votes"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, AutoMigrate(ctx, pool))
	return pool
}

func TestPostgresStore_Integration(t *testing.T) {
	pool := setupPostgres(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	state := testPoll()
	require.NoError(t, store.SavePoll(ctx, state))
	require.NoError(t, store.SavePoll(ctx, state))

	got, err := store.LoadPoll(ctx, state.PollID)
	require.NoError(t, err)
	assert.Equal(t, state, *got)

	require.NoError(t, store.SaveVote(ctx, state.PollID, poll.Vote{VoterID: "v1", SelectedOptionID: "a", Timestamp: 2}))
	require.NoError(t, store.SaveVote(ctx, state.PollID, poll.Vote{VoterID: "v2", SelectedOptionID: "a", Timestamp: 1}))
	require.NoError(t, store.SaveVote(ctx, state.PollID, poll.Vote{VoterID: "v1", SelectedOptionID: "b", Timestamp: 3}))

	votes, err := store.LoadVotes(ctx, state.PollID)
	require.NoError(t, err)
	assert.Equal(t, []poll.Vote{
		{VoterID: "v2", SelectedOptionID: "a", Timestamp: 1},
		{VoterID: "v1", SelectedOptionID: "b", Timestamp: 3},
	}, votes)

	err = store.SaveVote(ctx, "missing", poll.Vote{VoterID: "v1", SelectedOptionID: "a", Timestamp: 1})
	assert.ErrorIs(t, err, poll.ErrPollNotFound)

	require.NoError(t, store.UpdatePollStatus(ctx, state.PollID, poll.StatusCompleted))
	assert.ErrorIs(t, store.UpdatePollStatus(ctx, "missing", poll.StatusCompleted), poll.ErrPollNotFound)
}
