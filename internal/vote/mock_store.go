package vote

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveVote(ctx context.Context, pollID string, v poll.Vote) error {
	args := m.Called(ctx, pollID, v)
	return args.Error(0)
}

func (m *MockStore) LoadVotes(ctx context.Context, pollID string) ([]poll.Vote, error) {
	args := m.Called(ctx, pollID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]poll.Vote), args.Error(1)
}

func (m *MockStore) SavePoll(ctx context.Context, state poll.PollState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockStore) LoadPoll(ctx context.Context, pollID string) (*poll.PollState, error) {
	args := m.Called(ctx, pollID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*poll.PollState), args.Error(1)
}

func (m *MockStore) UpdatePollStatus(ctx context.Context, pollID string, status poll.Status) error {
	args := m.Called(ctx, pollID, status)
	return args.Error(0)
}
