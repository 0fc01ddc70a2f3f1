package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

const waitFor = time.Second

// recorder collects what a channel hands to its handlers.
type recorder struct {
	votes   chan poll.Vote
	reveals chan struct{}

	mu     sync.Mutex
	states []State
}

func newRecorder() *recorder {
	return &recorder{votes: make(chan poll.Vote, 16), reveals: make(chan struct{}, 16)}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnVote:   func(v poll.Vote) { r.votes <- v },
		OnReveal: func() { r.reveals <- struct{}{} },
		OnStateChange: func(s State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) seenStates() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func connected(t *testing.T, transport Transport, pollID string) (*Channel, *recorder) {
	t.Helper()
	rec := newRecorder()
	ch := New(transport, rec.handlers(), nil)
	ch.Bind(context.Background(), pollID)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, ch.AwaitConnected(ctx))
	t.Cleanup(ch.Close)
	return ch, rec
}

func TestChannel_StartsUnbound(t *testing.T) {
	ch := New(NewMemoryTransport(), Handlers{}, nil)

	assert.Equal(t, Unbound, ch.State())
	assert.ErrorIs(t, ch.SendVote(context.Background(), poll.Vote{VoterID: "v"}), ErrChannelNotConnected)
	assert.ErrorIs(t, ch.SendRevealCommand(context.Background()), ErrChannelNotConnected)
	assert.ErrorIs(t, ch.AwaitConnected(context.Background()), ErrChannelNotConnected)
}

func TestChannel_VoteReachesOtherView(t *testing.T) {
	transport := NewMemoryTransport()
	host, _ := connected(t, transport, "poll_1")
	_, stage := connected(t, transport, "poll_1")

	v := poll.Vote{VoterID: "voter_1", SelectedOptionID: "option_a", Timestamp: 100}
	require.NoError(t, host.SendVote(context.Background(), v))

	select {
	case got := <-stage.votes:
		assert.Equal(t, v, got)
	case <-time.After(waitFor):
		t.Fatal("vote not delivered")
	}

	require.NoError(t, host.SendRevealCommand(context.Background()))
	select {
	case <-stage.reveals:
	case <-time.After(waitFor):
		t.Fatal("reveal not delivered")
	}
}

func TestChannel_OtherPollsAreIsolated(t *testing.T) {
	transport := NewMemoryTransport()
	a, _ := connected(t, transport, "poll_a")
	_, other := connected(t, transport, "poll_b")

	require.NoError(t, a.SendVote(context.Background(), poll.Vote{VoterID: "v", SelectedOptionID: "o"}))

	select {
	case v := <-other.votes:
		t.Fatalf("unexpected vote %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChannel_StateTransitions(t *testing.T) {
	transport := NewMemoryTransport()
	ch, rec := connected(t, transport, "poll_1")

	assert.Equal(t, Connected, ch.State())
	assert.Equal(t, "poll_1", ch.PollID())
	require.Eventually(t, func() bool { return len(rec.seenStates()) == 2 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []State{Connecting, Connected}, rec.seenStates())

	t.Run("same poll is a no-op", func(t *testing.T) {
		ch.Bind(context.Background(), "poll_1")
		assert.Equal(t, Connected, ch.State())
		assert.Equal(t, 1, transport.Subscribers(Topic("poll_1")))
	})

	t.Run("new poll replaces the subscription", func(t *testing.T) {
		ch.Bind(context.Background(), "poll_2")
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		require.NoError(t, ch.AwaitConnected(ctx))

		assert.Equal(t, 0, transport.Subscribers(Topic("poll_1")))
		assert.Equal(t, 1, transport.Subscribers(Topic("poll_2")))
	})

	t.Run("empty poll unbinds", func(t *testing.T) {
		ch.Bind(context.Background(), "")
		assert.Equal(t, Unbound, ch.State())
		assert.Equal(t, 0, transport.Subscribers(Topic("poll_2")))
	})
}

func TestChannel_CloseStopsHandlers(t *testing.T) {
	transport := NewMemoryTransport()
	sender, _ := connected(t, transport, "poll_1")
	ch, rec := connected(t, transport, "poll_1")

	ch.Close()
	assert.Equal(t, Disconnected, ch.State())
	assert.ErrorIs(t, ch.SendVote(context.Background(), poll.Vote{}), ErrChannelNotConnected)

	require.NoError(t, sender.SendVote(context.Background(), poll.Vote{VoterID: "v", SelectedOptionID: "o"}))
	select {
	case v := <-rec.votes:
		t.Fatalf("vote delivered after close: %+v", v)
	case <-time.After(50 * time.Millisecond):
	}

	t.Run("rebinding after disconnect reconnects", func(t *testing.T) {
		ch.Bind(context.Background(), "poll_1")
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		require.NoError(t, ch.AwaitConnected(ctx))
	})
}

func TestChannel_LostSubscription(t *testing.T) {
	transport := NewMemoryTransport()
	ch, _ := connected(t, transport, "poll_1")

	transport.Close()

	require.Eventually(t, func() bool { return ch.State() == Disconnected }, waitFor, 5*time.Millisecond)
	assert.ErrorIs(t, ch.SendVote(context.Background(), poll.Vote{}), ErrChannelNotConnected)
}

func TestChannel_ContextEndsBinding(t *testing.T) {
	rec := newRecorder()
	ch := New(NewMemoryTransport(), rec.handlers(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch.Bind(ctx, "poll_1")
	require.NoError(t, ch.AwaitConnected(context.Background()))

	cancel()
	require.Eventually(t, func() bool { return ch.State() == Disconnected }, waitFor, 5*time.Millisecond)
}

func TestChannel_MalformedMessagesAreDropped(t *testing.T) {
	transport := NewMemoryTransport()
	_, rec := connected(t, transport, "poll_1")
	ctx := context.Background()
	topic := Topic("poll_1")

	require.NoError(t, transport.Publish(ctx, topic, []byte(`{garbage`)))
	require.NoError(t, transport.Publish(ctx, topic, []byte(`{"event":"vote","payload":{"type":"VOTE_CAST","payload":null,"timestamp":1}}`)))
	require.NoError(t, transport.Publish(ctx, topic, []byte(`{"event":"presence","payload":{}}`)))
	good, err := EncodeFrame(VoteCast{Vote: poll.Vote{VoterID: "v2", SelectedOptionID: "o"}})
	require.NoError(t, err)
	require.NoError(t, transport.Publish(ctx, topic, good))

	select {
	case v := <-rec.votes:
		assert.Equal(t, "v2", v.VoterID)
	case <-time.After(waitFor):
		t.Fatal("valid vote not delivered")
	}
	assert.Empty(t, rec.votes)
}

func TestChannel_DuplicateVotersAreDelivered(t *testing.T) {
	transport := NewMemoryTransport()
	sender, _ := connected(t, transport, "poll_1")
	_, rec := connected(t, transport, "poll_1")

	for _, opt := range []string{"a", "b"} {
		require.NoError(t, sender.SendVote(context.Background(), poll.Vote{VoterID: "same", SelectedOptionID: opt}))
	}

	var got []string
	for len(got) < 2 {
		select {
		case v := <-rec.votes:
			got = append(got, v.SelectedOptionID)
		case <-time.After(waitFor):
			t.Fatalf("got %v", got)
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

type failingTransport struct {
	subscribeErr error
	readyErr     error
	publishErr   error
	inner        *MemoryTransport
}

func (f *failingTransport) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	sub, err := f.inner.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	return &failingSubscription{Subscription: sub, readyErr: f.readyErr}, nil
}

func (f *failingTransport) Publish(ctx context.Context, topic string, data []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	return f.inner.Publish(ctx, topic, data)
}

type failingSubscription struct {
	Subscription
	readyErr error
}

func (s *failingSubscription) Ready(ctx context.Context) error {
	if s.readyErr != nil {
		return s.readyErr
	}
	return s.Subscription.Ready(ctx)
}

func TestChannel_TransportFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("subscribe fails", func(t *testing.T) {
		ch := New(&failingTransport{subscribeErr: boom, inner: NewMemoryTransport()}, Handlers{}, nil)
		ch.Bind(context.Background(), "poll_1")

		assert.ErrorIs(t, ch.AwaitConnected(context.Background()), ErrChannelNotConnected)
		assert.Equal(t, Disconnected, ch.State())
	})

	t.Run("subscription never confirmed", func(t *testing.T) {
		ch := New(&failingTransport{readyErr: boom, inner: NewMemoryTransport()}, Handlers{}, nil)
		ch.Bind(context.Background(), "poll_1")

		assert.ErrorIs(t, ch.AwaitConnected(context.Background()), ErrChannelNotConnected)
		assert.Equal(t, Disconnected, ch.State())
	})

	t.Run("publish fails", func(t *testing.T) {
		ch, _ := connected(t, &failingTransport{publishErr: boom, inner: NewMemoryTransport()}, "poll_1")

		err := ch.SendVote(context.Background(), poll.Vote{VoterID: "v", SelectedOptionID: "o"})
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrChannelNotConnected)
	})
}

type blockingTransport struct{ *MemoryTransport }

type blockingSubscription struct{ Subscription }

func (b blockingTransport) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	sub, err := b.MemoryTransport.Subscribe(ctx, topic)
	return blockingSubscription{sub}, err
}

func (blockingSubscription) Ready(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestChannel_AwaitConnectedTimesOut(t *testing.T) {
	ch := New(blockingTransport{NewMemoryTransport()}, Handlers{}, nil)
	ch.Bind(context.Background(), "poll_1")
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := ch.AwaitConnected(ctx)
	assert.ErrorIs(t, err, ErrChannelNotConnected)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Connecting, ch.State())
}

func TestChannel_RebindWhileConnectingIsAnnounced(t *testing.T) {
	rec := newRecorder()
	ch := New(blockingTransport{NewMemoryTransport()}, rec.handlers(), nil)

	ch.Bind(context.Background(), "poll_1")
	ch.Bind(context.Background(), "poll_2")
	assert.Equal(t, "poll_2", ch.PollID())
	assert.Equal(t, []State{Connecting, Connecting}, rec.seenStates())

	ch.Close()
	assert.Equal(t, []State{Connecting, Connecting, Disconnected}, rec.seenStates())
}
