package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

type State int

const (
	Unbound State = iota
	Connecting
	Connected
	Disconnected
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrChannelNotConnected = errors.New("channel not connected")

// Handlers receive what arrives on the bound topic. OnVote and OnReveal run
// one at a time on the binding's goroutine. OnStateChange may run on the
// goroutine calling Bind or Close. None of them may call Bind or Close.
type Handlers struct {
	OnVote        func(poll.Vote)
	OnReveal      func()
	OnStateChange func(State)
}

// Channel binds to one poll topic at a time.
type Channel struct {
	transport Transport
	handlers  Handlers
	logger    *slog.Logger

	mu     sync.Mutex
	state  State
	pollID string
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	ready  chan struct{}
}

func New(transport Transport, handlers Handlers, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		transport: transport,
		handlers:  handlers,
		logger:    logger.With("component", "vote_channel"),
	}
}

// Bind subscribes to pollID's topic. An empty pollID unbinds. Binding the
// poll that is already connecting or connected does nothing. The binding
// lasts until ctx is done, the next Bind or Close.
func (c *Channel) Bind(ctx context.Context, pollID string) {
	c.mu.Lock()
	if pollID != "" && pollID == c.pollID && (c.state == Connecting || c.state == Connected) {
		c.mu.Unlock()
		return
	}

	prevDone := c.detachLocked()
	c.pollID = pollID
	next := Unbound
	var start func()
	if pollID != "" {
		next = Connecting
		bindCtx, cancel := context.WithCancel(ctx)
		gen, done := c.gen, make(chan struct{})
		c.cancel, c.done = cancel, done
		c.ready = make(chan struct{})
		start = func() { go c.run(bindCtx, gen, pollID, done) }
	}
	// every new binding is announced, even one replacing a binding that was
	// still connecting
	changed := c.setStateLocked(next) || start != nil
	c.mu.Unlock()

	if prevDone != nil {
		<-prevDone
	}
	if changed {
		c.notifyState(next)
	}
	if start != nil {
		start()
	}
}

// Close tears down the current binding. Once it returns no handler runs.
func (c *Channel) Close() {
	c.mu.Lock()
	prevDone := c.detachLocked()
	changed := false
	if c.state != Unbound {
		changed = c.setStateLocked(Disconnected)
	}
	c.mu.Unlock()

	if prevDone != nil {
		<-prevDone
	}
	if changed {
		c.notifyState(Disconnected)
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) PollID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollID
}

// AwaitConnected waits while the channel is connecting. It returns nil once
// connected and ErrChannelNotConnected otherwise.
func (c *Channel) AwaitConnected(ctx context.Context) error {
	c.mu.Lock()
	state, ready := c.state, c.ready
	c.mu.Unlock()

	switch state {
	case Connected:
		return nil
	case Connecting:
	default:
		return ErrChannelNotConnected
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return errors.Join(ErrChannelNotConnected, ctx.Err())
	}
	if c.State() != Connected {
		return ErrChannelNotConnected
	}
	return nil
}

func (c *Channel) SendVote(ctx context.Context, v poll.Vote) error {
	return c.send(ctx, VoteCast{Vote: v, SentAt: time.Now().UnixMilli()})
}

func (c *Channel) SendRevealCommand(ctx context.Context) error {
	return c.send(ctx, RevealResults{SentAt: time.Now().UnixMilli()})
}

func (c *Channel) send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	state, pollID := c.state, c.pollID
	c.mu.Unlock()
	if state != Connected {
		return ErrChannelNotConnected
	}

	data, err := EncodeFrame(msg)
	if err != nil {
		return err
	}
	if err := c.transport.Publish(ctx, Topic(pollID), data); err != nil {
		return fmt.Errorf("send %s: %w", msg.messageType(), err)
	}
	return nil
}

// detachLocked cancels the current binding and returns the channel its
// goroutine closes on exit.
func (c *Channel) detachLocked() chan struct{} {
	c.gen++
	c.closeReadyLocked()
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	done := c.done
	c.cancel, c.done = nil, nil
	return done
}

func (c *Channel) closeReadyLocked() {
	if c.ready != nil {
		close(c.ready)
		c.ready = nil
	}
}

func (c *Channel) setStateLocked(s State) bool {
	if c.state == s {
		return false
	}
	c.state = s
	if s != Connecting {
		c.closeReadyLocked()
	}
	return true
}

// transition applies s only if gen is still the current binding.
func (c *Channel) transition(gen uint64, s State) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	changed := c.setStateLocked(s)
	c.mu.Unlock()
	if changed {
		c.notifyState(s)
	}
}

func (c *Channel) notifyState(s State) {
	if c.handlers.OnStateChange != nil {
		c.handlers.OnStateChange(s)
	}
}

func (c *Channel) run(ctx context.Context, gen uint64, pollID string, done chan struct{}) {
	defer close(done)
	log := c.logger.With("poll_id", pollID)

	sub, err := c.transport.Subscribe(ctx, Topic(pollID))
	if err != nil {
		log.Warn("vote channel subscribe failed", "error", err)
		c.transition(gen, Disconnected)
		return
	}
	defer sub.Close()

	if err := sub.Ready(ctx); err != nil {
		log.Warn("vote channel subscription not confirmed", "error", err)
		c.transition(gen, Disconnected)
		return
	}
	c.transition(gen, Connected)
	log.Debug("vote channel connected")

	msgs := sub.Messages()
	for {
		select {
		case <-ctx.Done():
			c.transition(gen, Disconnected)
			return
		case data, ok := <-msgs:
			if !ok {
				log.Warn("vote channel subscription lost")
				c.transition(gen, Disconnected)
				return
			}
			if ctx.Err() != nil {
				c.transition(gen, Disconnected)
				return
			}
			c.dispatch(log, data)
		}
	}
}

func (c *Channel) dispatch(log *slog.Logger, data []byte) {
	msg, err := DecodeFrame(data)
	if errors.Is(err, errForeignEvent) {
		return
	}
	if err != nil {
		log.Warn("vote channel message dropped", "error", err)
		return
	}

	switch m := msg.(type) {
	case VoteCast:
		if c.handlers.OnVote != nil {
			c.handlers.OnVote(m.Vote)
		}
	case RevealResults:
		if c.handlers.OnReveal != nil {
			c.handlers.OnReveal()
		}
	}
}
