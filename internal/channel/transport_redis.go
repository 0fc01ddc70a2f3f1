package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisTransport carries topics over Redis pub/sub. Subscribers on the
// publishing instance receive its messages too.
type RedisTransport struct {
	rdb redis.UniversalClient
}

func NewRedisTransport(rdb redis.UniversalClient) *RedisTransport {
	return &RedisTransport{rdb: rdb}
}

func (t *RedisTransport) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &redisSubscription{
		ps:   t.rdb.Subscribe(ctx, topic),
		out:  make(chan []byte),
		done: make(chan struct{}),
	}, nil
}

func (t *RedisTransport) Publish(ctx context.Context, topic string, data []byte) error {
	if err := t.rdb.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

type redisSubscription struct {
	ps        *redis.PubSub
	out       chan []byte
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

func (s *redisSubscription) Ready(ctx context.Context) error {
	msg, err := s.ps.Receive(ctx)
	if err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	if _, ok := msg.(*redis.Subscription); !ok {
		return fmt.Errorf("redis subscribe: unexpected reply %T", msg)
	}
	s.startOnce.Do(func() { go s.pump() })
	return nil
}

// pump forwards payloads until the subscription ends. go-redis reconnects and
// resubscribes on its own after a dropped connection; messages published in
// between are gone, so a repeated subscribe confirmation ends the
// subscription instead of resuming it.
func (s *redisSubscription) pump() {
	defer close(s.out)
	for msg := range s.ps.ChannelWithSubscriptions() {
		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind == "subscribe" {
				return
			}
		case *redis.Message:
			select {
			case s.out <- []byte(m.Payload):
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
