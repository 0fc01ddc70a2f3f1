package channel

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const memoryBuffer = 64

// MemoryTransport fans messages out to in-process subscribers. Publishers
// receive their own messages. A subscriber whose buffer is full misses the
// message.
type MemoryTransport struct {
	mu     sync.RWMutex
	topics map[string]map[string]chan []byte
	closed bool
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{topics: make(map[string]map[string]chan []byte)}
}

func (t *MemoryTransport) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}

	id := uuid.NewString()
	ch := make(chan []byte, memoryBuffer)
	subs, ok := t.topics[topic]
	if !ok {
		subs = make(map[string]chan []byte)
		t.topics[topic] = subs
	}
	subs[id] = ch
	return &memorySubscription{transport: t, topic: topic, id: id, ch: ch}, nil
}

func (t *MemoryTransport) Publish(ctx context.Context, topic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrTransportClosed
	}
	for _, ch := range t.topics[topic] {
		msg := make([]byte, len(data))
		copy(msg, data)
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribers returns how many subscriptions topic has.
func (t *MemoryTransport) Subscribers(topic string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.topics[topic])
}

// Close ends every subscription.
func (t *MemoryTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for topic, subs := range t.topics {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
		delete(t.topics, topic)
	}
}

func (t *MemoryTransport) remove(topic, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs, ok := t.topics[topic]
	if !ok {
		return
	}
	if ch, ok := subs[id]; ok {
		delete(subs, id)
		close(ch)
	}
	if len(subs) == 0 {
		delete(t.topics, topic)
	}
}

type memorySubscription struct {
	transport *MemoryTransport
	topic     string
	id        string
	ch        chan []byte
	once      sync.Once
}

func (s *memorySubscription) Ready(ctx context.Context) error {
	return ctx.Err()
}

func (s *memorySubscription) Messages() <-chan []byte {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() { s.transport.remove(s.topic, s.id) })
	return nil
}
