package channel

import (
	"context"
	"errors"
)

var ErrTransportClosed = errors.New("transport closed")

// Transport is a topic based broadcast. Delivery is at most once with no
// replay; whether a publisher also receives its own messages depends on the
// implementation.
type Transport interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Publish(ctx context.Context, topic string, data []byte) error
}

type Subscription interface {
	// Ready blocks until the transport confirmed the subscription.
	Ready(ctx context.Context) error
	// Messages is closed once the subscription is gone. A transport that
	// reconnects by itself still closes it when messages may have been missed.
	Messages() <-chan []byte
	Close() error
}

// Topic is the broadcast topic votes for pollID travel on.
func Topic(pollID string) string {
	return "poll-votes-" + pollID
}
