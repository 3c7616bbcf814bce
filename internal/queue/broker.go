package queue

import (
	"context"
	"fmt"
	"strings"
)

// HandlerFunc processes one message body. A returned error rejects the
// message without requeueing it.
type HandlerFunc func(ctx context.Context, body []byte) error

// Publisher sends a message body to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, body []byte) error
}

// Subscriber delivers messages of a topic to a handler until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler HandlerFunc) error
}

// Broker is the transport used for correlated requests, notifications and
// domain events.
type Broker interface {
	Publisher
	Subscriber
	Close() error
}

// Open returns the broker selected by kind ("amqp" or "nats").
func Open(kind, amqpURL, natsURL, group string) (Broker, error) {
	switch strings.ToLower(kind) {
	case "", "amqp", "rabbitmq":
		b, err := DialAMQP(amqpURL)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "nats":
		b, err := ConnectNATS(natsURL, group)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown broker %q", kind)
}
