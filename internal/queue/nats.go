package queue

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// NATSBroker carries the same topics as subjects on a core NATS
// connection. Subscriptions join a queue group so that several replicas of
// this service share the work instead of each receiving every message.
type NATSBroker struct {
	conn  *nats.Conn
	group string
}

// ConnectNATS connects to url, reconnecting forever after a disconnect.
func ConnectNATS(url, group string) (*NATSBroker, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url,
		nats.Name("table-reservation"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("nats: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("nats: reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBroker{conn: conn, group: group}, nil
}

func (b *NATSBroker) Publish(ctx context.Context, topic string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.conn.Publish(topic, msg)
}

// Subscribe registers handler for topic until ctx is done. Handler errors
// are logged; core NATS has no redelivery to ask for.
func (b *NATSBroker) Subscribe(ctx context.Context, topic string, handler HandlerFunc) error {
	if handler == nil {
		return errors.New("nats: nil handler")
	}
	sub, err := b.conn.QueueSubscribe(topic, b.group, func(msg *nats.Msg) {
		if err := handler(ctx, msg.Data); err != nil {
			log.Printf("nats: handle message failed subject=%s: %v", msg.Subject, err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats: subscribe %s: %w", topic, err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

func (b *NATSBroker) Close() error {
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}
