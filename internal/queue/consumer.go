package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Subscribe starts a background consumer for topic and returns immediately.
// The consumer dials its own connection, declares the queue (durable) and
// hands every delivery to handler. Deliveries are acked on success and
// rejected without requeue on error so a poison message cannot spin. Broker
// failures are retried with exponential backoff until ctx is done or the
// broker is closed.
func (b *AMQPBroker) Subscribe(ctx context.Context, topic string, handler HandlerFunc) error {
	if handler == nil {
		return errors.New("rabbitmq: nil handler")
	}
	subCtx, cancel := context.WithCancel(ctx)
	var stopAfter func() bool
	if b.base != nil {
		stopAfter = context.AfterFunc(b.base, cancel)
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		if stopAfter != nil {
			defer stopAfter()
		}
		b.consumeForever(subCtx, topic, handler)
	}()
	return nil
}

func (b *AMQPBroker) consumeForever(ctx context.Context, topic string, handler HandlerFunc) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		dialCtx, cancel := context.WithTimeout(ctx, amqpDialTimeout)
		conn, err := dialContext(dialCtx, b.url)
		cancel()
		if err != nil {
			log.Printf("rabbitmq-consumer: failed to dial broker topic=%s: %v; retrying in %s", topic, err, backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, topic, handler)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Printf("rabbitmq-consumer: consume loop ended topic=%s: %v; reconnecting", topic, err)
		if !sleepCtx(ctx, 2*time.Second) {
			return
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, topic string, handler HandlerFunc) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("rabbitmq-consumer: set QoS failed topic=%s: %v", topic, err)
	}

	if _, err := declareQueue(ch, topic); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(topic, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handler(ctx, d.Body); err != nil {
				log.Printf("rabbitmq-consumer: handle message failed topic=%s: %v", topic, err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
