package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/table-reservation/internal/correlation"
	"github.com/iliyamo/table-reservation/internal/queue"
)

// publishJSON marshals v and publishes it on topic.
func publishJSON(ctx context.Context, pub queue.Publisher, topic string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, topic, body)
}

// roundTrip registers key, publishes req on topic and waits for the reply
// routed back by a replyHandler. timeoutCode classifies an unanswered call.
func roundTrip[R any](ctx context.Context, reg *correlation.Registry[R], pub queue.Publisher, topic, key string, req any, timeout time.Duration, timeoutCode string) (R, error) {
	reply, err := reg.Call(ctx, key, timeout, func(ctx context.Context) error {
		return publishJSON(ctx, pub, topic, req)
	})
	if err == nil {
		return reply, nil
	}
	var zero R
	if errors.Is(err, correlation.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		log.Printf("%s: no reply key=%s timeout=%s", reg.Name(), key, timeout)
		return zero, timeoutError(timeoutCode, "no reply from "+topic, err)
	}
	return zero, internalError("request "+topic+" failed", err)
}

// replyHandler decodes R from a reply message and completes the waiting
// call. Malformed bodies are rejected; unknown keys are dropped by the
// registry.
func replyHandler[R any](reg *correlation.Registry[R], key func(R) string) queue.HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var reply R
		if err := json.Unmarshal(body, &reply); err != nil {
			log.Printf("%s: bad reply: %v", reg.Name(), err)
			return err
		}
		k := key(reply)
		if k == "" {
			log.Printf("%s: reply without correlation id dropped", reg.Name())
			return nil
		}
		reg.Complete(k, reply)
		return nil
	}
}
