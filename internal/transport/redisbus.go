package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"go.uber.org/zap"
)

// RedisBus adapts github.com/redis/go-redis/v9's PUBLISH/SUBSCRIBE to the
// engine's Transport port. Each subscribed topic gets its own goroutine
// forwarding messages to the caller's handler; a process-wide set of
// already-subscribed topics makes redundant subscribes no-ops, per the
// transport port's singleton/init-once contract.
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewRedisBus wraps an already-configured *redis.Client.
func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	return &RedisBus{client: client, logger: logger, active: make(map[string]context.CancelFunc)}
}

func (r *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := r.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

func (r *RedisBus) Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error {
	r.mu.Lock()
	if _, already := r.active[topic]; already {
		r.mu.Unlock()
		return nil
	}
	subCtx, cancel := context.WithCancel(ctx)
	r.active[topic] = cancel
	r.mu.Unlock()

	sub := r.client.Subscribe(subCtx, topic)
	if _, err := sub.Receive(subCtx); err != nil {
		r.mu.Lock()
		delete(r.active, topic)
		r.mu.Unlock()
		cancel()
		return fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (r *RedisBus) Unsubscribe(_ context.Context, topic string) error {
	r.mu.Lock()
	cancel, ok := r.active[topic]
	if ok {
		delete(r.active, topic)
	}
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}
