// Package transport implements the engine's Transport port: an in-process
// MemoryBus for tests, a Redis-backed RedisBus for real deployments, and a
// WSBus client for the cmd/gossipd broker. All three satisfy
// domain.Transport.
package transport

import (
	"context"
	"sync"
)

// memoryExchange is the shared fan-out registry behind one or more
// MemoryBus process-views. Kept separate from MemoryBus so that Fork can
// hand out independent per-process subscription guards over the same
// underlying topic traffic, the in-process stand-in for several real
// processes pointed at the same broker.
type memoryExchange struct {
	mu       sync.Mutex
	handlers map[string]map[*MemoryBus]func(payload []byte)
}

func newMemoryExchange() *memoryExchange {
	return &memoryExchange{handlers: make(map[string]map[*MemoryBus]func(payload []byte))}
}

func (x *memoryExchange) publish(topic string, payload []byte) {
	x.mu.Lock()
	hs := make([]func(payload []byte), 0, len(x.handlers[topic]))
	for _, h := range x.handlers[topic] {
		hs = append(hs, h)
	}
	x.mu.Unlock()
	for _, h := range hs {
		h(payload)
	}
}

// register adds bus's handler for topic, keyed by bus identity so that
// bus's later unregister only removes its own subscription and leaves any
// other bus (a Fork sharing this exchange) subscribed to the same topic
// untouched.
func (x *memoryExchange) register(topic string, bus *MemoryBus, handler func(payload []byte)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.handlers[topic] == nil {
		x.handlers[topic] = make(map[*MemoryBus]func(payload []byte))
	}
	x.handlers[topic][bus] = handler
}

func (x *memoryExchange) unregister(topic string, bus *MemoryBus) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.handlers[topic], bus)
}

// MemoryBus is an in-process publish/subscribe fan-out, modeled on the
// namespace-filtered bus pattern used elsewhere in the pack, specialized
// here to exact-topic matching since content topics are already fully
// qualified strings. Like RedisBus/WSBus, a topic may be subscribed at
// most once per MemoryBus: redundant Subscribe calls on a topic this bus
// has already joined are no-ops, per the transport port's singleton/
// init-once contract.
type MemoryBus struct {
	exchange *memoryExchange

	mu         sync.Mutex
	subscribed map[string]bool
}

// NewMemoryBus returns a standalone bus with its own exchange. Production
// code (internal/app/wire.go's in-process transport mode) uses exactly one
// of these per process.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{exchange: newMemoryExchange(), subscribed: make(map[string]bool)}
}

// Fork returns a new MemoryBus that shares b's underlying exchange but has
// its own independent subscribe-dedup guard, as if it were a second
// process talking to the same broker. Used by tests simulating several
// peers in one test binary; production code never needs it since each
// process constructs its own MemoryBus via NewMemoryBus.
func (b *MemoryBus) Fork() *MemoryBus {
	return &MemoryBus{exchange: b.exchange, subscribed: make(map[string]bool)}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.exchange.publish(topic, payload)
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string, handler func(payload []byte)) error {
	b.mu.Lock()
	if b.subscribed[topic] {
		b.mu.Unlock()
		return nil
	}
	b.subscribed[topic] = true
	b.mu.Unlock()

	b.exchange.register(topic, b, handler)
	return nil
}

func (b *MemoryBus) Unsubscribe(_ context.Context, topic string) error {
	b.mu.Lock()
	if !b.subscribed[topic] {
		b.mu.Unlock()
		return nil
	}
	delete(b.subscribed, topic)
	b.mu.Unlock()

	b.exchange.unregister(topic, b)
	return nil
}
