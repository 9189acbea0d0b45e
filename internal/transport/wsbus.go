package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// wireMessage mirrors cmd/gossipd's clientMessage shape.
type wireMessage struct {
	Op      string `json:"op"`
	Topic   string `json:"topic"`
	Payload string `json:"payload,omitempty"`
}

// WSBus is a Transport adapter that speaks to a cmd/gossipd broker over a
// single shared WebSocket connection.
type WSBus struct {
	conn *websocket.Conn

	mu       sync.Mutex
	handlers map[string]func(payload []byte)
}

// DialWSBus connects to a gossipd broker at url (e.g. "ws://host:8090/ws")
// and starts its read loop.
func DialWSBus(url string) (*WSBus, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gossipd: %w", err)
	}
	b := &WSBus{conn: conn, handlers: make(map[string]func(payload []byte))}
	go b.readLoop()
	return b, nil
}

func (b *WSBus) readLoop() {
	for {
		var msg wireMessage
		if err := b.conn.ReadJSON(&msg); err != nil {
			return
		}
		b.mu.Lock()
		h := b.handlers[msg.Topic]
		b.mu.Unlock()
		if h == nil {
			continue
		}
		payload, err := base64.StdEncoding.DecodeString(msg.Payload)
		if err != nil {
			continue
		}
		h(payload)
	}
}

func (b *WSBus) Publish(_ context.Context, topic string, payload []byte) error {
	return b.conn.WriteJSON(wireMessage{
		Op:      "publish",
		Topic:   topic,
		Payload: base64.StdEncoding.EncodeToString(payload),
	})
}

func (b *WSBus) Subscribe(_ context.Context, topic string, handler func(payload []byte)) error {
	b.mu.Lock()
	if _, already := b.handlers[topic]; already {
		b.mu.Unlock()
		return nil
	}
	b.handlers[topic] = handler
	b.mu.Unlock()
	return b.conn.WriteJSON(wireMessage{Op: "subscribe", Topic: topic})
}

func (b *WSBus) Unsubscribe(_ context.Context, topic string) error {
	b.mu.Lock()
	delete(b.handlers, topic)
	b.mu.Unlock()
	return b.conn.WriteJSON(wireMessage{Op: "unsubscribe", Topic: topic})
}
