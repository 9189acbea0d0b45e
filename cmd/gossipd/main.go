// Command gossipd is a small local pub/sub broker for exercising the
// engine's Transport port across multiple processes without standing up
// Redis. Clients connect over WebSocket, subscribe to named content
// topics, and publish opaque byte payloads that gossipd fans out to every
// other subscriber of that topic — mirroring the teacher's cmd/relay role
// but for a publish/subscribe rather than request/response shape.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// clientMessage is the WebSocket wire shape a gossipd client speaks:
// subscribe/unsubscribe register interest in a topic; publish fans a
// payload out to every other subscriber of Topic.
type clientMessage struct {
	Op      string `json:"op"` // "subscribe" | "unsubscribe" | "publish"
	Topic   string `json:"topic"`
	Payload string `json:"payload,omitempty"` // base64, opaque to gossipd
}

type hub struct {
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[string]map[*websocket.Conn]bool // topic -> connections
}

func newHub() *hub {
	return &hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		subs:     make(map[string]map[*websocket.Conn]bool),
	}
}

func (h *hub) subscribe(topic string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*websocket.Conn]bool)
	}
	h.subs[topic][conn] = true
}

func (h *hub) unsubscribe(topic string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[topic], conn)
}

func (h *hub) unsubscribeAll(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.subs {
		delete(conns, conn)
	}
}

func (h *hub) publish(topic string, msg clientMessage, from *websocket.Conn) {
	h.mu.Lock()
	targets := make([]*websocket.Conn, 0, len(h.subs[topic]))
	for c := range h.subs[topic] {
		if c != from {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.WriteJSON(msg); err != nil {
			log.Printf("gossipd: write to subscriber failed: %v", err)
		}
	}
}

func (h *hub) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("gossipd: upgrade failed: %v", err)
		return
	}
	defer func() {
		h.unsubscribeAll(conn)
		conn.Close()
	}()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Op {
		case "subscribe":
			h.subscribe(msg.Topic, conn)
		case "unsubscribe":
			h.unsubscribe(msg.Topic, conn)
		case "publish":
			h.publish(msg.Topic, msg, conn)
		default:
			log.Printf("gossipd: unknown op %q", msg.Op)
		}
	}
}

func main() {
	h := newHub()
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.handleConn)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	addr := ":8090"
	log.Printf("gossipd listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal(err)
	}
}
