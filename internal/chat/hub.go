// Package chat relays messages between every connected WebSocket
// client and keeps a capped, file-backed history so late joiners see
// the conversation so far.
//
// All shared state lives with the hub goroutine; clients talk to it
// only through channels, so there are no locks on the hot path.
package chat

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// Hub owns the client set and the message history. Run must be started
// before clients are served.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	inbound    chan inboundEvent

	hist *history

	// done is closed when Run returns so client goroutines never block
	// on a hub that has already stopped.
	done chan struct{}
}

type inboundEvent struct {
	c     *client
	frame inboundFrame
}

// NewHub loads any existing history from historyPath. A history file
// that cannot be parsed is logged and abandoned; the chat starts empty
// instead of taking the server down.
func NewHub(historyPath string, limit int) *Hub {
	hist := newHistory(historyPath, limit)
	if err := hist.load(); err != nil {
		log.Printf("chat: load history: %v (starting empty)", err)
	}
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		inbound:    make(chan inboundEvent),
		hist:       hist,
		done:       make(chan struct{}),
	}
}

// Run services the hub until ctx is cancelled, then hangs up on every
// client and returns.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				c.conn.Close()
				delete(h.clients, c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			if payload, err := json.Marshal(initFrame{Type: frameInit, Messages: h.hist.all()}); err == nil {
				c.send <- payload
			}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case ev := <-h.inbound:
			h.handle(ev.frame)
		}
	}
}

func (h *Hub) handle(f inboundFrame) {
	switch f.Type {
	case frameMessage:
		if f.Message == nil {
			return
		}
		m := *f.Message
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Timestamp == 0 {
			m.Timestamp = time.Now().UnixMilli()
		}
		h.hist.prepend(m)
		h.persist()
		if payload, err := json.Marshal(messageFrame{Type: frameMessage, Message: &m}); err == nil {
			h.broadcast(payload)
		}

	case frameClear:
		h.hist.clear()
		h.persist()
		if payload, err := json.Marshal(messageFrame{Type: frameClear}); err == nil {
			h.broadcast(payload)
		}
	}
	// Unknown frame types are dropped.
}

// broadcast queues payload for every client, including the sender.
// A client whose send buffer is full is cut loose; a stuck reader must
// not stall the room.
func (h *Hub) broadcast(payload []byte) {
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *Hub) persist() {
	if err := h.hist.persist(); err != nil {
		log.Printf("chat: persist history: %v", err)
	}
}
