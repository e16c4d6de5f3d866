// Package ws streams live snapshots to WebSocket subscribers.
//
// A Hub owns the subscriber set from a single goroutine and fans each
// published snapshot out to every client. Clients that cannot keep up
// are dropped rather than allowed to stall the feed. The most recent
// snapshot is cached so late joiners and the plain HTTP endpoint never
// touch the session itself.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/justapithecus/uvlens/log"
	"github.com/justapithecus/uvlens/types"
)

// Hub fans snapshots out to connected clients.
type Hub struct {
	logger *log.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	clients map[*client]bool

	mu     sync.RWMutex
	latest []byte
}

// NewHub constructs a hub. Logger may be nil.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	return &Hub{
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		clients:    make(map[*client]bool),
	}
}

// Run owns the subscriber set until ctx is done. All connected clients
// are closed on return.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
				_ = c.conn.Close()
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			if latest := h.Latest(); latest != nil {
				select {
				case c.send <- latest:
				default:
				}
			}
			h.logger.Debug("subscriber joined", map[string]any{
				"remote":      c.remote,
				"subscribers": len(h.clients),
			})

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Debug("subscriber left", map[string]any{
					"remote":      c.remote,
					"subscribers": len(h.clients),
				})
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Closing the conn here unblocks a writePump stuck
					// on a jammed socket.
					delete(h.clients, c)
					close(c.send)
					_ = c.conn.Close()
					h.logger.Warn("dropping slow subscriber", map[string]any{
						"remote": c.remote,
					})
				}
			}
		}
	}
}

// Publish caches the snapshot and broadcasts it to subscribers.
// Never blocks: when the hub cannot keep up, intermediate snapshots
// are dropped in favor of later ones.
func (h *Hub) Publish(snap types.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("snapshot marshal failed", map[string]any{"error": err.Error()})
		return
	}

	h.mu.Lock()
	h.latest = data
	h.mu.Unlock()

	select {
	case h.broadcast <- data:
	default:
	}
}

// Latest returns the most recently published snapshot as JSON, or nil
// before the first publish.
func (h *Hub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}
