// Package broadcast implements the multi-producer, multi-consumer event
// fan-out described in SPEC_FULL.md §4.10, generalizing the teacher's
// ws_hub.go register/unregister/broadcast channel hub to carry the
// BroadcastMessage union and to track lag instead of disconnecting a
// slow subscriber.
package broadcast

import (
	"log/slog"
	"sync/atomic"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
	"github.com/lelloman/quentin-torrentino-sub000/internal/metrics"
)

const clientSendBuffer = 64

type client struct {
	send chan ports.BroadcastMessage
	lag  int64
}

// Hub is a ports.Broadcaster. New subscribers see only messages
// published after they subscribe; a subscriber that falls behind skips
// messages (its lag counter increments) rather than blocking Publish or
// being disconnected.
type Hub struct {
	log *slog.Logger

	clients    map[*client]bool
	broadcast  chan ports.BroadcastMessage
	register   chan *client
	unregister chan *client
	done       chan struct{}
}

// New builds a Hub and starts its run loop. Call Close on shutdown.
func New(log *slog.Logger) *Hub {
	h := &Hub{
		log:        log,
		clients:    make(map[*client]bool),
		broadcast:  make(chan ports.BroadcastMessage, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			metrics.BroadcastSubscribers.Set(0)
			return

		case c := <-h.register:
			h.clients[c] = true
			metrics.BroadcastSubscribers.Set(float64(len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				metrics.BroadcastSubscribers.Set(float64(len(h.clients)))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					atomic.AddInt64(&c.lag, 1)
					metrics.BroadcastDroppedTotal.Inc()
				}
			}
		}
	}
}

// Publish queues msg for delivery to every current subscriber. It never
// blocks: if the internal broadcast buffer is itself full, the message
// is dropped and logged rather than stalling the publisher.
func (h *Hub) Publish(msg ports.BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast buffer full, dropping message")
	}
}

// Subscribe registers a new subscriber and returns its receive channel
// plus an idempotent-safe unsubscribe function.
func (h *Hub) Subscribe() (<-chan ports.BroadcastMessage, func()) {
	c := &client{send: make(chan ports.BroadcastMessage, clientSendBuffer)}
	h.register <- c

	var unsubscribed int32
	unsubscribe := func() {
		if atomic.CompareAndSwapInt32(&unsubscribed, 0, 1) {
			select {
			case h.unregister <- c:
			case <-h.done:
			}
		}
	}
	return c.send, unsubscribe
}

// Close stops the hub and disconnects every subscriber.
func (h *Hub) Close() {
	close(h.done)
}
