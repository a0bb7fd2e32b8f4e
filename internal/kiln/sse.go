package ik

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// clientManager fans refresh messages out to every connected browser,
// whichever transport it uses.
type clientManager struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan refreshPayload
	done       chan struct{}
	connected  atomic.Int32
}

// client is a single SSE or websocket connection
type client struct {
	id     string
	notify chan refreshPayload
}

type refreshPayload struct {
	ChangeType RefreshKind `json:"changeType"`
	CSSURL     string      `json:"cssURL,omitempty"`
	At         time.Time   `json:"at"`
}

func newClientManager() *clientManager {
	return &clientManager{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan refreshPayload),
		done:       make(chan struct{}),
	}
}

func newClient(id string) *client {
	return &client{id: id, notify: make(chan refreshPayload, 4)}
}

// start handles clients and broadcasting until stop is called
func (manager *clientManager) start() {
	for {
		select {
		case client := <-manager.register:
			manager.clients[client] = true
			manager.connected.Store(int32(len(manager.clients)))
		case client := <-manager.unregister:
			delete(manager.clients, client)
			manager.connected.Store(int32(len(manager.clients)))
		case msg := <-manager.broadcast:
			for client := range manager.clients {
				select {
				case client.notify <- msg:
				default:
					// drop for clients that stopped reading; they reconnect
				}
			}
		case <-manager.done:
			return
		}
	}
}

func (manager *clientManager) stop() { close(manager.done) }

func (manager *clientManager) send(p refreshPayload) {
	if p.At.IsZero() {
		p.At = time.Now()
	}
	select {
	case manager.broadcast <- p:
	case <-manager.done:
	}
}

func (manager *clientManager) add(c *client) bool {
	select {
	case manager.register <- c:
		return true
	case <-manager.done:
		return false
	}
}

func (manager *clientManager) remove(c *client) {
	select {
	case manager.unregister <- c:
	case <-manager.done:
	}
}

func sseHandler(manager *clientManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		client := newClient(r.RemoteAddr)
		if !manager.add(client) {
			return
		}
		defer manager.remove(client)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case m := <-client.notify:
				data, err := json.Marshal(m)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()
			case <-r.Context().Done():
				return
			case <-manager.done:
				return
			}
		}
	}
}
