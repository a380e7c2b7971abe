package rpcserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Event is one probe-outcome notification streamed to websocket clients
// connected to GET /ws.
type Event struct {
	Addr      string    `json:"addr"`
	Outcome   string    `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans probe events out to every connected websocket client and
// implements crawler.ProbeObserver.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan Event]struct{})}
}

// ObserveProbe satisfies crawler.ProbeObserver.
func (h *Hub) ObserveProbe(addr string, outcome string) {
	h.broadcast(Event{Addr: addr, Outcome: outcome, Timestamp: time.Now()})
}

func (h *Hub) broadcast(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
			// Slow client: drop the event rather than block the crawler.
		}
	}
}

func (h *Hub) register() chan Event {
	ch := make(chan Event, 32)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unregister(ch chan Event) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	events := s.hub.register()
	defer s.hub.unregister(events)

	// Drain client-initiated frames (e.g. close, pings) on their own
	// goroutine so a read failure tears down the loop below.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e := <-events:
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
