package broadcast

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/metrics"
)

// DefaultQueueSize is the per-connection event buffer.
const DefaultQueueSize = 256

var (
	ErrConnExists  = errors.New("connection id already registered")
	ErrConnUnknown = errors.New("connection is not registered")
)

type conn struct {
	id       string
	playerID string
	ch       chan Event
	closed   bool
}

// Hub is the broadcast fabric: a connection registry plus per-session
// audience rosters. All sends are non-blocking; a full queue drops the
// connection.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]*conn
	rooms  map[string]map[string]Registration
	queue  int
	onDrop func(connID string)
	log    *zap.SugaredLogger
}

// NewHub creates a hub. onDrop, if non-nil, is called outside the hub
// lock for every connection dropped as a slow consumer so the owner
// can close the underlying socket.
func NewHub(log *zap.SugaredLogger, queueSize int, onDrop func(connID string)) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		conns:  make(map[string]*conn),
		rooms:  make(map[string]map[string]Registration),
		queue:  queueSize,
		onDrop: onDrop,
		log:    log,
	}
}

// Register adds a connection and returns its event queue. The caller
// owns draining the channel; it is closed on Unregister or drop.
func (h *Hub) Register(connID, playerID string) (<-chan Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connID]; ok {
		return nil, ErrConnExists
	}
	cn := &conn{id: connID, playerID: playerID, ch: make(chan Event, h.queue)}
	h.conns[connID] = cn
	metrics.ConnectedClients.Inc()
	return cn.ch, nil
}

// Unregister removes a connection from the registry and every roster,
// closing its queue.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	cn, ok := h.conns[connID]
	if ok {
		h.removeLocked(cn)
	}
	h.mu.Unlock()
}

// Join adds a connection to a session's audience. Rejoining replaces
// the previous registration, so seat changes take effect in place.
func (h *Hub) Join(sessionID string, reg Registration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[reg.ConnID]; !ok {
		return ErrConnUnknown
	}
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[string]Registration)
		h.rooms[sessionID] = room
	}
	room[reg.ConnID] = reg
	return nil
}

// Leave removes a connection from one session's audience.
func (h *Hub) Leave(sessionID, connID string) {
	h.mu.Lock()
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	h.mu.Unlock()
}

// DropSession removes a session's roster entirely, without touching
// the connections themselves.
func (h *Hub) DropSession(sessionID string) {
	h.mu.Lock()
	delete(h.rooms, sessionID)
	h.mu.Unlock()
}

// Registrations returns the audience of a session.
func (h *Hub) Registrations(sessionID string) []Registration {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[sessionID]
	out := make([]Registration, 0, len(room))
	for _, reg := range room {
		out = append(out, reg)
	}
	return out
}

// Send enqueues one event to a single connection.
func (h *Hub) Send(connID string, ev Event) error {
	h.mu.Lock()
	cn, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return ErrConnUnknown
	}
	delivered := h.sendLocked(cn, ev)
	h.mu.Unlock()
	if !delivered {
		h.dropped(connID)
		return ErrConnUnknown
	}
	return nil
}

// Broadcast enqueues an event to every audience member matching the
// filter (nil matches all) and returns the delivery count.
func (h *Hub) Broadcast(sessionID string, ev Event, filter func(Registration) bool) int {
	return h.BroadcastEach(sessionID, func(reg Registration) (Event, bool) {
		if filter != nil && !filter(reg) {
			return Event{}, false
		}
		return ev, true
	})
}

// BroadcastEach builds a per-recipient event for each audience member.
// build runs under the hub lock and must not block; returning false
// skips the recipient.
func (h *Hub) BroadcastEach(sessionID string, build func(Registration) (Event, bool)) int {
	var droppedIDs []string
	delivered := 0

	h.mu.Lock()
	for _, reg := range h.rooms[sessionID] {
		cn, ok := h.conns[reg.ConnID]
		if !ok {
			continue
		}
		ev, send := build(reg)
		if !send {
			continue
		}
		if h.sendLocked(cn, ev) {
			delivered++
		} else {
			droppedIDs = append(droppedIDs, cn.id)
		}
	}
	h.mu.Unlock()

	for _, id := range droppedIDs {
		h.dropped(id)
	}
	return delivered
}

// Close drops every connection, closing all queues.
func (h *Hub) Close() {
	h.mu.Lock()
	for _, cn := range h.conns {
		h.removeLocked(cn)
	}
	h.rooms = make(map[string]map[string]Registration)
	h.mu.Unlock()
}

// sendLocked enqueues without blocking. A full queue removes the
// connection on the spot; the caller fires the drop callback after
// releasing the lock.
func (h *Hub) sendLocked(cn *conn, ev Event) bool {
	if cn.closed {
		return false
	}
	select {
	case cn.ch <- ev:
		return true
	default:
		metrics.BroadcastDropped.Inc()
		if h.log != nil {
			h.log.Warnw("dropping slow consumer", "conn", cn.id, "player", cn.playerID)
		}
		h.removeLocked(cn)
		return false
	}
}

func (h *Hub) removeLocked(cn *conn) {
	if cn.closed {
		return
	}
	cn.closed = true
	close(cn.ch)
	delete(h.conns, cn.id)
	for sid, room := range h.rooms {
		delete(room, cn.id)
		if len(room) == 0 {
			delete(h.rooms, sid)
		}
	}
	metrics.ConnectedClients.Dec()
}

func (h *Hub) dropped(connID string) {
	if h.onDrop != nil {
		h.onDrop(connID)
	}
}
