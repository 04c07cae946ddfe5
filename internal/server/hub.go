package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/theirongolddev/planhaus/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

type wsClient struct {
	projectID string
	userID    string
	conn      *websocket.Conn
	send      chan events.Message
}

// Hub fans activity out to the WebSocket clients of each project and
// tracks who is online.
type Hub struct {
	log *zap.Logger

	mu       sync.RWMutex
	projects map[string]map[*wsClient]struct{}
	recent   []events.Message
	buffer   int
	closed   bool
}

// NewHub returns a hub remembering the last buffer messages.
func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer < 1 {
		buffer = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:      log,
		projects: make(map[string]map[*wsClient]struct{}),
		buffer:   buffer,
	}
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	set, ok := h.projects[c.projectID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.projects[c.projectID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	h.announcePresence(c.projectID)
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	set, ok := h.projects[c.projectID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.projects, c.projectID)
	}
	h.mu.Unlock()
	h.announcePresence(c.projectID)
}

func (h *Hub) announcePresence(projectID string) {
	online := h.Online(projectID)
	ids := make([]string, 0, len(online))
	for id := range online {
		ids = append(ids, id)
	}
	h.deliver(events.Message{Type: events.TypePresence, ProjectID: projectID, Online: ids, At: time.Now().UTC()}, false)
}

// Broadcast sends msg to every client of its project. Slow clients miss
// messages instead of blocking the sender.
func (h *Hub) Broadcast(msg events.Message) {
	h.deliver(msg, true)
}

func (h *Hub) deliver(msg events.Message, remember bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if remember {
		h.recent = append(h.recent, msg)
		if len(h.recent) > h.buffer {
			h.recent = h.recent[len(h.recent)-h.buffer:]
		}
	}
	for c := range h.projects[msg.ProjectID] {
		select {
		case c.send <- msg:
		default:
			h.log.Debug("dropping message for slow client", zap.String("project", msg.ProjectID), zap.String("user", c.userID))
		}
	}
}

// Online returns the user ids with an open connection to projectID.
func (h *Hub) Online(projectID string) map[string]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	online := make(map[string]bool)
	for c := range h.projects[projectID] {
		online[c.userID] = true
	}
	return online
}

// Recent returns the remembered activity of projectID, oldest first.
func (h *Hub) Recent(projectID string) []events.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []events.Message
	for _, m := range h.recent {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out
}

// RecentCount returns the size of the activity ring.
func (h *Hub) RecentCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.recent)
}

// Connections returns the number of open WebSocket clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.projects {
		n += len(set)
	}
	return n
}

// Projects returns the number of projects with a connected client.
func (h *Hub) Projects() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projects)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for pid, set := range h.projects {
		for c := range set {
			close(c.send)
		}
		delete(h.projects, pid)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWS upgrades a member of ?projectId= to a realtime connection. The
// first frame is a hello carrying the recent activity count; after that
// the client receives activity and presence messages.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	a, _ := authFrom(r.Context())
	pid, err := uuid.Parse(r.URL.Query().Get("projectId"))
	if err != nil {
		writeValidation(w, fieldErrors{"projectId": "must be a project id"})
		return
	}
	if _, err := s.store.MemberRole(r.Context(), pid, a.User.ID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &wsClient{
		projectID: pid.String(),
		userID:    a.User.ID.String(),
		conn:      conn,
		send:      make(chan events.Message, sendBuffer),
	}
	c.send <- events.Message{Type: events.TypeHello, ProjectID: c.projectID, UserID: c.userID, At: s.now().UTC()}
	if !s.hub.register(c) {
		_ = conn.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(c)
	}()
	readPump(c)
	s.hub.unregister(c)
	<-done
}

// readPump discards client frames and returns when the connection drops.
func readPump(c *wsClient) {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
