// Package events fans project change notifications out to websocket clients.
package events

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type Event struct {
	Type      string    `json:"type"`
	ProjectID uint      `json:"project_id"`
	Resource  string    `json:"resource,omitempty"`
	ID        uint      `json:"id,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher is what the services see of the hub.
type Publisher interface {
	Publish(projectID uint, event Event)
	// Disconnect closes every stream userID holds on projectID.
	Disconnect(projectID, userID uint)
	// CloseProject closes every stream on projectID.
	CloseProject(projectID uint)
}

type NopPublisher struct{}

func (NopPublisher) Publish(uint, Event) {}

func (NopPublisher) Disconnect(uint, uint) {}

func (NopPublisher) CloseProject(uint) {}

type client struct {
	userID uint
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// shut sends a close frame and tears the connection down; Serve's read
// loop then returns.
func (c *client) shut(reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := c.write(websocket.CloseMessage, msg); err != nil {
		log.WithError(err).Debug("websocket close frame not sent")
	}
	c.conn.Close()
}

type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint]map[*client]struct{})}
}

// Subscribers returns how many connections listen on a project.
func (h *Hub) Subscribers(projectID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[projectID])
}

func (h *Hub) Publish(projectID uint, event Event) {
	event.ProjectID = projectID
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	payload, err := sonic.Marshal(event)
	if err != nil {
		log.WithError(err).Error("encode project event")
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[projectID]))
	for c := range h.clients[projectID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, payload); err != nil {
			log.WithFields(log.Fields{"project_id": projectID, "error": err}).Warn("dropping websocket client")
			h.remove(projectID, c)
			c.conn.Close()
		}
	}
}

// Disconnect drops userID's connections on projectID, e.g. after the
// membership is removed.
func (h *Hub) Disconnect(projectID, userID uint) {
	h.mu.Lock()
	var targets []*client
	for c := range h.clients[projectID] {
		if c.userID == userID {
			targets = append(targets, c)
			delete(h.clients[projectID], c)
		}
	}
	if len(h.clients[projectID]) == 0 {
		delete(h.clients, projectID)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.shut("membership revoked")
	}
	if len(targets) > 0 {
		log.WithFields(log.Fields{"project_id": projectID, "user_id": userID, "connections": len(targets)}).Info("websocket access revoked")
	}
}

// CloseProject drops every connection on projectID.
func (h *Hub) CloseProject(projectID uint) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients[projectID]))
	for c := range h.clients[projectID] {
		targets = append(targets, c)
	}
	delete(h.clients, projectID)
	h.mu.Unlock()

	for _, c := range targets {
		c.shut("project deleted")
	}
}

func (h *Hub) add(projectID uint, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[projectID] == nil {
		h.clients[projectID] = make(map[*client]struct{})
	}
	h.clients[projectID][c] = struct{}{}
}

func (h *Hub) remove(projectID uint, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.clients[projectID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.clients, projectID)
		}
	}
}

// Serve registers userID's conn for projectID and blocks until the client
// goes away or is disconnected.
func (h *Hub) Serve(projectID, userID uint, conn *websocket.Conn) {
	c := &client{userID: userID, conn: conn}
	h.add(projectID, c)

	defer func() {
		h.remove(projectID, c)
		conn.Close()
		log.WithFields(log.Fields{"project_id": projectID, "user_id": userID}).Debug("websocket connection closed")
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	welcome, err := sonic.Marshal(Event{Type: "connected", ProjectID: projectID, At: time.Now().UTC()})
	if err != nil {
		log.WithError(err).Error("encode welcome event")
		return
	}
	if err := c.write(websocket.TextMessage, welcome); err != nil {
		return
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithFields(log.Fields{"project_id": projectID, "error": err}).Warn("websocket read failed")
			}
			return
		}
	}
}
