// Package realtime pushes doctor notifications to connected dashboards over WebSocket.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/notification"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Client is one dashboard connection. It only ever receives its doctor's notifications.
type Client struct {
	ID       string
	DoctorID string
	Send     chan []byte
}

func NewClient(doctorID string) *Client {
	return &Client{ID: uuid.NewString(), DoctorID: doctorID, Send: make(chan []byte, sendBuffer)}
}

// Hub tracks clients per doctor.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *logrus.Entry
}

func NewHub(logger *logrus.Entry) *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{}), logger: logger}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.DoctorID] == nil {
		h.clients[c.DoctorID] = make(map[*Client]struct{})
	}
	h.clients[c.DoctorID][c] = struct{}{}
}

// Unregister removes c and closes its Send channel. Calling it twice is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.DoctorID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.DoctorID)
	}
	close(c.Send)
}

// Deliver pushes p to every dashboard of its doctor. Slow clients miss the message
// rather than block the listener.
func (h *Hub) Deliver(p notification.Payload) {
	data, err := json.Marshal(p)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to encode notification for dashboards")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[p.DoctorID] {
		select {
		case c.Send <- data:
		default:
			h.logger.WithField("client_id", c.ID).Warn("Dashboard send buffer full, dropping notification")
		}
	}
}

// ClientCount returns the number of dashboards connected for doctorID.
func (h *Hub) ClientCount(doctorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[doctorID])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Serve upgrades the request and streams notifications for doctorID until the
// dashboard disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, doctorID string) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := NewClient(doctorID)
	h.Register(c)
	h.logger.WithFields(logrus.Fields{"doctor_id": doctorID, "client_id": c.ID}).Debug("Dashboard connected")

	go h.writePump(c, ws)
	go h.readPump(c, ws)
	return nil
}

// readPump only watches for the close frame and pongs; dashboards send nothing.
func (h *Hub) readPump(c *Client, ws *websocket.Conn) {
	defer func() {
		h.Unregister(c)
		ws.Close()
	}()
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *Client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
