// Package monitor broadcasts pipeline events over a debug websocket so a
// developer can watch a cycle unfold live, the way the teacher's live
// reading feed worked, repurposed here for per-stage pipeline events
// instead of finished meter readings.
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Event is one pipeline stage transition, broadcast to every connected
// client as JSON.
type Event struct {
	Stage   string `json:"stage"`
	Detail  string `json:"detail"`
	AtUnix  int64  `json:"at_unix"`
}

type Hub struct {
	clientsMutex sync.RWMutex
	clients      map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // debug endpoint, not exposed beyond the LAN
	},
}

// ServeHTTP upgrades the connection and keeps it registered until the
// client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Error("monitor: upgrade error")
		return
	}

	h.clientsMutex.Lock()
	h.clients[conn] = true
	h.clientsMutex.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	delete(h.clients, conn)
	h.clientsMutex.Unlock()
	conn.Close()
}

// Report implements cycle.Monitor, broadcasting a stage/detail pair as an
// Event stamped with the current time.
func (h *Hub) Report(stage, detail string) {
	h.Broadcast(Event{Stage: stage, Detail: detail, AtUnix: time.Now().Unix()})
}

// Broadcast sends ev to every connected client, dropping any that error.
func (h *Hub) Broadcast(ev Event) {
	h.clientsMutex.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMutex.RUnlock()

	data, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).Error("monitor: marshal error")
		return
	}

	for _, c := range clients {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
		}
	}
}
