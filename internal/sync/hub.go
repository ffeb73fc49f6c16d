package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 2 * time.Second

// Hub fans shelf events out to connected TCP and WebSocket clients. Each
// connection is bound to the user it authenticated as.
type Hub struct {
	log *zap.Logger

	mu        sync.Mutex
	clients   map[net.Conn]string
	wsClients map[*websocket.Conn]string
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		log:       logger,
		clients:   make(map[net.Conn]string),
		wsClients: make(map[*websocket.Conn]string),
	}
}

func (h *Hub) Add(conn net.Conn, userID string) {
	h.mu.Lock()
	h.clients[conn] = userID
	h.mu.Unlock()
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) AddWS(ws *websocket.Conn, userID string) {
	h.mu.Lock()
	h.wsClients[ws] = userID
	h.mu.Unlock()
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// Publish writes ev to every connection owned by ev.UserID. Connections that
// fail a write are dropped.
func (h *Hub) Publish(_ context.Context, ev ShelfEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	for c, uid := range h.clients {
		if uid != ev.UserID {
			continue
		}
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		w := bufio.NewWriter(c)
		if _, err := w.Write(b); err != nil {
			h.dropTCPLocked(c, err)
			continue
		}
		if err := w.Flush(); err != nil {
			h.dropTCPLocked(c, err)
		}
	}

	for ws, uid := range h.wsClients {
		if uid != ev.UserID {
			continue
		}
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.Debug("dropping ws client", zap.String("user_id", uid), zap.Error(err))
			_ = ws.Close()
			delete(h.wsClients, ws)
		}
	}
	return nil
}

func (h *Hub) dropTCPLocked(c net.Conn, err error) {
	h.log.Debug("dropping tcp client", zap.Stringer("remote", c.RemoteAddr()), zap.Error(err))
	_ = c.Close()
	delete(h.clients, c)
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.clients),
		WSClients:  len(h.wsClients),
	}
}

func welcome(transport string) []byte {
	return []byte(fmt.Sprintf("{\"type\":\"welcome\",\"transport\":%q}\n", transport))
}
