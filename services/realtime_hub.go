package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"potluck/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

type WSClient struct {
	Conn *websocket.Conn
	wmu  sync.Mutex // gorilla allows one concurrent writer

	send     chan []byte
	quit     chan struct{}
	quitOnce sync.Once
}

func NewWSClient(conn *websocket.Conn) *WSClient {
	return &WSClient{
		Conn: conn,
		send: make(chan []byte, sendBuffer),
		quit: make(chan struct{}),
	}
}

// enqueue reports false when the client's queue is full.
func (c *WSClient) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *WSClient) write(messageType int, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

func (c *WSClient) Ping() error {
	return c.write(websocket.PingMessage, nil)
}

// ChangeMessage is what websocket clients receive for every table change.
type ChangeMessage struct {
	Kind  string             `json:"kind"`
	Event models.ChangeEvent `json:"event"`
}

const KindDishChanged = "dish.changed"

// RealtimeHub pushes change events to every connected websocket.
type RealtimeHub struct {
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
	log     *zap.Logger
	metrics *Metrics
}

func NewRealtimeHub(log *zap.Logger) *RealtimeHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &RealtimeHub{
		clients: make(map[*WSClient]struct{}),
		log:     log,
		metrics: NewMetrics(),
	}
}

// Register adds c and starts its writer. Unregister stops it.
func (h *RealtimeHub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.RealtimeConns.Inc()
	go h.writePump(c)
}

func (h *RealtimeHub) writePump(c *WSClient) {
	for {
		select {
		case <-c.quit:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				h.log.Debug("dropping websocket client", zap.Error(err))
				h.Unregister(c)
				return
			}
		}
	}
}

func (h *RealtimeHub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.metrics.RealtimeConns.Dec()
	c.quitOnce.Do(func() { close(c.quit) })
	_ = c.Conn.Close()
}

func (h *RealtimeHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Attach forwards the store's change feed to all clients.
func (h *RealtimeHub) Attach(ctx context.Context, store DishStore) (Subscription, error) {
	return store.Subscribe(ctx, func(ev models.ChangeEvent) {
		h.Broadcast(ChangeMessage{Kind: KindDishChanged, Event: ev})
	})
}

// Broadcast queues payload as JSON for every client and never waits on a
// socket. A client whose queue is full is dropped.
func (h *RealtimeHub) Broadcast(payload any) {
	msg, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("encode broadcast", zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(msg) {
			h.log.Warn("websocket client too slow, dropping")
			h.Unregister(c)
		}
	}
}

// Close disconnects everyone.
func (h *RealtimeHub) Close() {
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.Unregister(c)
	}
}
