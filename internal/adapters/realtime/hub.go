package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// Message is what a websocket subscriber receives.
type Message struct {
	ID         string         `json:"id"`
	Tag        string         `json:"tag"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type client struct {
	sub  domain.Subscriber
	conn *websocket.Conn
	send chan []byte
}

// Hub is the registry of live websocket subscribers on this replica. It
// delivers each notification to every subscriber its target matches.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

var _ ports.Notifier = (*Hub)(nil)

func NewHub(m *metrics.Metrics, logger *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		metrics: m,
		logger:  logger,
	}
}

// Notify delivers locally. Use it as the notifier when there is one replica.
func (h *Hub) Notify(_ context.Context, n domain.Notification) error {
	return h.Deliver(n)
}

// Deliver encodes n once and queues it for every matching subscriber. A
// subscriber whose buffer is full is disconnected rather than blocking the rest.
func (h *Hub) Deliver(n domain.Notification) error {
	body, err := json.Marshal(Message{
		ID:         n.ID,
		Tag:        string(n.Tag),
		Payload:    n.Payload,
		OccurredAt: n.OccurredAt,
	})
	if err != nil {
		return errors.Wrap(err, "encode websocket message")
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !n.Target.Matches(c.sub) {
			continue
		}
		select {
		case c.send <- body:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.WithField("subject", c.sub.Subject).Warn("websocket subscriber too slow, dropping")
		h.unregister(c)
	}
	return nil
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.WSClients(n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.WSClients(n)
}

// Serve owns conn until the peer goes away. It blocks.
func (h *Hub) Serve(conn *websocket.Conn, sub domain.Subscriber) {
	c := &client{sub: sub, conn: conn, send: make(chan []byte, sendBufferSize)}
	h.register(c)
	h.logger.WithFields(logrus.Fields{"role": sub.Role, "subject": sub.Subject}).Debug("websocket subscriber connected")

	go c.writePump()
	c.readPump()

	h.unregister(c)
	h.logger.WithFields(logrus.Fields{"role": sub.Role, "subject": sub.Subject}).Debug("websocket subscriber gone")
}

// readPump only exists to process control frames; clients do not send data.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
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

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case body, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
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
