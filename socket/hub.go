package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"matchroom_server/auth"
	"matchroom_server/helpers"
	"matchroom_server/metrics"
	"matchroom_server/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket subscriber bound to a single topic.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	topic  string
	userID string
}

// Hub tracks websocket subscribers per topic.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
}

func NewHub() *Hub { return &Hub{topics: make(map[string]map[*Client]struct{})} }

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.topics[c.topic]
	if clients == nil {
		clients = make(map[*Client]struct{})
		h.topics[c.topic] = clients
	}
	clients[c] = struct{}{}
	metrics.PushSubscribers.Inc()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	clients, ok := h.topics[c.topic]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	metrics.PushSubscribers.Dec()
	if len(clients) == 0 {
		delete(h.topics, c.topic)
	}
}

// Subscribers returns the number of clients on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) Name() string { return "websocket" }

// PublishMatch queues the event for every subscriber of topic. Clients whose
// buffers are full are dropped; they recover by polling.
func (h *Hub) PublishMatch(ctx context.Context, topic string, event models.MatchEvent) error {
	b, err := json.Marshal(models.PushMessage{Type: models.PushTypeMatch, Topic: topic, Match: event})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.topics[topic] {
		select {
		case c.send <- b:
		default:
			log.Warn().Str("topic", topic).Str("userId", c.userID).Msg("dropping slow websocket subscriber")
			h.removeLocked(c)
		}
	}
	return nil
}

// ServeWS upgrades GET /ws/matches?topic=... after checking the caller may follow the topic.
func ServeWS(h *Hub, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := r.URL.Query().Get("topic")
		prefix, id, ok := models.ParseTopic(topic)
		if !ok {
			helpers.WriteError(w, http.StatusBadRequest, "invalid topic")
			return
		}
		userID, err := auth.UserFromRequest(r, jwtSecret)
		if err != nil {
			helpers.WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if prefix == models.UserTopicPrefix && id != userID {
			helpers.WriteError(w, http.StatusForbidden, "cannot subscribe to another user's matches")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), topic: topic, userID: userID}
		h.register(client)
		log.Debug().Str("topic", topic).Str("userId", userID).Msg("📡 websocket subscribed")

		go client.writePump()
		client.readPump()
	}
}

// readPump only services control frames; subscribers never send data.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
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

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
