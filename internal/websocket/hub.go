package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/dialog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// GatewayKey registers a connection that receives replies for every user.
	GatewayKey = "*"

	ClusterChannel = "cluster_replies"
)

// ReplyMessage is the frame written to websocket clients.
type ReplyMessage struct {
	Type    string         `json:"type"`
	UserID  string         `json:"user_id"`
	ChatID  string         `json:"chat_id"`
	Replies []dialog.Reply `json:"replies"`
}

type clusterEnvelope struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

// Hub fans replies out to the websocket connections of a user and to every
// gateway connection. With Redis configured, replies are relayed to the other
// instances too.
type Hub struct {
	clients    map[string][]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	rdb    *redis.Client
	origin string
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rdb:        rdb,
		origin:     uuid.NewString(),
		logger:     log,
	}
}

var _ dialog.Responder = (*Hub)(nil)

// Run serves registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.Key] = append(h.clients[client.Key], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"key": client.Key})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.Key]
	for i, c := range clients {
		if c == client {
			h.clients[client.Key] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.Key]) == 0 {
		delete(h.clients, client.Key)
		h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"key": client.Key})
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, clients := range h.clients {
		for _, c := range clients {
			close(c.Send)
		}
		delete(h.clients, key)
	}
}

// Connections counts open websocket connections on this instance.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

// Send implements dialog.Responder.
func (h *Hub) Send(ctx context.Context, userID, chatID string, replies []dialog.Reply) error {
	data, err := json.Marshal(ReplyMessage{Type: "replies", UserID: userID, ChatID: chatID, Replies: replies})
	if err != nil {
		return err
	}

	h.deliver(userID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterEnvelope{Origin: h.origin, TargetUserID: userID, Message: data})
		if err := h.rdb.Publish(ctx, ClusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to relay replies to cluster", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// deliver writes to the user's connections and to every gateway. A client
// whose buffer is full misses the frame.
func (h *Hub) deliver(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := append([]*Client{}, h.clients[userID]...)
	if userID != GatewayKey {
		targets = append(targets, h.clients[GatewayKey]...)
	}
	for _, client := range targets {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping replies", map[string]interface{}{
				"key":     client.Key,
				"user_id": userID,
			})
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleCluster([]byte(msg.Payload))
		}
	}
}

func (h *Hub) handleCluster(raw []byte) {
	var env clusterEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.logger.Warn("Hub", "Undecodable cluster message", map[string]interface{}{"error": err.Error()})
		return
	}
	if env.Origin == h.origin || env.TargetUserID == "" {
		return
	}
	h.deliver(env.TargetUserID, env.Message)
}
