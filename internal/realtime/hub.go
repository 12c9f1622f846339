// Package realtime fans poll events out to connected group members over
// WebSocket, with Redis pub/sub bridging instances.
package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// RedisPublisher publishes group events for cross-instance broadcast.
type RedisPublisher interface {
	PublishGroupEvent(groupID int64, event string, payload []byte) error
}

// RedisSubscriber subscribes to group channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeGroup(groupID int64, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains group_id -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// groupID -> map[clientID]*Client
	groups   map[int64]map[string]*Client
	subs     map[int64]func() // cancel Redis subscription per group
	mu       sync.RWMutex
	logger   *zap.Logger
	redisPub RedisPublisher
	redisSub RedisSubscriber
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		groups:   make(map[int64]map[string]*Client),
		subs:     make(map[int64]func()),
		logger:   logger,
		redisPub: redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a group room. Starts the Redis subscription for
// the group when the first client joins.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.groups[c.GroupID] == nil {
		h.groups[c.GroupID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeGroup(c.GroupID, func(event string, payload []byte) {
				h.BroadcastToGroup(c.GroupID, event, json.RawMessage(payload))
			})
			if err != nil {
				// local fan-out still works, cross-instance events are lost
				h.logger.Warn("redis subscribe failed",
					zap.Int64("group_id", c.GroupID),
					zap.Error(err))
			} else {
				h.subs[c.GroupID] = cancel
			}
		}
	}
	h.groups[c.GroupID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined group room",
		zap.String("client_id", c.ID),
		zap.Int64("group_id", c.GroupID))
}

// Unregister removes a client from a group room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.groups[c.GroupID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.groups, c.GroupID)
			if cancel, ok := h.subs[c.GroupID]; ok {
				cancel()
				delete(h.subs, c.GroupID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left group room",
		zap.String("client_id", c.ID),
		zap.Int64("group_id", c.GroupID))
}

// BroadcastToGroup sends a message to all clients in a group (local only).
func (h *Hub) BroadcastToGroup(groupID int64, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.groups[groupID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish sends an event to local clients and publishes it to Redis for other
// instances. Failures are logged and never propagate to the caller.
func (h *Hub) Publish(_ context.Context, groupID int64, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("event payload not serializable",
			zap.String("event", event),
			zap.Error(err))
		return
	}
	h.BroadcastToGroup(groupID, event, json.RawMessage(data))
	if h.redisPub != nil {
		if err := h.redisPub.PublishGroupEvent(groupID, event, data); err != nil {
			h.logger.Warn("redis publish failed",
				zap.String("event", event),
				zap.Int64("group_id", groupID),
				zap.Error(err))
		}
	}
}

// RoomCount returns the number of connected clients in a group room.
func (h *Hub) RoomCount(groupID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupID])
}

func groupChannel(groupID int64) string {
	return channelPrefix + strconv.FormatInt(groupID, 10)
}
