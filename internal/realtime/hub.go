package realtime

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/lifeshare/bloodlink-api/internal/models"
)

// sessionMetrics is the subset of the metrics service the hub reports to.
type sessionMetrics interface {
	SessionConnected()
	SessionDisconnected()
	EventBroadcast(eventType string)
}

// envelope is the wire format pushed to websocket clients.
type envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub owns the session registry and fans lifecycle events out to every
// connected session except the event's origin. Delivery is fire-and-forget:
// a slow or disconnected session misses the event and reconciles over REST.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.Event

	logger  *zap.Logger
	metrics sessionMetrics
}

// NewHub constructs a Hub. Run must be started before connections register.
func NewHub(logger *zap.Logger, metrics sessionMetrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.Event, 64),
		logger:     logger,
		metrics:    metrics,
	}
}

// Run processes registry changes and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			return

		case client := <-h.register:
			h.clients[client.SessionID] = client
			if h.metrics != nil {
				h.metrics.SessionConnected()
			}
			h.sendHello(client)
			h.logger.Debug("session registered", zap.String("session_id", client.SessionID), zap.String("user_id", client.UserID))

		case client := <-h.unregister:
			if _, ok := h.clients[client.SessionID]; ok {
				delete(h.clients, client.SessionID)
				close(client.send)
				if h.metrics != nil {
					h.metrics.SessionDisconnected()
				}
				h.logger.Debug("session unregistered", zap.String("session_id", client.SessionID))
			}

		case event := <-h.broadcast:
			h.fanOut(event)
		}
	}
}

// Publish queues an event for broadcast. Non-blocking: when the hub is
// saturated the event is dropped, never stalling the caller.
func (h *Hub) Publish(event models.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast queue full, dropping event", zap.String("type", event.Type))
	}
}

// sendHello delivers the first frame of a session, telling the client its
// session id; the client echoes it back in X-Session-ID so REST-triggered
// events skip this session. Sent from the hub loop, which alone owns closing
// client send channels.
func (h *Hub) sendHello(client *Client) {
	hello, err := json.Marshal(envelope{
		Type:      "connected",
		Payload:   map[string]string{"session_id": client.SessionID},
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("failed to marshal hello frame", zap.Error(err))
		return
	}
	select {
	case client.send <- hello:
	default:
	}
}

func (h *Hub) fanOut(event models.Event) {
	data, err := json.Marshal(envelope{
		Type:      event.Type,
		Payload:   event.Payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("failed to marshal event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	if h.metrics != nil {
		h.metrics.EventBroadcast(event.Type)
	}

	for id, client := range h.clients {
		if id == event.OriginSessionID {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Slow consumer: drop the session, the client reconnects.
			delete(h.clients, id)
			close(client.send)
			if h.metrics != nil {
				h.metrics.SessionDisconnected()
			}
		}
	}
}
