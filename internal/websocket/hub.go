package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"k8s.io/klog/v2"

	"github.com/makeasinger/moviegen/internal/logging"
	"github.com/makeasinger/moviegen/internal/model"
)

// Client represents a WebSocket client
type Client struct {
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte

	closed bool
}

// Hub maintains active WebSocket connections
type Hub struct {
	// Clients grouped by session ID
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to session subscribers
	broadcast chan *BroadcastMessage

	// Closed when Run returns
	done chan struct{}

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	SessionID string
	Message   []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.SessionID] == nil {
				h.clients[client.SessionID] = make(map[*Client]bool)
			}
			h.clients[client.SessionID][client] = true
			h.mu.Unlock()
			klog.V(logging.DEBUG).InfoS("Client registered", "sessionID", client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			klog.V(logging.DEBUG).InfoS("Client unregistered", "sessionID", client.SessionID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.SessionID] {
				select {
				case client.Send <- msg.Message:
				default:
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Subscribers returns the number of clients attached to a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// trySend queues data for client unless the hub already dropped it.
func (h *Hub) trySend(client *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client.closed {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

// BroadcastState sends a new rendering state to all session subscribers
func (h *Hub) BroadcastState(sessionID string, view model.StateView) {
	h.publish(sessionID, model.WSStateMessage{
		Type:      model.WSMessageTypeState,
		SessionID: sessionID,
		State:     view,
	})
}

// BroadcastNotification sends a user notification to all session subscribers
func (h *Hub) BroadcastNotification(sessionID string, n model.Notification) {
	h.publish(sessionID, model.WSNotificationMessage{
		Type:         model.WSMessageTypeNotification,
		SessionID:    sessionID,
		Notification: n,
	})
}

// publish never blocks; callers may hold a controller lock.
func (h *Hub) publish(sessionID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		klog.ErrorS(err, "Failed to marshal websocket message", "sessionID", sessionID)
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{SessionID: sessionID, Message: data}:
	default:
		klog.V(logging.WARNING).InfoS("Broadcast queue full, dropping message", "sessionID", sessionID)
	}
}

// HandleConnection handles a WebSocket connection. initial, when non-nil, is
// sent first so a new subscriber sees the current state.
func (h *Hub) HandleConnection(c *websocket.Conn, sessionID string, initial *model.StateView) {
	client := &Client{
		SessionID: sessionID,
		Conn:      c,
		Send:      make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	if initial != nil {
		data, err := json.Marshal(model.WSStateMessage{
			Type:      model.WSMessageTypeState,
			SessionID: sessionID,
			State:     *initial,
		})
		if err == nil {
			h.trySend(client, data)
		}
	}

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				klog.ErrorS(err, "WebSocket error", "sessionID", sessionID)
			}
			break
		}

		// Handle client messages (ping/pong)
		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			h.trySend(client, data)
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		client.closed = true
		close(client.Send)
		if len(clients) == 0 {
			delete(h.clients, client.SessionID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}
