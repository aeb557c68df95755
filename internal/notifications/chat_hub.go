package notifications

import (
	"context"
	"encoding/json"
	"sync"

	"estatehub/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Chat event types, in both directions.
const (
	EventConnected  = "connected"
	EventJoined     = "joined"
	EventLeft       = "left"
	EventMessage    = "message"
	EventTyping     = "typing"
	EventRead       = "read"
	EventNewMessage = "new_message"
	EventError      = "error"
)

// ChatEvent is the envelope of every chat frame.
type ChatEvent struct {
	Type           string      `json:"type"`
	ConversationID uint        `json:"conversation_id,omitempty"`
	UserID         uint        `json:"user_id,omitempty"`
	Payload        interface{} `json:"payload,omitempty"`
}

// Encode marshals the event; a failure yields nil.
func (e ChatEvent) Encode() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		observability.GlobalLogger.Error("failed to marshal chat event", "type", e.Type, "error", err)
		return nil
	}
	return data
}

// ChatHub tracks which users are watching which conversation. Unlike Hub it
// is conversation-centric: a frame for a conversation reaches every open
// connection of every user who joined it.
type ChatHub struct {
	mu sync.RWMutex

	// conversationID -> watching userIDs
	conversations map[uint]map[uint]struct{}
	// userID -> joined conversationIDs
	userConvs map[uint]map[uint]struct{}
	// userID -> open connections
	userConns map[uint]map[*Client]struct{}

	log *observability.WSLogger
}

func NewChatHub() *ChatHub {
	return &ChatHub{
		conversations: make(map[uint]map[uint]struct{}),
		userConvs:     make(map[uint]map[uint]struct{}),
		userConns:     make(map[uint]map[*Client]struct{}),
		log:           observability.NewWSLogger("chat hub"),
	}
}

func (h *ChatHub) Name() string { return "chat hub" }

func (h *ChatHub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.userConns[userID] == nil {
		h.userConns[userID] = make(map[*Client]struct{})
	}
	if len(h.userConns[userID]) >= maxConnsPerUser {
		return nil, ErrUserConnLimit
	}
	client := NewClient(h, conn, userID)
	h.userConns[userID][client] = struct{}{}
	observability.WebSocketConnectionsTotal.Inc()
	h.log.LogConnect(context.Background(), userID)
	return client, nil
}

// UnregisterClient drops one connection. Conversation memberships go with the
// user's last connection.
func (h *ChatHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.userConns[client.UserID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.Send)
	observability.WebSocketConnectionsTotal.Dec()
	if len(clients) > 0 {
		return
	}

	delete(h.userConns, client.UserID)
	for convID := range h.userConvs[client.UserID] {
		h.removeWatcher(convID, client.UserID)
	}
	delete(h.userConvs, client.UserID)
}

func (h *ChatHub) removeWatcher(convID, userID uint) {
	if users, ok := h.conversations[convID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(h.conversations, convID)
		}
	}
}

func (h *ChatHub) IsUserOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns[userID]) > 0
}

// JoinConversation subscribes userID to a conversation. Callers check
// participation first. It reports false when the user has no connection.
func (h *ChatHub) JoinConversation(userID, conversationID uint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.userConns[userID]) == 0 {
		return false
	}
	if h.conversations[conversationID] == nil {
		h.conversations[conversationID] = make(map[uint]struct{})
	}
	h.conversations[conversationID][userID] = struct{}{}
	if h.userConvs[userID] == nil {
		h.userConvs[userID] = make(map[uint]struct{})
	}
	h.userConvs[userID][conversationID] = struct{}{}
	return true
}

func (h *ChatHub) LeaveConversation(userID, conversationID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeWatcher(conversationID, userID)
	if convs, ok := h.userConvs[userID]; ok {
		delete(convs, conversationID)
		if len(convs) == 0 {
			delete(h.userConvs, userID)
		}
	}
}

// BroadcastToConversation sends a frame to every connection watching the conversation.
func (h *ChatHub) BroadcastToConversation(conversationID uint, message []byte) {
	if message == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID := range h.conversations[conversationID] {
		for client := range h.userConns[userID] {
			client.TrySend(message)
		}
	}
}

// ActiveUsers returns the users currently watching a conversation.
func (h *ChatHub) ActiveUsers(conversationID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uint, 0, len(h.conversations[conversationID]))
	for userID := range h.conversations[conversationID] {
		users = append(users, userID)
	}
	return users
}

func (h *ChatHub) IsUserActive(userID, conversationID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.userConvs[userID][conversationID]
	return ok
}

// StartWiring forwards chat:conv:<id> messages to the conversation's watchers.
func (h *ChatHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartConversationSubscriber(ctx, h.BroadcastToConversation)
}

func (h *ChatHub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	notice := []byte(`{"type":"server_shutdown","payload":{"message":"Server is shutting down"}}`)
	for userID, clients := range h.userConns {
		for client := range clients {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, notice); err != nil {
				h.log.LogError(ctx, userID, err, "shutdown")
			}
			_ = client.Conn.Close()
			observability.WebSocketConnectionsTotal.Dec()
		}
	}
	h.conversations = make(map[uint]map[uint]struct{})
	h.userConvs = make(map[uint]map[uint]struct{})
	h.userConns = make(map[uint]map[*Client]struct{})
	return nil
}
