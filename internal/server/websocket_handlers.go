package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"estatehub/internal/middleware"
	"estatehub/internal/models"
	"estatehub/internal/notifications"
	"estatehub/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// chatFrame is one client-to-server frame on the chat socket.
type chatFrame struct {
	Type           string   `json:"type"`
	ConversationID uint     `json:"conversation_id"`
	IsTyping       bool     `json:"is_typing"`
	Body           string   `json:"body"`
	Attachments    []string `json:"attachments"`
}

// upgradeRequired rejects plain HTTP requests on WebSocket routes.
func (s *Server) upgradeRequired(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

func socketUser(conn *websocket.Conn) (uint, bool) {
	uid, ok := conn.Locals("userID").(uint)
	return uid, ok && uid != 0
}

// WebsocketHandler serves GET /api/ws, the per-user notification stream
// (new_message notices for conversations the user is not watching).
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := socketUser(conn)
		if !ok {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("notification socket rejected", "user_id", uid, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, notifications.ChatEvent{
				Type:    notifications.EventError,
				Payload: fiber.Map{"message": err.Error()},
			}.Encode())
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// WebSocketChatHandler serves GET /api/ws/chat. Clients join conversations to
// receive their message, typing and read events, and may send messages and
// read markers over the socket; both go through the chat service.
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := socketUser(conn)
		if !ok {
			_ = conn.Close()
			return
		}

		client, err := s.chatHub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("chat socket rejected", "user_id", uid, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, notifications.ChatEvent{
				Type:    notifications.EventError,
				Payload: fiber.Map{"message": err.Error()},
			}.Encode())
			_ = conn.Close()
			return
		}

		ctx := context.WithValue(context.Background(), middleware.UserIDKey, uid)
		client.IncomingHandler = func(c *notifications.Client, raw []byte) {
			var frame chatFrame
			if err := json.Unmarshal(raw, &frame); err != nil {
				sendChatError(c, 0, models.NewValidationError("Invalid message format"))
				return
			}
			s.handleChatFrame(ctx, c, frame)
		}

		client.TrySend(notifications.ChatEvent{
			Type:    notifications.EventConnected,
			UserID:  uid,
			Payload: fiber.Map{"user_id": uid},
		}.Encode())

		go client.WritePump()
		client.ReadPump()
	})
}

func (s *Server) handleChatFrame(ctx context.Context, c *notifications.Client, frame chatFrame) {
	uid := c.UserID
	convID := frame.ConversationID
	if convID == 0 {
		sendChatError(c, 0, models.NewValidationError("conversation_id is required"))
		return
	}

	switch frame.Type {
	case "join":
		if _, err := s.chat.GetConversation(ctx, convID, uid); err != nil {
			sendChatError(c, convID, err)
			return
		}
		s.chatHub.JoinConversation(uid, convID)
		c.TrySend(notifications.ChatEvent{
			Type:           notifications.EventJoined,
			ConversationID: convID,
			UserID:         uid,
			Payload:        fiber.Map{"conversation_id": convID},
		}.Encode())

	case "leave":
		s.chatHub.LeaveConversation(uid, convID)
		c.TrySend(notifications.ChatEvent{
			Type:           notifications.EventLeft,
			ConversationID: convID,
			UserID:         uid,
		}.Encode())

	case notifications.EventTyping:
		if !s.chatHub.IsUserActive(uid, convID) {
			return
		}
		allowed, err := middleware.CheckRateLimit(ctx, s.redis, "typing", fmt.Sprintf("user:%d", uid), 10, 10*time.Second)
		if err == nil && !allowed {
			return
		}
		s.dispatcher.Typing(ctx, convID, uid, frame.IsTyping)

	case notifications.EventMessage:
		allowed, err := middleware.CheckRateLimit(ctx, s.redis, "send_chat", fmt.Sprintf("user:%d", uid), 15, time.Minute)
		if err == nil && !allowed {
			sendChatError(c, convID, models.NewInvalidOperationError("Rate limit exceeded. Please wait a moment."))
			return
		}
		if _, err := s.chat.SendMessage(ctx, service.SendMessageInput{
			ConversationID: convID,
			SenderID:       uid,
			Body:           frame.Body,
			Attachments:    frame.Attachments,
			Transport:      service.TransportWebSocket,
		}); err != nil {
			sendChatError(c, convID, err)
		}

	case notifications.EventRead:
		if _, err := s.chat.MarkRead(ctx, convID, uid); err != nil {
			sendChatError(c, convID, err)
		}

	default:
		sendChatError(c, convID, models.NewValidationError("Unknown event type "+frame.Type))
	}
}

func sendChatError(c *notifications.Client, convID uint, err error) {
	appErr := models.Classify(err)
	if appErr.Kind == models.KindInternal {
		middleware.Logger.Error("chat socket event failed", "user_id", c.UserID, "conversation_id", convID, "error", err)
	}
	c.TrySend(notifications.ChatEvent{
		Type:           notifications.EventError,
		ConversationID: convID,
		Payload:        fiber.Map{"kind": appErr.Kind, "message": appErr.Message},
	}.Encode())
}
