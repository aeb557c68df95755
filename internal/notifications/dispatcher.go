package notifications

import (
	"context"

	"estatehub/internal/models"
	"estatehub/internal/observability"
)

const previewLength = 100

// Dispatcher fans chat writes out to the hubs. With Redis every frame goes
// through pub/sub so any instance holding the socket delivers it; without
// Redis frames are broadcast in-process.
type Dispatcher struct {
	hub      *Hub
	chatHub  *ChatHub
	notifier *Notifier
}

func NewDispatcher(hub *Hub, chatHub *ChatHub, notifier *Notifier) *Dispatcher {
	return &Dispatcher{hub: hub, chatHub: chatHub, notifier: notifier}
}

// MessageCreated sends the message to the conversation's watchers and a
// new_message notification to the recipient.
func (d *Dispatcher) MessageCreated(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	d.toConversation(ctx, conv.ID, ChatEvent{
		Type:           EventMessage,
		ConversationID: conv.ID,
		UserID:         msg.SenderID,
		Payload:        msg,
	})

	d.toUser(ctx, conv.OtherParticipant(msg.SenderID), ChatEvent{
		Type:           EventNewMessage,
		ConversationID: conv.ID,
		UserID:         msg.SenderID,
		Payload: map[string]interface{}{
			"conversation_id": conv.ID,
			"message_id":      msg.ID,
			"sender_id":       msg.SenderID,
			"message_type":    msg.MessageType,
			"preview":         preview(msg.Body),
		},
	})
}

// ConversationRead tells the other participant their messages were read.
func (d *Dispatcher) ConversationRead(ctx context.Context, conv *models.Conversation, readerID uint, count int64) {
	d.toConversation(ctx, conv.ID, ChatEvent{
		Type:           EventRead,
		ConversationID: conv.ID,
		UserID:         readerID,
		Payload:        map[string]interface{}{"conversation_id": conv.ID, "user_id": readerID, "count": count},
	})
}

// Typing relays a typing indicator to the conversation's watchers.
func (d *Dispatcher) Typing(ctx context.Context, conversationID, userID uint, isTyping bool) {
	d.toConversation(ctx, conversationID, ChatEvent{
		Type:           EventTyping,
		ConversationID: conversationID,
		UserID:         userID,
		Payload:        map[string]interface{}{"is_typing": isTyping, "expires_in_ms": 5000},
	})
}

func (d *Dispatcher) toConversation(ctx context.Context, conversationID uint, event ChatEvent) {
	data := event.Encode()
	if data == nil {
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(event.Type).Inc()
	if d.notifier.Enabled() {
		err := d.notifier.PublishConversation(ctx, conversationID, data)
		if err == nil {
			return
		}
		observability.GlobalLogger.WarnContext(ctx, "publish to conversation failed, delivering locally",
			"conversation_id", conversationID, "type", event.Type, "error", err)
	}
	if d.chatHub != nil {
		d.chatHub.BroadcastToConversation(conversationID, data)
	}
}

func (d *Dispatcher) toUser(ctx context.Context, userID uint, event ChatEvent) {
	data := event.Encode()
	if data == nil {
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(event.Type).Inc()
	if d.notifier.Enabled() {
		err := d.notifier.PublishUser(ctx, userID, data)
		if err == nil {
			return
		}
		observability.GlobalLogger.WarnContext(ctx, "publish to user failed, delivering locally",
			"user_id", userID, "type", event.Type, "error", err)
	}
	if d.hub != nil {
		d.hub.Broadcast(userID, data)
	}
}

func preview(body string) string {
	runes := []rune(body)
	if len(runes) <= previewLength {
		return body
	}
	return string(runes[:previewLength]) + "…"
}
