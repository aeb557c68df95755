// Package service provides application business logic (Q&A, chat, listings, tickets, users).
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"estatehub/internal/middleware"
	"estatehub/internal/models"
	"estatehub/internal/observability"
	"estatehub/internal/repository"
	"estatehub/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const defaultMessageLimit = 50

// Transport labels for the messages-sent metric.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// ItemLookup resolves the seller and title of a listing.
type ItemLookup interface {
	GetItemOwner(ctx context.Context, itemID uint) (*models.ItemOwner, error)
}

// ChatEvents receives realtime notifications after chat writes commit.
type ChatEvents interface {
	MessageCreated(ctx context.Context, conv *models.Conversation, msg *models.Message)
	ConversationRead(ctx context.Context, conv *models.Conversation, readerID uint, count int64)
}

// ChatService provides buyer/seller conversation business logic.
type ChatService struct {
	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
	items    ItemLookup
	events   ChatEvents
	now      func() time.Time
}

// SendMessageInput is the input for sending a message.
type SendMessageInput struct {
	ConversationID uint
	SenderID       uint
	Body           string
	Attachments    []string
	Transport      string
}

// ListMessagesInput selects one page of a conversation, newest page first.
type ListMessagesInput struct {
	ConversationID uint
	RequesterID    uint
	Page           int
	Limit          int
}

// MessagePage is one page of messages, oldest first.
type MessagePage struct {
	Messages   []*models.Message `json:"messages"`
	Pagination MessagePagination `json:"pagination"`
}

type MessagePagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// NewChatService returns a new ChatService.
func NewChatService(chatRepo repository.ChatRepository, userRepo repository.UserRepository, items ItemLookup) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		userRepo: userRepo,
		items:    items,
		now:      time.Now,
	}
}

// SetEvents installs the realtime fan-out. It may be nil.
func (s *ChatService) SetEvents(events ChatEvents) {
	s.events = events
}

// GetOrCreateConversation returns the single conversation between buyerID and
// the seller of itemID, creating it on first contact. Concurrent first
// contacts converge on the same row.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, itemID, buyerID uint) (conv *models.Conversation, err error) {
	ctx, span := observability.StartSpan(ctx, "chat.GetOrCreateConversation",
		attribute.Int("item.id", int(itemID)), attribute.Int("buyer.id", int(buyerID)))
	defer func() { observability.EndSpan(span, err) }()

	owner, err := s.items.GetItemOwner(ctx, itemID)
	if err != nil {
		return nil, notFoundOr(err, "Item", itemID)
	}
	if owner.OwnerID == buyerID {
		return nil, models.NewInvalidOperationError("cannot message yourself")
	}

	existing, err := s.chatRepo.FindByTriple(ctx, itemID, owner.OwnerID, buyerID)
	switch {
	case err == nil:
		observability.ConversationsResolved.WithLabelValues("existing").Inc()
		return s.loadConversation(ctx, existing.ID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, internal(err)
	}

	buyer, err := s.userRepo.GetByID(ctx, buyerID)
	if err != nil {
		return nil, notFoundOr(err, "User", buyerID)
	}

	now := s.now().UTC()
	preview := fmt.Sprintf("%s is interested in your item: %s", buyer.Name, owner.Title)
	join := models.SystemJoin
	conv = &models.Conversation{
		ItemID:          itemID,
		SellerID:        owner.OwnerID,
		BuyerID:         buyerID,
		LastMessage:     preview,
		LastMessageAt:   now,
		IsActive:        true,
		BuyerLastReadAt: now,
	}
	intro := &models.Message{
		SenderID:      buyerID,
		Body:          preview,
		MessageType:   models.MessageSystem,
		SystemSubtype: &join,
		CreatedAt:     now,
	}

	created, err := s.chatRepo.CreateWithIntro(ctx, conv, intro)
	if err != nil && !isUniqueConstraintError(err) {
		return nil, internal(err)
	}
	if err != nil || !created {
		winner, findErr := s.chatRepo.FindByTriple(ctx, itemID, owner.OwnerID, buyerID)
		if findErr != nil {
			return nil, models.NewConflictError("Conversation could not be resolved", findErr)
		}
		observability.ConversationsResolved.WithLabelValues("race_lost").Inc()
		return s.loadConversation(ctx, winner.ID)
	}

	observability.ConversationsResolved.WithLabelValues("created").Inc()
	conv, err = s.loadConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, conv, intro)
	return conv, nil
}

func (s *ChatService) loadConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	conv, err := s.chatRepo.GetConversation(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Conversation", id)
	}
	return conv, nil
}

// participantConversation loads a conversation and checks that userID takes part in it.
func (s *ChatService) participantConversation(ctx context.Context, id, userID uint) (*models.Conversation, error) {
	conv, err := s.loadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this conversation")
	}
	return conv, nil
}

// GetConversation returns one conversation of the requester.
func (s *ChatService) GetConversation(ctx context.Context, id, requesterID uint) (*models.Conversation, error) {
	return s.participantConversation(ctx, id, requesterID)
}

// ListConversations returns the participant's active conversations, most recent first.
func (s *ChatService) ListConversations(ctx context.Context, userID uint) ([]*models.Conversation, error) {
	convs, err := s.chatRepo.ListConversations(ctx, userID)
	if err != nil {
		return nil, internal(err)
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}
	return convs, nil
}

// ListMessages returns one page of messages and marks the conversation read
// for the requester.
func (s *ChatService) ListMessages(ctx context.Context, in ListMessagesInput) (*MessagePage, error) {
	conv, err := s.participantConversation(ctx, in.ConversationID, in.RequesterID)
	if err != nil {
		return nil, err
	}
	page := repository.Page{Page: in.Page, Limit: in.Limit}.Normalize(defaultMessageLimit, 100)
	messages, hasMore, err := s.chatRepo.ListMessages(ctx, conv.ID, page)
	if err != nil {
		return nil, internal(err)
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	if _, err := s.markRead(ctx, conv, in.RequesterID); err != nil {
		return nil, err
	}
	return &MessagePage{
		Messages:   messages,
		Pagination: MessagePagination{Page: page.Page, Limit: page.Limit, HasMore: hasMore},
	}, nil
}

// MarkRead records read receipts for every message the reader has not seen.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, readerID uint) (int64, error) {
	conv, err := s.participantConversation(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return s.markRead(ctx, conv, readerID)
}

func (s *ChatService) markRead(ctx context.Context, conv *models.Conversation, readerID uint) (int64, error) {
	n, err := s.chatRepo.MarkRead(ctx, conv, readerID, s.now().UTC())
	if err != nil {
		return 0, internal(err)
	}
	if n > 0 && s.events != nil {
		s.events.ConversationRead(ctx, conv, readerID, n)
	}
	return n, nil
}

func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (msg *models.Message, err error) {
	ctx, span := observability.StartSpan(ctx, "chat.SendMessage", attribute.Int("conversation.id", int(in.ConversationID)))
	defer func() { observability.EndSpan(span, err) }()

	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, models.NewValidationError("Message cannot be empty")
	}
	if !validation.CheckLength(body, models.MaxMessageBody) {
		return nil, models.NewValidationError("Message too long (max 1000 characters)")
	}
	conv, err := s.participantConversation(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive {
		return nil, models.NewInvalidOperationError("This conversation is closed")
	}

	msg = &models.Message{
		SenderID:    in.SenderID,
		Body:        validation.StripTags(body),
		MessageType: models.MessageText,
		Attachments: in.Attachments,
		CreatedAt:   s.now().UTC(),
	}
	if len(in.Attachments) > 0 {
		msg.MessageType = models.MessageImage
	}
	if err := s.chatRepo.CreateMessage(ctx, conv, msg); err != nil {
		return nil, internal(err)
	}

	transport := in.Transport
	if transport == "" {
		transport = TransportHTTP
	}
	observability.MessagesSent.WithLabelValues(transport).Inc()
	s.publish(ctx, conv, msg)
	return msg, nil
}

func (s *ChatService) publish(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	if s.events != nil {
		s.events.MessageCreated(ctx, conv, msg)
	}
}

// UnreadCount is the number of messages waiting for userID across active conversations.
func (s *ChatService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	n, err := s.chatRepo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, internal(err)
	}
	return n, nil
}

var closingNotices = map[models.SystemSubtype]string{
	models.SystemItemSold:        "This item has been sold",
	models.SystemItemUnavailable: "This item is no longer available",
}

// CloseConversationsForItem posts a system notice to every open conversation
// about itemID. Unavailable items also close their conversations.
func (s *ChatService) CloseConversationsForItem(ctx context.Context, itemID uint, subtype models.SystemSubtype) error {
	notice, ok := closingNotices[subtype]
	if !ok {
		return models.NewValidationError("Unsupported system message type")
	}
	convs, err := s.chatRepo.ListActiveForItem(ctx, itemID)
	if err != nil {
		return internal(err)
	}

	ids := make([]uint, 0, len(convs))
	for _, conv := range convs {
		st := subtype
		msg := &models.Message{
			SenderID:      conv.SellerID,
			Body:          notice,
			MessageType:   models.MessageSystem,
			SystemSubtype: &st,
			CreatedAt:     s.now().UTC(),
		}
		if err := s.chatRepo.CreateMessage(ctx, conv, msg); err != nil {
			middleware.Logger.ErrorContext(ctx, "failed to post item notice",
				"conversation_id", conv.ID, "subtype", subtype, "error", err)
			continue
		}
		s.publish(ctx, conv, msg)
		ids = append(ids, conv.ID)
	}

	if subtype == models.SystemItemUnavailable {
		if err := s.chatRepo.Deactivate(ctx, ids); err != nil {
			return internal(err)
		}
	}
	return nil
}
