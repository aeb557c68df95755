package server

import (
	"estatehub/internal/models"
	"estatehub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateConversation handles POST /api/conversations
// @Summary Contact a seller
// @Description Returns the conversation between the caller and the seller of the item, creating it with a join notice on first contact
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{item_id=int} true "Listing to ask about"
// @Success 200 {object} models.SuccessResponse{data=models.Conversation}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations [post]
func (s *Server) CreateConversation(c *fiber.Ctx) error {
	var req struct {
		ItemID uint `json:"item_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.ItemID == 0 {
		return respondError(c, models.NewValidationError("item_id is required"))
	}

	conv, err := s.chat.GetOrCreateConversation(c.UserContext(), req.ItemID, principal(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, conv)
}

// GetConversations handles GET /api/conversations
// @Summary My conversations
// @Description Active conversations, most recent first, each with its unread count
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse{data=[]models.Conversation}
// @Router /conversations [get]
func (s *Server) GetConversations(c *fiber.Ctx) error {
	convs, err := s.chat.ListConversations(c.UserContext(), principal(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, convs)
}

// GetConversation handles GET /api/conversations/:id
// @Summary Conversation detail
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} models.SuccessResponse{data=models.Conversation}
// @Failure 403 {object} models.ErrorResponse
// @Router /conversations/{id} [get]
func (s *Server) GetConversation(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	conv, err := s.chat.GetConversation(c.UserContext(), id, principal(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, conv)
}

// GetMessages handles GET /api/conversations/:id/messages
// @Summary Conversation messages
// @Description Page 1 is the newest page; messages within a page are oldest first. Reading marks the other party's messages read.
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(50)
// @Success 200 {object} models.SuccessResponse{data=service.MessagePage}
// @Failure 403 {object} models.ErrorResponse
// @Router /conversations/{id}/messages [get]
func (s *Server) GetMessages(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	result, err := s.chat.ListMessages(c.UserContext(), service.ListMessagesInput{
		ConversationID: id,
		RequesterID:    principal(c).ID,
		Page:           page.Page,
		Limit:          page.Limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, result)
}

// SendMessage handles POST /api/conversations/:id/messages
// @Summary Send a message
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Param request body object{body=string,attachments=[]string} true "Message"
// @Success 201 {object} models.SuccessResponse{data=models.Message}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /conversations/{id}/messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Body        string   `json:"body"`
		Attachments []string `json:"attachments"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	msg, err := s.chat.SendMessage(c.UserContext(), service.SendMessageInput{
		ConversationID: id,
		SenderID:       principal(c).ID,
		Body:           req.Body,
		Attachments:    req.Attachments,
		Transport:      service.TransportHTTP,
	})
	if err != nil {
		return respondError(c, err)
	}
	return created(c, msg)
}

// MarkConversationRead handles POST /api/conversations/:id/read
// @Summary Mark a conversation read
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} models.SuccessResponse{data=object{marked=int}}
// @Router /conversations/{id}/read [post]
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	n, err := s.chat.MarkRead(c.UserContext(), id, principal(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.Map{"marked": n})
}

// GetUnreadCount handles GET /api/messages/unread-count
// @Summary Unread message count
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse{data=object{count=int}}
// @Router /messages/unread-count [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	n, err := s.chat.UnreadCount(c.UserContext(), principal(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.Map{"count": n})
}
