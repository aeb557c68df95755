package server

import (
	"estatehub/internal/models"
	"estatehub/internal/repository"
	"estatehub/internal/service"

	"github.com/gofiber/fiber/v2"
)

func ticketFilter(c *fiber.Ctx) repository.TicketFilter {
	return repository.TicketFilter{
		Status:   models.TicketStatus(c.Query("status")),
		Priority: models.TicketPriority(c.Query("priority")),
		Category: models.TicketCategory(c.Query("category")),
		Search:   c.Query("search"),
	}
}

// SubmitTicket handles POST /api/tickets
// @Summary Submit a support query
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.SubmitTicketInput true "Query"
// @Success 201 {object} models.SuccessResponse{data=models.Ticket}
// @Failure 400 {object} models.ErrorResponse
// @Router /tickets [post]
func (s *Server) SubmitTicket(c *fiber.Ctx) error {
	var req service.SubmitTicketInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	t, err := s.tickets.Submit(c.UserContext(), principal(c).ID, req)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, t)
}

// GetMyTickets handles GET /api/tickets/mine
// @Summary My support queries
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} models.SuccessResponse{data=service.TicketPage}
// @Router /tickets/mine [get]
func (s *Server) GetMyTickets(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	result, err := s.tickets.ListMine(c.UserContext(), principal(c).ID, service.ListTicketsInput{
		Filter: ticketFilter(c),
		Page:   page.Page,
		Limit:  page.Limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, result)
}

// GetTicket handles GET /api/tickets/:id
// @Summary Ticket detail
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ticket ID"
// @Success 200 {object} models.SuccessResponse{data=models.Ticket}
// @Failure 403 {object} models.ErrorResponse
// @Router /tickets/{id} [get]
func (s *Server) GetTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	t, err := s.tickets.Get(c.UserContext(), id, principal(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, t)
}

// RateTicket handles POST /api/tickets/:id/rate
// @Summary Rate a resolved ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ticket ID"
// @Param request body object{rating=int,feedback=string} true "Rating 1..5"
// @Success 200 {object} models.SuccessResponse{data=models.Ticket}
// @Failure 400 {object} models.ErrorResponse
// @Router /tickets/{id}/rate [post]
func (s *Server) RateTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	t, err := s.tickets.Rate(c.UserContext(), id, principal(c).ID, req.Rating, req.Feedback)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, t)
}

// GetAllTickets handles GET /api/admin/tickets
// @Summary Ticket queue
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status"
// @Param priority query string false "Priority"
// @Param category query string false "Category"
// @Param search query string false "Free text"
// @Success 200 {object} models.SuccessResponse{data=service.TicketPage}
// @Router /admin/tickets [get]
func (s *Server) GetAllTickets(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	result, err := s.tickets.List(c.UserContext(), principal(c), service.ListTicketsInput{
		Filter: ticketFilter(c),
		Page:   page.Page,
		Limit:  page.Limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, result)
}

// UpdateTicket handles PUT /api/admin/tickets/:id
// @Summary Update a ticket
// @Description Status only moves forward: pending, in-progress, resolved, closed
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ticket ID"
// @Param request body service.UpdateTicketInput true "Changes"
// @Success 200 {object} models.SuccessResponse{data=models.Ticket}
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/tickets/{id} [put]
func (s *Server) UpdateTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdateTicketInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	t, err := s.tickets.UpdateStatus(c.UserContext(), id, principal(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, t)
}

// RespondToTicket handles POST /api/admin/tickets/:id/respond
// @Summary Answer a ticket
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ticket ID"
// @Param request body object{message=string} true "Response"
// @Success 200 {object} models.SuccessResponse{data=models.Ticket}
// @Router /admin/tickets/{id}/respond [post]
func (s *Server) RespondToTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	t, err := s.tickets.Respond(c.UserContext(), id, principal(c), req.Message)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, t)
}

// DeleteTicket handles DELETE /api/admin/tickets/:id
// @Summary Delete a ticket
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Ticket ID"
// @Success 200 {object} models.SuccessResponse
// @Router /admin/tickets/{id} [delete]
func (s *Server) DeleteTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.tickets.Delete(c.UserContext(), id, principal(c)); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.Map{"message": "Ticket deleted"})
}

// GetTicketStats handles GET /api/admin/tickets/stats
// @Summary Ticket statistics
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse{data=models.TicketStats}
// @Router /admin/tickets/stats [get]
func (s *Server) GetTicketStats(c *fiber.Ctx) error {
	stats, err := s.tickets.Stats(c.UserContext(), principal(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, stats)
}
