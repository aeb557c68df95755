package server

import (
	"estatehub/internal/models"
	"estatehub/internal/repository"
	"estatehub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetListings handles GET /api/listings
// @Summary Browse listings
// @Tags listings
// @Produce json
// @Param kind query string false "property, residential, commercial or item"
// @Param category query string false "Category"
// @Param city query string false "City"
// @Param owner_id query int false "Owner"
// @Param status query string false "Status"
// @Param min_price query number false "Minimum price"
// @Param max_price query number false "Maximum price"
// @Param search query string false "Free text over title and description"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} models.SuccessResponse{data=service.ListingPage}
// @Router /listings [get]
func (s *Server) GetListings(c *fiber.Ctx) error {
	filter := repository.ListingFilter{
		Kind:     models.ListingKind(c.Query("kind")),
		Category: c.Query("category"),
		City:     c.Query("city"),
		OwnerID:  uint(c.QueryInt("owner_id", 0)),
		Status:   models.ListingStatus(c.Query("status")),
		Search:   c.Query("search"),
	}
	if c.Query("min_price") != "" {
		v := c.QueryFloat("min_price", 0)
		filter.MinPrice = &v
	}
	if c.Query("max_price") != "" {
		v := c.QueryFloat("max_price", 0)
		filter.MaxPrice = &v
	}

	page := parsePagination(c, 20)
	result, err := s.listings.List(c.UserContext(), service.ListListingsInput{
		Filter: filter,
		Page:   page.Page,
		Limit:  page.Limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, result)
}

// GetListing handles GET /api/listings/:id
// @Summary Listing detail
// @Tags listings
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {object} models.SuccessResponse{data=models.Listing}
// @Failure 404 {object} models.ErrorResponse
// @Router /listings/{id} [get]
func (s *Server) GetListing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	l, err := s.listings.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, l)
}

// CreateListing handles POST /api/listings
// @Summary Create a listing
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ListingInput true "Listing"
// @Success 201 {object} models.SuccessResponse{data=models.Listing}
// @Failure 400 {object} models.ErrorResponse
// @Router /listings [post]
func (s *Server) CreateListing(c *fiber.Ctx) error {
	var req service.ListingInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	l, err := s.listings.Create(c.UserContext(), principal(c).ID, req)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, l)
}

// UpdateListing handles PUT /api/listings/:id
// @Summary Update a listing
// @Description Owner or admin. Moving to sold notifies open conversations.
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Listing ID"
// @Param request body service.ListingInput true "Listing"
// @Success 200 {object} models.SuccessResponse{data=models.Listing}
// @Failure 403 {object} models.ErrorResponse
// @Router /listings/{id} [put]
func (s *Server) UpdateListing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.ListingInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	l, err := s.listings.Update(c.UserContext(), id, principal(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, l)
}

// MarkListingSold handles POST /api/listings/:id/sold
// @Summary Mark a listing sold
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Listing ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /listings/{id}/sold [post]
func (s *Server) MarkListingSold(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.listings.MarkSold(c.UserContext(), id, principal(c)); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.Map{"id": id, "status": models.ListingSold})
}

// DeleteListing handles DELETE /api/listings/:id
// @Summary Delete a listing
// @Description Open conversations about the listing are closed with an unavailable notice
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Listing ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /listings/{id} [delete]
func (s *Server) DeleteListing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.listings.Delete(c.UserContext(), id, principal(c)); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.Map{"message": "Listing deleted"})
}
