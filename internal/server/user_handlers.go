package server

import (
	"context"
	"strings"
	"time"

	"estatehub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetAllUsers handles GET /api/users
// @Summary List users
// @Description Admin listing with optional search over name, username and email
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param q query string false "Search term"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} models.SuccessResponse{data=service.UserPage}
// @Failure 403 {object} models.ErrorResponse
// @Router /users [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	page := parsePagination(c, 20)
	users, err := s.users.ListUsers(ctx, principal(c), strings.TrimSpace(c.Query("q")), page.Page, page.Limit)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, users)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Public profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.SuccessResponse{data=models.User}
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.users.GetUser(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, user)
}

// GetMyProfile handles GET /api/users/me
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse{data=models.User}
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.users.Me(c.UserContext(), principal(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update current user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{name=string,phone=string} true "Fields to change"
// @Success 200 {object} models.SuccessResponse{data=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Name  *string `json:"name"`
		Phone *string `json:"phone"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.users.UpdateMe(c.UserContext(), service.UpdateProfileInput{
		UserID: principal(c).ID,
		Name:   req.Name,
		Phone:  req.Phone,
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, user)
}

// PromoteToAdmin handles POST /api/users/:id/promote-admin
// @Summary Promote to admin
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.SuccessResponse{data=models.User}
// @Router /users/{id}/promote-admin [post]
func (s *Server) PromoteToAdmin(c *fiber.Ctx) error {
	return s.setAdmin(c, true)
}

// DemoteFromAdmin handles POST /api/users/:id/demote-admin
// @Summary Demote admin
// @Description Admins cannot demote themselves
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.SuccessResponse{data=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/{id}/demote-admin [post]
func (s *Server) DemoteFromAdmin(c *fiber.Ctx) error {
	return s.setAdmin(c, false)
}

func (s *Server) setAdmin(c *fiber.Ctx, isAdmin bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.users.SetAdmin(c.UserContext(), principal(c), id, isAdmin)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, user)
}

// VerifyUser handles POST /api/users/:id/verify
// @Summary Mark a user verified
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.SuccessResponse{data=models.User}
// @Router /users/{id}/verify [post]
func (s *Server) VerifyUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.users.VerifyUser(c.UserContext(), principal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, user)
}

// GetUserActivity handles GET /api/users/:id/activity
// @Summary Recent questions and answers of a user
// @Tags community
// @Produce json
// @Param id path int true "User ID"
// @Param type query string false "all, questions or answers" default(all)
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} models.SuccessResponse{data=service.UserActivity}
// @Router /users/{id}/activity [get]
func (s *Server) GetUserActivity(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 10)
	activity, err := s.community.UserActivity(c.UserContext(), service.UserActivityInput{
		UserID: id,
		Type:   service.ActivityType(c.Query("type", string(service.ActivityAll))),
		Page:   page.Page,
		Limit:  page.Limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, activity)
}
