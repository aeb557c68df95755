package server

import (
	"time"

	"estatehub/internal/middleware"
	"estatehub/internal/models"
	"estatehub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new user account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignupInput true "Signup request"
// @Success 201 {object} models.SuccessResponse{data=service.Session}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req service.SignupInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	session, err := s.users.Signup(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	s.setTokenCookie(c, session)
	return created(c, session)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate with email and password; the token is returned in the body and as an HTTP-only cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login request"
// @Success 200 {object} models.SuccessResponse{data=service.Session}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	session, err := s.users.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	s.setTokenCookie(c, session)
	return ok(c, session)
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the current token and clear the session cookie
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, _ := middleware.ClaimsFrom(c)
	if err := s.users.Logout(c.UserContext(), claims); err != nil {
		return respondError(c, err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return ok(c, fiber.Map{"message": "Logged out"})
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue WebSocket ticket
// @Description Returns a single-use ticket valid for 30 seconds to open a WebSocket without exposing the token in the URL
// @Tags realtime
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse{data=object{ticket=string,expires_in=int}}
// @Failure 500 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	ticket, err := s.auth.IssueTicket(c.UserContext(), principal(c))
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return ok(c, fiber.Map{"ticket": ticket, "expires_in": 30})
}

func (s *Server) setTokenCookie(c *fiber.Ctx, session *service.Session) {
	expires := time.Now().Add(middleware.TokenTTL)
	if session.Claims != nil && session.Claims.ExpiresAt != nil {
		expires = session.Claims.ExpiresAt.Time
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
