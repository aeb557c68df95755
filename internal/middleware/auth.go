// Package middleware provides authentication, logging, tracing and rate limiting for the HTTP layer.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"estatehub/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TokenIssuer   = "estatehub-api"
	TokenAudience = "estatehub-client"
	TokenTTL      = 7 * 24 * time.Hour
	// TokenCookie is the HTTP-only cookie carrying the session token.
	TokenCookie = "token"

	wsTicketTTL = 30 * time.Second
)

// ErrTokenRevoked is returned for tokens whose jti was revoked on logout.
var ErrTokenRevoked = errors.New("token has been revoked")

// Claims is the JWT payload issued on login.
type Claims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return uint(id), nil
}

// RoleLookup re-reads the current role of a user so promotions and demotions
// take effect before the token expires.
type RoleLookup func(ctx context.Context, userID uint) (models.Role, error)

// Authenticator is the credential service: it issues, verifies and revokes tokens.
type Authenticator struct {
	secret     []byte
	rdb        *redis.Client
	roleLookup RoleLookup
	now        func() time.Time
}

// NewAuthenticator returns an Authenticator signing with secret. rdb may be nil,
// in which case revocation and WebSocket tickets are unavailable.
func NewAuthenticator(secret string, rdb *redis.Client) *Authenticator {
	return &Authenticator{secret: []byte(secret), rdb: rdb, now: time.Now}
}

// WithRoleLookup installs a role lookup consulted on every authenticated request.
func (a *Authenticator) WithRoleLookup(fn RoleLookup) *Authenticator {
	a.roleLookup = fn
	return a
}

// Issue signs a token for user.
func (a *Authenticator) Issue(user *models.User) (string, *Claims, error) {
	now := a.now()
	claims := &Claims{
		Username: user.Username,
		Role:     user.Role(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateJTI(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

func generateJTI(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8])
}

// Authenticate verifies signature, issuer, audience, lifetime and revocation.
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	if claims.ID != "" && a.rdb != nil {
		revoked, err := a.rdb.Exists(ctx, revokedKey(claims.ID)).Result()
		if err == nil && revoked > 0 {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Principal resolves the claims to a principal, consulting the role lookup when installed.
func (a *Authenticator) Principal(ctx context.Context, claims *Claims) (models.Principal, error) {
	id, err := claims.UserID()
	if err != nil {
		return models.Principal{}, err
	}
	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}
	if a.roleLookup != nil {
		current, err := a.roleLookup(ctx, id)
		if err != nil {
			return models.Principal{}, err
		}
		role = current
	}
	return models.Principal{ID: id, Role: role}, nil
}

// Revoke blacklists the token until its natural expiry.
func (a *Authenticator) Revoke(ctx context.Context, claims *Claims) error {
	if a.rdb == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return a.rdb.Set(ctx, revokedKey(claims.ID), "1", ttl).Err()
}

func revokedKey(jti string) string {
	return "blacklist:" + jti
}

// IssueTicket returns a short-lived single-use ticket for opening a WebSocket.
func (a *Authenticator) IssueTicket(ctx context.Context, p models.Principal) (string, error) {
	if a.rdb == nil {
		return "", errors.New("websocket tickets require redis")
	}
	ticket := uuid.New().String()
	value := fmt.Sprintf("%d:%s", p.ID, p.Role)
	if err := a.rdb.Set(ctx, ticketKey(ticket), value, wsTicketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// RedeemTicket consumes a ticket issued by IssueTicket.
func (a *Authenticator) RedeemTicket(ctx context.Context, ticket string) (models.Principal, error) {
	if a.rdb == nil {
		return models.Principal{}, errors.New("websocket tickets require redis")
	}
	value, err := a.rdb.GetDel(ctx, ticketKey(ticket)).Result()
	if err != nil {
		return models.Principal{}, err
	}
	idPart, rolePart, ok := strings.Cut(value, ":")
	if !ok {
		return models.Principal{}, errors.New("malformed ticket")
	}
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		return models.Principal{}, err
	}
	return models.Principal{ID: uint(id), Role: models.Role(rolePart)}, nil
}

func ticketKey(ticket string) string {
	return "ws_ticket:" + ticket
}

func bearerToken(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie := c.Cookies(TokenCookie); cookie != "" {
		return cookie
	}
	if strings.HasPrefix(c.Path(), "/api/ws") {
		return c.Query("token")
	}
	return ""
}

// Required rejects requests without a valid credential and stores the principal.
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := a.resolve(c)
		if err != nil {
			return models.RespondWithError(c, models.NewUnauthorizedError(err.Error()))
		}
		setPrincipal(c, p)
		return c.Next()
	}
}

// Optional stores the principal when a valid credential is present and
// otherwise continues anonymously.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if p, err := a.resolve(c); err == nil {
			setPrincipal(c, p)
		}
		return c.Next()
	}
}

func (a *Authenticator) resolve(c *fiber.Ctx) (models.Principal, error) {
	ctx := c.UserContext()
	if ticket := c.Query("ticket"); ticket != "" && strings.HasPrefix(c.Path(), "/api/ws") {
		p, err := a.RedeemTicket(ctx, ticket)
		if err != nil {
			return models.Principal{}, errors.New("invalid or expired websocket ticket")
		}
		return p, nil
	}

	token := bearerToken(c)
	if token == "" {
		return models.Principal{}, errors.New("authorization required")
	}
	claims, err := a.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			return models.Principal{}, err
		}
		return models.Principal{}, errors.New("invalid or expired token")
	}
	c.Locals("claims", claims)
	p, err := a.Principal(ctx, claims)
	if err != nil {
		return models.Principal{}, errors.New("account no longer active")
	}
	return p, nil
}

func setPrincipal(c *fiber.Ctx, p models.Principal) {
	c.Locals("userID", p.ID)
	c.Locals("role", p.Role)
	ctx := context.WithValue(c.UserContext(), UserIDKey, p.ID)
	c.SetUserContext(ctx)
}

// PrincipalFrom returns the principal stored by Required or Optional.
func PrincipalFrom(c *fiber.Ctx) (models.Principal, bool) {
	id, ok := c.Locals("userID").(uint)
	if !ok || id == 0 {
		return models.Principal{}, false
	}
	role, _ := c.Locals("role").(models.Role)
	if role == "" {
		role = models.RoleUser
	}
	return models.Principal{ID: id, Role: role}, true
}

// ClaimsFrom returns the verified token claims of the request, if any.
func ClaimsFrom(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals("claims").(*Claims)
	return claims, ok
}

// AdminOnly must run after Required.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok {
			return models.RespondWithError(c, models.NewUnauthorizedError("authorization required"))
		}
		if !p.IsAdmin() {
			return models.RespondWithError(c, models.NewForbiddenError("admin access required"))
		}
		return c.Next()
	}
}
