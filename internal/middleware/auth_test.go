package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"estatehub/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func newTestAuthenticator(t *testing.T) (*Authenticator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewAuthenticator(testSecret, rdb), mr
}

func protectedApp(a *Authenticator) *fiber.App {
	app := fiber.New()
	app.Get("/me", a.Required(), func(c *fiber.Ctx) error {
		p, _ := PrincipalFrom(c)
		return c.JSON(fiber.Map{"id": p.ID, "role": p.Role})
	})
	app.Get("/admin", a.Required(), AdminOnly(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/feed", a.Optional(), func(c *fiber.Ctx) error {
		_, ok := PrincipalFrom(c)
		return c.JSON(fiber.Map{"authenticated": ok})
	})
	app.Get("/api/ws/chat", a.Required(), func(c *fiber.Ctx) error {
		p, _ := PrincipalFrom(c)
		return c.JSON(fiber.Map{"id": p.ID})
	})
	return app
}

func signRaw(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestAuthenticator_Required(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	app := protectedApp(a)

	valid, _, err := a.Issue(&models.User{ID: 123, Username: "alice"})
	require.NoError(t, err)

	now := time.Now()
	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{name: "valid bearer", authHeader: "Bearer " + valid, expectedStatus: http.StatusOK},
		{name: "missing header", expectedStatus: http.StatusUnauthorized},
		{name: "basic scheme", authHeader: "Basic dXNlcjpwYXNz", expectedStatus: http.StatusUnauthorized},
		{
			name: "expired",
			authHeader: "Bearer " + signRaw(t, jwt.MapClaims{
				"sub": "123", "iss": TokenIssuer, "aud": TokenAudience,
				"exp": now.Add(-time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong issuer",
			authHeader: "Bearer " + signRaw(t, jwt.MapClaims{
				"sub": "123", "iss": "someone-else", "aud": TokenAudience,
				"exp": now.Add(time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong audience",
			authHeader: "Bearer " + signRaw(t, jwt.MapClaims{
				"sub": "123", "iss": TokenIssuer, "aud": "mobile",
				"exp": now.Add(time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "non numeric subject",
			authHeader: "Bearer " + signRaw(t, jwt.MapClaims{
				"sub": "abc", "iss": TokenIssuer, "aud": TokenAudience,
				"exp": now.Add(time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, float64(123), body["id"])
				assert.Equal(t, string(models.RoleUser), body["role"])
			} else {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.False(t, body.OK)
				assert.Equal(t, models.KindUnauthorized, body.Kind)
			}
		})
	}
}

func TestAuthenticator_CookieToken(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	app := protectedApp(a)
	token, _, err := a.Issue(&models.User{ID: 7, Username: "bob"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	resp, err := app.Test(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthenticator_QueryTokenOnlyOnWebSocketPaths(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	app := protectedApp(a)
	token, _, err := a.Issue(&models.User{ID: 7, Username: "bob"})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/ws/chat?token="+token, nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthenticator_RevokedTokenRejected(t *testing.T) {
	a, mr := newTestAuthenticator(t)
	app := protectedApp(a)
	token, claims, err := a.Issue(&models.User{ID: 9, Username: "carol"})
	require.NoError(t, err)

	require.NoError(t, a.Revoke(context.Background(), claims))
	assert.True(t, mr.Exists("blacklist:"+claims.ID))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticator_WebSocketTicketIsSingleUse(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	app := protectedApp(a)

	ticket, err := a.IssueTicket(context.Background(), models.Principal{ID: 42, Role: models.RoleUser})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/ws/chat?ticket="+ticket, nil))
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(42), body["id"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/ws/chat?ticket="+ticket, nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminOnly(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	app := protectedApp(a)

	user, _, err := a.Issue(&models.User{ID: 1, Username: "user"})
	require.NoError(t, err)
	admin, _, err := a.Issue(&models.User{ID: 2, Username: "root", IsAdmin: true})
	require.NoError(t, err)

	for token, want := range map[string]int{user: http.StatusForbidden, admin: http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode)
	}
}

func TestAuthenticator_RoleLookupOverridesTokenRole(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	a.WithRoleLookup(func(_ context.Context, id uint) (models.Role, error) {
		if id == 1 {
			return models.RoleAdmin, nil
		}
		return models.RoleUser, nil
	})
	app := protectedApp(a)

	token, _, err := a.Issue(&models.User{ID: 1, Username: "promoted"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOptional_AnonymousAllowed(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	app := protectedApp(a)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/feed", nil))
	require.NoError(t, err)
	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.False(t, body["authenticated"])

	token, _, err := a.Issue(&models.User{ID: 5, Username: "dave"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.True(t, body["authenticated"])
}

func TestClaims_Subject(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	_, claims, err := a.Issue(&models.User{ID: 77, Username: "eve"})
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(77), id)
	assert.Equal(t, strconv.Itoa(77), claims.Subject)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt.Time, time.Minute)
}
