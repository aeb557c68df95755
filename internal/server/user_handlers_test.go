package server

import (
	"fmt"
	"net/http"
	"testing"

	"estatehub/internal/models"
	"estatehub/internal/service"
	"estatehub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserProfile(t *testing.T) {
	ts := newTestServer(t, "")
	u := testutil.CreateUser(t, ts.db, "binod", false)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"Success", fmt.Sprintf("/api/users/%d", u.ID), http.StatusOK},
		{"Not Found", "/api/users/9999", http.StatusNotFound},
		{"Invalid ID", "/api/users/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := ts.do(t, http.MethodGet, tt.path, nil, "")
			assert.Equal(t, tt.expectedStatus, status)
			if status == http.StatusOK {
				var got models.User
				decodeData(t, env, &got)
				assert.Equal(t, "binod", got.Username)
				assert.Empty(t, got.Email, "public profile must not expose email")
			}
		})
	}
}

func TestGetAllUsers_AdminOnly(t *testing.T) {
	ts := newTestServer(t, "")
	admin := testutil.CreateUser(t, ts.db, "admin", true)
	member := testutil.CreateUser(t, ts.db, "member", false)

	status, env := ts.do(t, http.MethodGet, "/api/users", nil, ts.tokenFor(t, member))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.KindForbidden, env.Kind)

	status, env = ts.do(t, http.MethodGet, "/api/users?q=mem", nil, ts.tokenFor(t, admin))
	require.Equal(t, http.StatusOK, status)
	var page service.UserPage
	decodeData(t, env, &page)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "member", page.Users[0].Username)
}

func TestPromoteAndDemoteAdmin(t *testing.T) {
	ts := newTestServer(t, "")
	admin := testutil.CreateUser(t, ts.db, "root", true)
	member := testutil.CreateUser(t, ts.db, "deepa", false)
	adminToken := ts.tokenFor(t, admin)
	memberToken := ts.tokenFor(t, member)

	status, _ := ts.do(t, http.MethodGet, "/api/admin/feature-flags", nil, memberToken)
	require.Equal(t, http.StatusForbidden, status)

	status, env := ts.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/promote-admin", member.ID), nil, adminToken)
	require.Equal(t, http.StatusOK, status)
	var promoted models.User
	decodeData(t, env, &promoted)
	assert.True(t, promoted.IsAdmin)

	// The role is re-read on each request, so the old token now carries admin rights.
	status, _ = ts.do(t, http.MethodGet, "/api/admin/feature-flags", nil, memberToken)
	assert.Equal(t, http.StatusOK, status)

	status, env = ts.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/demote-admin", admin.ID), nil, adminToken)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.KindInvalidOperation, env.Kind)

	status, _ = ts.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/demote-admin", member.ID), nil, adminToken)
	require.Equal(t, http.StatusOK, status)
	status, _ = ts.do(t, http.MethodGet, "/api/admin/feature-flags", nil, memberToken)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestVerifyUser(t *testing.T) {
	ts := newTestServer(t, "")
	admin := testutil.CreateUser(t, ts.db, "root", true)
	seller := testutil.CreateUser(t, ts.db, "anil", false)

	status, env := ts.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/verify", seller.ID), nil, ts.tokenFor(t, admin))
	require.Equal(t, http.StatusOK, status)
	var verified models.User
	decodeData(t, env, &verified)
	assert.True(t, verified.IsVerified)
}

func TestGetUserActivity(t *testing.T) {
	ts := newTestServer(t, "")
	author := testutil.CreateUser(t, ts.db, "suman", false)
	token := ts.tokenFor(t, author)

	status, _ := ts.do(t, http.MethodPost, "/api/questions", map[string]interface{}{
		"title":    "Is a 30 year lease transferable?",
		"content":  "Bought a flat with a long lease, can I pass it on?",
		"category": models.CategoryLegal,
	}, token)
	require.Equal(t, http.StatusCreated, status)

	status, env := ts.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/activity?type=questions", author.ID), nil, "")
	require.Equal(t, http.StatusOK, status)
	var activity service.UserActivity
	decodeData(t, env, &activity)
	assert.Len(t, activity.Questions, 1)
	assert.Empty(t, activity.Answers)

	status, env = ts.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/activity?type=likes", author.ID), nil, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.KindValidation, env.Kind)
}
