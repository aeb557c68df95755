package service

import (
	"errors"
	"os"
	"testing"
	"time"

	"estatehub/internal/middleware"
	"estatehub/internal/models"
	"estatehub/internal/observability"
	"estatehub/internal/repository"
	"estatehub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	_ = os.Setenv("APP_ENV", "test")
	observability.Config.EnableRepoLogging = false
	os.Exit(m.Run())
}

// assertKind asserts that err is an AppError of the given kind.
func assertKind(t *testing.T, err error, kind models.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, kind, appErr.Kind, "message: %s", appErr.Message)
}

// env wires every service over one SQLite database.
type env struct {
	db        *gorm.DB
	community *CommunityService
	chat      *ChatService
	listings  *ListingService
	tickets   *TicketService
	users     *UserService
	auth      *middleware.Authenticator
	clock     *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Millisecond)}

	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)
	auth := middleware.NewAuthenticator("test-secret-test-secret-test-secret", nil)

	community := NewCommunityService(
		repository.NewQuestionRepository(db),
		repository.NewAnswerRepository(db),
		repository.NewVoteRepository(db),
		repository.NewFlagRepository(db),
		nil,
	)
	community.now = clock.Now

	listings := NewListingService(listingRepo)
	chat := NewChatService(repository.NewChatRepository(db), userRepo, listings)
	chat.now = clock.Now
	listings.SetNotifier(chat)

	tickets := NewTicketService(repository.NewTicketRepository(db))
	tickets.now = clock.Now

	return &env{
		db:        db,
		community: community,
		chat:      chat,
		listings:  listings,
		tickets:   tickets,
		users:     NewUserService(userRepo, auth),
		auth:      auth,
		clock:     clock,
	}
}

func (e *env) user(t *testing.T, username string) *models.User {
	t.Helper()
	return testutil.CreateUser(t, e.db, username, false)
}

func (e *env) admin(t *testing.T, username string) *models.User {
	t.Helper()
	return testutil.CreateUser(t, e.db, username, true)
}

func principal(u *models.User) models.Principal {
	return models.Principal{ID: u.ID, Role: u.Role()}
}
