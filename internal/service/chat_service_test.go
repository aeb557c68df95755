package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"estatehub/internal/models"
	"estatehub/internal/repository"
	"estatehub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// chatRepoStub is a stub for repository.ChatRepository.
type chatRepoStub struct {
	findByTripleFn    func(context.Context, uint, uint, uint) (*models.Conversation, error)
	createWithIntroFn func(context.Context, *models.Conversation, *models.Message) (bool, error)
	getConversationFn func(context.Context, uint) (*models.Conversation, error)
	createMessageFn   func(context.Context, *models.Conversation, *models.Message) error
}

func (s *chatRepoStub) FindByTriple(ctx context.Context, itemID, sellerID, buyerID uint) (*models.Conversation, error) {
	return s.findByTripleFn(ctx, itemID, sellerID, buyerID)
}
func (s *chatRepoStub) CreateWithIntro(ctx context.Context, conv *models.Conversation, intro *models.Message) (bool, error) {
	return s.createWithIntroFn(ctx, conv, intro)
}
func (s *chatRepoStub) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	return s.getConversationFn(ctx, id)
}
func (s *chatRepoStub) ListConversations(context.Context, uint) ([]*models.Conversation, error) {
	return nil, nil
}
func (s *chatRepoStub) ListActiveForItem(context.Context, uint) ([]*models.Conversation, error) {
	return nil, nil
}
func (s *chatRepoStub) Deactivate(context.Context, []uint) error { return nil }
func (s *chatRepoStub) ListMessages(context.Context, uint, repository.Page) ([]*models.Message, bool, error) {
	return nil, false, nil
}
func (s *chatRepoStub) CreateMessage(ctx context.Context, conv *models.Conversation, msg *models.Message) error {
	return s.createMessageFn(ctx, conv, msg)
}
func (s *chatRepoStub) MarkRead(context.Context, *models.Conversation, uint, time.Time) (int64, error) {
	return 0, nil
}
func (s *chatRepoStub) UnreadCount(context.Context, uint) (int64, error) { return 0, nil }

func noopChatRepo() *chatRepoStub {
	return &chatRepoStub{
		findByTripleFn: func(context.Context, uint, uint, uint) (*models.Conversation, error) {
			return nil, gorm.ErrRecordNotFound
		},
		createWithIntroFn: func(context.Context, *models.Conversation, *models.Message) (bool, error) { return true, nil },
		getConversationFn: func(_ context.Context, id uint) (*models.Conversation, error) {
			return &models.Conversation{ID: id, SellerID: 1, BuyerID: 2, IsActive: true}, nil
		},
		createMessageFn: func(context.Context, *models.Conversation, *models.Message) error { return nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, *models.User) error
	setAdminFn      func(context.Context, uint, bool) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) RoleOf(context.Context, uint) (models.Role, error) { return models.RoleUser, nil }
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) SetAdmin(ctx context.Context, id uint, admin bool) error {
	return s.setAdminFn(ctx, id, admin)
}
func (s *userRepoStub) SetVerified(context.Context, uint, bool) error { return nil }
func (s *userRepoStub) List(context.Context, string, repository.Page) ([]models.User, int64, error) {
	return nil, 0, nil
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Name: "Buyer"}, nil
		},
		getByEmailFn:    func(context.Context, string) (*models.User, error) { return nil, nil },
		getByUsernameFn: func(context.Context, string) (*models.User, error) { return nil, nil },
		createFn:        func(context.Context, *models.User) error { return nil },
		updateFn:        func(context.Context, *models.User) error { return nil },
		setAdminFn:      func(context.Context, uint, bool) error { return nil },
	}
}

type itemLookupStub func(context.Context, uint) (*models.ItemOwner, error)

func (f itemLookupStub) GetItemOwner(ctx context.Context, id uint) (*models.ItemOwner, error) {
	return f(ctx, id)
}

func ownedBy(ownerID uint) itemLookupStub {
	return func(context.Context, uint) (*models.ItemOwner, error) {
		return &models.ItemOwner{OwnerID: ownerID, Title: "Road bike"}, nil
	}
}

// recordingEvents captures realtime notifications.
type recordingEvents struct {
	mu       sync.Mutex
	messages []*models.Message
	reads    map[uint]int64
}

func (r *recordingEvents) MessageCreated(_ context.Context, _ *models.Conversation, msg *models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingEvents) ConversationRead(_ context.Context, _ *models.Conversation, readerID uint, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reads == nil {
		r.reads = map[uint]int64{}
	}
	r.reads[readerID] += count
}

func TestChatService_GetOrCreate_Validation(t *testing.T) {
	t.Parallel()

	t.Run("self messaging", func(t *testing.T) {
		t.Parallel()
		svc := NewChatService(noopChatRepo(), noopUserRepo(), ownedBy(7))
		_, err := svc.GetOrCreateConversation(context.Background(), 1, 7)
		assertKind(t, err, models.KindInvalidOperation)
	})

	t.Run("unknown item", func(t *testing.T) {
		t.Parallel()
		missing := itemLookupStub(func(context.Context, uint) (*models.ItemOwner, error) {
			return nil, gorm.ErrRecordNotFound
		})
		svc := NewChatService(noopChatRepo(), noopUserRepo(), missing)
		_, err := svc.GetOrCreateConversation(context.Background(), 1, 7)
		assertKind(t, err, models.KindNotFound)
	})

	t.Run("lookup failure is internal", func(t *testing.T) {
		t.Parallel()
		broken := itemLookupStub(func(context.Context, uint) (*models.ItemOwner, error) {
			return nil, errors.New("connection reset")
		})
		svc := NewChatService(noopChatRepo(), noopUserRepo(), broken)
		_, err := svc.GetOrCreateConversation(context.Background(), 1, 7)
		assertKind(t, err, models.KindInternal)
	})
}

func TestChatService_GetOrCreate_RaceReconciliation(t *testing.T) {
	t.Parallel()

	t.Run("lost insert returns the winner", func(t *testing.T) {
		t.Parallel()
		repo := noopChatRepo()
		calls := 0
		repo.findByTripleFn = func(context.Context, uint, uint, uint) (*models.Conversation, error) {
			calls++
			if calls == 1 {
				return nil, gorm.ErrRecordNotFound
			}
			return &models.Conversation{ID: 42}, nil
		}
		repo.createWithIntroFn = func(context.Context, *models.Conversation, *models.Message) (bool, error) {
			return false, nil
		}
		svc := NewChatService(repo, noopUserRepo(), ownedBy(1))
		conv, err := svc.GetOrCreateConversation(context.Background(), 5, 2)
		require.NoError(t, err)
		assert.Equal(t, uint(42), conv.ID)
	})

	t.Run("unique violation triggers refetch", func(t *testing.T) {
		t.Parallel()
		repo := noopChatRepo()
		calls := 0
		repo.findByTripleFn = func(context.Context, uint, uint, uint) (*models.Conversation, error) {
			calls++
			if calls == 1 {
				return nil, gorm.ErrRecordNotFound
			}
			return &models.Conversation{ID: 43}, nil
		}
		repo.createWithIntroFn = func(context.Context, *models.Conversation, *models.Message) (bool, error) {
			return false, errors.New(`ERROR: duplicate key value violates unique constraint "idx_conversations_triple" (SQLSTATE 23505)`)
		}
		svc := NewChatService(repo, noopUserRepo(), ownedBy(1))
		conv, err := svc.GetOrCreateConversation(context.Background(), 5, 2)
		require.NoError(t, err)
		assert.Equal(t, uint(43), conv.ID)
	})

	t.Run("failed refetch is a conflict", func(t *testing.T) {
		t.Parallel()
		repo := noopChatRepo()
		repo.createWithIntroFn = func(context.Context, *models.Conversation, *models.Message) (bool, error) {
			return false, gorm.ErrDuplicatedKey
		}
		svc := NewChatService(repo, noopUserRepo(), ownedBy(1))
		_, err := svc.GetOrCreateConversation(context.Background(), 5, 2)
		assertKind(t, err, models.KindConflict)
	})
}

type chatParties struct {
	seller *models.User
	buyer  *models.User
	item   *models.Listing
}

func (e *env) chatParties(t *testing.T) chatParties {
	t.Helper()
	seller := e.user(t, "sally")
	buyer := e.user(t, "bruno")
	return chatParties{seller: seller, buyer: buyer, item: testutil.CreateListing(t, e.db, seller.ID, "Road bike")}
}

// Buyer U1 contacts seller U2 about item X; U2 says hello; U1 reads it.
func TestChatService_ScenarioC(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.chatParties(t)

	c1, err := e.chat.GetOrCreateConversation(ctx, p.item.ID, p.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bruno is interested in your item: Road bike", c1.LastMessage)
	require.NotNil(t, c1.Item)
	assert.Equal(t, p.seller.ID, c1.SellerID)

	again, err := e.chat.GetOrCreateConversation(ctx, p.item.ID, p.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, c1.ID, again.ID)

	e.clock.Advance(time.Second)
	_, err = e.chat.SendMessage(ctx, SendMessageInput{ConversationID: c1.ID, SenderID: p.seller.ID, Body: "hello"})
	require.NoError(t, err)

	unread, err := e.chat.UnreadCount(ctx, p.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	e.clock.Advance(time.Second)
	page, err := e.chat.ListMessages(ctx, ListMessagesInput{ConversationID: c1.ID, RequesterID: p.buyer.ID})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, models.MessageSystem, page.Messages[0].MessageType)
	require.NotNil(t, page.Messages[0].SystemSubtype)
	assert.Equal(t, models.SystemJoin, *page.Messages[0].SystemSubtype)
	assert.Equal(t, "hello", page.Messages[1].Body)

	unread, err = e.chat.UnreadCount(ctx, p.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func TestChatService_UnreadAccounting(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.chatParties(t)
	conv, err := e.chat.GetOrCreateConversation(ctx, p.item.ID, p.buyer.ID)
	require.NoError(t, err)

	// the seller has the buyer's introduction waiting
	unread, err := e.chat.UnreadCount(ctx, p.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	const n = 4
	for i := 0; i < n; i++ {
		e.clock.Advance(time.Second)
		_, err := e.chat.SendMessage(ctx, SendMessageInput{ConversationID: conv.ID, SenderID: p.seller.ID, Body: "ping"})
		require.NoError(t, err)
	}
	unread, err = e.chat.UnreadCount(ctx, p.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), unread)

	convs, err := e.chat.ListConversations(ctx, p.buyer.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, n, convs[0].UnreadCount)
	assert.Equal(t, "ping", convs[0].LastMessage)

	e.clock.Advance(time.Second)
	marked, err := e.chat.MarkRead(ctx, conv.ID, p.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), marked)

	unread, err = e.chat.UnreadCount(ctx, p.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	// marking again inserts nothing new
	marked, err = e.chat.MarkRead(ctx, conv.ID, p.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), marked)
}

func TestChatService_ConcurrentFirstContact(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.chatParties(t)

	const workers = 8
	ids := make([]uint, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := e.chat.GetOrCreateConversation(ctx, p.item.ID, p.buyer.ID)
			if assert.NoError(t, err) {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	var convs, intros int64
	require.NoError(t, e.db.Model(&models.Conversation{}).Count(&convs).Error)
	require.NoError(t, e.db.Model(&models.Message{}).Where("message_type = ?", models.MessageSystem).Count(&intros).Error)
	assert.Equal(t, int64(1), convs)
	assert.Equal(t, int64(1), intros, "only the winning insert writes the introduction")
}

func TestChatService_ParticipantChecks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.chatParties(t)
	outsider := e.user(t, "oscar")
	conv, err := e.chat.GetOrCreateConversation(ctx, p.item.ID, p.buyer.ID)
	require.NoError(t, err)

	_, err = e.chat.ListMessages(ctx, ListMessagesInput{ConversationID: conv.ID, RequesterID: outsider.ID})
	assertKind(t, err, models.KindForbidden)

	_, err = e.chat.SendMessage(ctx, SendMessageInput{ConversationID: conv.ID, SenderID: outsider.ID, Body: "hi"})
	assertKind(t, err, models.KindForbidden)

	_, err = e.chat.ListMessages(ctx, ListMessagesInput{ConversationID: 9999, RequesterID: p.buyer.ID})
	assertKind(t, err, models.KindNotFound)

	_, err = e.chat.SendMessage(ctx, SendMessageInput{ConversationID: conv.ID, SenderID: p.buyer.ID, Body: "   "})
	assertKind(t, err, models.KindValidation)

	_, err = e.chat.SendMessage(ctx, SendMessageInput{ConversationID: conv.ID, SenderID: p.buyer.ID, Body: strings.Repeat("x", 1001)})
	assertKind(t, err, models.KindValidation)

	_, err = e.chat.GetOrCreateConversation(ctx, p.item.ID, p.seller.ID)
	assertKind(t, err, models.KindInvalidOperation)
}

func TestChatService_ListMessages_Pagination(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.chatParties(t)
	conv, err := e.chat.GetOrCreateConversation(ctx, p.item.ID, p.buyer.ID)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		e.clock.Advance(time.Second)
		_, err := e.chat.SendMessage(ctx, SendMessageInput{ConversationID: conv.ID, SenderID: p.buyer.ID, Body: string(rune('a' + i))})
		require.NoError(t, err)
	}

	first, err := e.chat.ListMessages(ctx, ListMessagesInput{ConversationID: conv.ID, RequesterID: p.seller.ID, Page: 1, Limit: 4})
	require.NoError(t, err)
	assert.True(t, first.Pagination.HasMore)
	require.Len(t, first.Messages, 4)
	assert.Equal(t, "b", first.Messages[0].Body)
	assert.Equal(t, "e", first.Messages[3].Body)

	second, err := e.chat.ListMessages(ctx, ListMessagesInput{ConversationID: conv.ID, RequesterID: p.seller.ID, Page: 2, Limit: 4})
	require.NoError(t, err)
	assert.False(t, second.Pagination.HasMore)
	require.Len(t, second.Messages, 2)
	assert.Equal(t, models.MessageSystem, second.Messages[0].MessageType)
}

func TestChatService_EventsFanOut(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.chatParties(t)
	events := &recordingEvents{}
	e.chat.SetEvents(events)

	conv, err := e.chat.GetOrCreateConversation(ctx, p.item.ID, p.buyer.ID)
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	_, err = e.chat.SendMessage(ctx, SendMessageInput{ConversationID: conv.ID, SenderID: p.buyer.ID, Body: "still available?", Transport: TransportWebSocket})
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	_, err = e.chat.MarkRead(ctx, conv.ID, p.seller.ID)
	require.NoError(t, err)

	require.Len(t, events.messages, 2)
	assert.Equal(t, "still available?", events.messages[1].Body)
	assert.Equal(t, int64(2), events.reads[p.seller.ID])
}

func TestChatService_ItemSoldAndDeleted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.chatParties(t)
	other := e.user(t, "olga")
	conv1, err := e.chat.GetOrCreateConversation(ctx, p.item.ID, p.buyer.ID)
	require.NoError(t, err)
	conv2, err := e.chat.GetOrCreateConversation(ctx, p.item.ID, other.ID)
	require.NoError(t, err)

	e.clock.Advance(time.Second)
	require.NoError(t, e.listings.MarkSold(ctx, p.item.ID, principal(p.seller)))

	for _, id := range []uint{conv1.ID, conv2.ID} {
		conv, err := e.chat.GetConversation(ctx, id, p.seller.ID)
		require.NoError(t, err)
		assert.Equal(t, "This item has been sold", conv.LastMessage)
		assert.True(t, conv.IsActive)
	}

	e.clock.Advance(time.Second)
	require.NoError(t, e.listings.Delete(ctx, p.item.ID, principal(p.seller)))

	convs, err := e.chat.ListConversations(ctx, p.seller.ID)
	require.NoError(t, err)
	assert.Empty(t, convs)

	var subtypes []string
	require.NoError(t, e.db.Model(&models.Message{}).
		Where("conversation_id = ? AND message_type = ?", conv1.ID, models.MessageSystem).
		Order("id ASC").Pluck("system_subtype", &subtypes).Error)
	assert.Equal(t, []string{"join", "item_sold", "item_unavailable"}, subtypes)

	// a deleted listing can no longer be contacted
	newcomer := e.user(t, "nina")
	_, err = e.chat.GetOrCreateConversation(ctx, p.item.ID, newcomer.ID)
	assertKind(t, err, models.KindNotFound)
}
