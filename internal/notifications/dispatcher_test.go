package notifications

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"estatehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fanOut struct {
	hub     *Hub
	chatHub *ChatHub
	seller  *Client
	buyer   *Client
	inbox   *Client // buyer's notification socket
}

func newFanOut(t *testing.T) *fanOut {
	t.Helper()
	f := &fanOut{hub: NewHub(), chatHub: NewChatHub()}
	var err error
	f.seller, err = f.chatHub.Register(1, nil)
	require.NoError(t, err)
	f.buyer, err = f.chatHub.Register(2, nil)
	require.NoError(t, err)
	f.inbox, err = f.hub.Register(2, nil)
	require.NoError(t, err)
	f.chatHub.JoinConversation(1, 9)
	f.chatHub.JoinConversation(2, 9)
	return f
}

var testConv = &models.Conversation{ID: 9, SellerID: 1, BuyerID: 2}

func decode(t *testing.T, frame []byte) ChatEvent {
	t.Helper()
	var ev ChatEvent
	require.NoError(t, json.Unmarshal(frame, &ev))
	return ev
}

func TestDispatcher_InProcess(t *testing.T) {
	f := newFanOut(t)
	d := NewDispatcher(f.hub, f.chatHub, NewNotifier(nil))
	ctx := context.Background()

	d.MessageCreated(ctx, testConv, &models.Message{ID: 5, ConversationID: 9, SenderID: 1, Body: "hello", MessageType: models.MessageText})

	for _, c := range []*Client{f.seller, f.buyer} {
		ev := decode(t, next(t, c))
		assert.Equal(t, EventMessage, ev.Type)
		assert.Equal(t, uint(1), ev.UserID)
	}
	note := decode(t, next(t, f.inbox))
	assert.Equal(t, EventNewMessage, note.Type)
	assert.Equal(t, "hello", note.Payload.(map[string]interface{})["preview"])

	d.ConversationRead(ctx, testConv, 2, 1)
	ev := decode(t, next(t, f.seller))
	assert.Equal(t, EventRead, ev.Type)
	assert.Equal(t, uint(2), ev.UserID)

	d.Typing(ctx, 9, 2, true)
	ev = decode(t, next(t, f.buyer))
	assert.Equal(t, EventRead, ev.Type)
	ev = decode(t, next(t, f.buyer))
	assert.Equal(t, EventTyping, ev.Type)
}

func TestDispatcher_ThroughRedis(t *testing.T) {
	f := newFanOut(t)
	n, _ := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.hub.StartWiring(ctx, n))
	require.NoError(t, f.chatHub.StartWiring(ctx, n))
	d := NewDispatcher(f.hub, f.chatHub, n)

	d.MessageCreated(ctx, testConv, &models.Message{ID: 6, ConversationID: 9, SenderID: 1, Body: strings.Repeat("é", 150), MessageType: models.MessageText})

	ev := decode(t, next(t, f.buyer))
	assert.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, uint(9), ev.ConversationID)

	note := decode(t, next(t, f.inbox))
	assert.Equal(t, EventNewMessage, note.Type)
	preview := note.Payload.(map[string]interface{})["preview"].(string)
	assert.Equal(t, previewLength+1, len([]rune(preview)))

	// delivered once, not once per path
	next(t, f.seller)
	assertNoFrame(t, f.seller)
	assertNoFrame(t, f.buyer)
}

func TestDispatcher_SystemNoticeGoesToBuyer(t *testing.T) {
	f := newFanOut(t)
	sellerInbox, err := f.hub.Register(1, nil)
	require.NoError(t, err)
	d := NewDispatcher(f.hub, f.chatHub, nil)

	sold := models.SystemItemSold
	d.MessageCreated(context.Background(), testConv, &models.Message{
		ID: 7, ConversationID: 9, SenderID: 1, Body: "This item has been sold",
		MessageType: models.MessageSystem, SystemSubtype: &sold,
	})
	assert.Equal(t, EventNewMessage, decode(t, next(t, f.inbox)).Type)
	assertNoFrame(t, sellerInbox)
}
