package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"estatehub/internal/models"
	"estatehub/internal/notifications"
	"estatehub/internal/testutil"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsEvent struct {
	Type           string          `json:"type"`
	ConversationID uint            `json:"conversation_id"`
	UserID         uint            `json:"user_id"`
	Payload        json.RawMessage `json:"payload"`
}

// listen serves the app on a loopback port with the hubs wired to miniredis
// and returns the ws:// base URL.
func (ts *testServer) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ts.app.Listener(ln) }()
	t.Cleanup(func() { _ = ts.app.Shutdown() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	for _, h := range ts.hubs {
		require.NoError(t, h.StartWiring(ctx, ts.notifier))
	}
	return "ws://" + ln.Addr().String()
}

func dialWS(t *testing.T, url, token string) *gws.Conn {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := gws.DefaultDialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitForEvent reads frames until one of the wanted type arrives.
func waitForEvent(t *testing.T, conn *gws.Conn, eventType string) wsEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev), "waiting for %q", eventType)
		if ev.Type == eventType {
			return ev
		}
	}
}

func sendFrame(t *testing.T, conn *gws.Conn, frame map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

type chatFixture struct {
	ts          *testServer
	base        string
	seller      *models.User
	buyer       *models.User
	sellerToken string
	buyerToken  string
	conv        models.Conversation
}

func newChatFixture(t *testing.T, flags string) *chatFixture {
	t.Helper()
	ts := newTestServer(t, flags)
	f := &chatFixture{ts: ts}
	f.seller = testutil.CreateUser(t, ts.db, "seller", false)
	f.buyer = testutil.CreateUser(t, ts.db, "buyer", false)
	f.sellerToken = ts.tokenFor(t, f.seller)
	f.buyerToken = ts.tokenFor(t, f.buyer)
	item := testutil.CreateListing(t, ts.db, f.seller.ID, "Dining set")

	status, env := ts.do(t, http.MethodPost, "/api/conversations", map[string]uint{"item_id": item.ID}, f.buyerToken)
	require.Equal(t, http.StatusOK, status, env.Message)
	decodeData(t, env, &f.conv)

	f.base = ts.listen(t)
	return f
}

func TestWebSocketChat_JoinAndReceiveMessages(t *testing.T) {
	f := newChatFixture(t, "")

	sellerConn := dialWS(t, f.base+"/api/ws/chat", f.sellerToken)
	connected := waitForEvent(t, sellerConn, notifications.EventConnected)
	assert.Equal(t, f.seller.ID, connected.UserID)

	sendFrame(t, sellerConn, map[string]interface{}{"type": "join", "conversation_id": f.conv.ID})
	joined := waitForEvent(t, sellerConn, notifications.EventJoined)
	assert.Equal(t, f.conv.ID, joined.ConversationID)

	// A message sent over HTTP reaches the watching seller.
	status, _ := f.ts.do(t, http.MethodPost, fmt.Sprintf("/api/conversations/%d/messages", f.conv.ID),
		map[string]string{"body": "Does it include the chairs?"}, f.buyerToken)
	require.Equal(t, http.StatusCreated, status)

	ev := waitForEvent(t, sellerConn, notifications.EventMessage)
	assert.Equal(t, f.conv.ID, ev.ConversationID)
	var msg models.Message
	require.NoError(t, json.Unmarshal(ev.Payload, &msg))
	assert.Equal(t, "Does it include the chairs?", msg.Body)
	assert.Equal(t, f.buyer.ID, msg.SenderID)
}

func TestWebSocketChat_SendOverSocketNotifiesRecipient(t *testing.T) {
	f := newChatFixture(t, "")

	// The seller is not watching the conversation, only the notification stream.
	notifyConn := dialWS(t, f.base+"/api/ws", f.sellerToken)
	require.Eventually(t, func() bool { return f.ts.hub.IsOnline(f.seller.ID) }, 2*time.Second, 10*time.Millisecond)

	buyerConn := dialWS(t, f.base+"/api/ws/chat", f.buyerToken)
	waitForEvent(t, buyerConn, notifications.EventConnected)
	sendFrame(t, buyerConn, map[string]interface{}{"type": "join", "conversation_id": f.conv.ID})
	waitForEvent(t, buyerConn, notifications.EventJoined)

	sendFrame(t, buyerConn, map[string]interface{}{
		"type": "message", "conversation_id": f.conv.ID, "body": "Can I see it on Saturday?",
	})

	// The sender is watching, so the message echoes back.
	echo := waitForEvent(t, buyerConn, notifications.EventMessage)
	var msg models.Message
	require.NoError(t, json.Unmarshal(echo.Payload, &msg))
	assert.Equal(t, "Can I see it on Saturday?", msg.Body)

	notice := waitForEvent(t, notifyConn, notifications.EventNewMessage)
	var payload struct {
		ConversationID uint   `json:"conversation_id"`
		SenderID       uint   `json:"sender_id"`
		Preview        string `json:"preview"`
	}
	require.NoError(t, json.Unmarshal(notice.Payload, &payload))
	assert.Equal(t, f.conv.ID, payload.ConversationID)
	assert.Equal(t, f.buyer.ID, payload.SenderID)
	assert.Equal(t, "Can I see it on Saturday?", payload.Preview)

	status, env := f.ts.do(t, http.MethodGet, "/api/messages/unread-count", nil, f.sellerToken)
	require.Equal(t, http.StatusOK, status)
	var unread struct {
		Count int64 `json:"count"`
	}
	decodeData(t, env, &unread)
	assert.EqualValues(t, 2, unread.Count)
}

func TestWebSocketChat_TypingAndRead(t *testing.T) {
	f := newChatFixture(t, "")

	sellerConn := dialWS(t, f.base+"/api/ws/chat", f.sellerToken)
	waitForEvent(t, sellerConn, notifications.EventConnected)
	sendFrame(t, sellerConn, map[string]interface{}{"type": "join", "conversation_id": f.conv.ID})
	waitForEvent(t, sellerConn, notifications.EventJoined)

	buyerConn := dialWS(t, f.base+"/api/ws/chat", f.buyerToken)
	waitForEvent(t, buyerConn, notifications.EventConnected)
	sendFrame(t, buyerConn, map[string]interface{}{"type": "join", "conversation_id": f.conv.ID})
	waitForEvent(t, buyerConn, notifications.EventJoined)

	sendFrame(t, buyerConn, map[string]interface{}{"type": "typing", "conversation_id": f.conv.ID, "is_typing": true})
	typing := waitForEvent(t, sellerConn, notifications.EventTyping)
	assert.Equal(t, f.buyer.ID, typing.UserID)

	// The seller reads the buyer's join notice.
	sendFrame(t, sellerConn, map[string]interface{}{"type": "read", "conversation_id": f.conv.ID})
	read := waitForEvent(t, buyerConn, notifications.EventRead)
	assert.Equal(t, f.seller.ID, read.UserID)
}

func TestWebSocketChat_Errors(t *testing.T) {
	f := newChatFixture(t, "")
	outsider := testutil.CreateUser(t, f.ts.db, "outsider", false)

	conn := dialWS(t, f.base+"/api/ws/chat", f.ts.tokenFor(t, outsider))
	waitForEvent(t, conn, notifications.EventConnected)

	errorKind := func(ev wsEvent) models.ErrorKind {
		var payload struct {
			Kind models.ErrorKind `json:"kind"`
		}
		require.NoError(t, json.Unmarshal(ev.Payload, &payload))
		return payload.Kind
	}

	sendFrame(t, conn, map[string]interface{}{"type": "join", "conversation_id": f.conv.ID})
	assert.Equal(t, models.KindForbidden, errorKind(waitForEvent(t, conn, notifications.EventError)))

	sendFrame(t, conn, map[string]interface{}{"type": "message", "conversation_id": f.conv.ID, "body": "let me in"})
	assert.Equal(t, models.KindForbidden, errorKind(waitForEvent(t, conn, notifications.EventError)))

	sendFrame(t, conn, map[string]interface{}{"type": "join"})
	assert.Equal(t, models.KindValidation, errorKind(waitForEvent(t, conn, notifications.EventError)))

	sendFrame(t, conn, map[string]interface{}{"type": "dance", "conversation_id": f.conv.ID})
	assert.Equal(t, models.KindValidation, errorKind(waitForEvent(t, conn, notifications.EventError)))

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte("{not json")))
	assert.Equal(t, models.KindValidation, errorKind(waitForEvent(t, conn, notifications.EventError)))
}

func TestWebSocketChat_HandshakeRejections(t *testing.T) {
	t.Run("no credentials", func(t *testing.T) {
		f := newChatFixture(t, "")
		_, resp, err := gws.DefaultDialer.Dial(f.base+"/api/ws/chat", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("feature disabled", func(t *testing.T) {
		f := newChatFixture(t, "realtime_chat=off")
		_, resp, err := gws.DefaultDialer.Dial(f.base+"/api/ws/chat", http.Header{"Authorization": {"Bearer " + f.buyerToken}})
		require.Error(t, err)
		require.NotNil(t, resp)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		// The notification stream stays available.
		dialWS(t, f.base+"/api/ws", f.buyerToken)
	})

	t.Run("plain http", func(t *testing.T) {
		ts := newTestServer(t, "")
		u := testutil.CreateUser(t, ts.db, "curl", false)
		status, _ := ts.do(t, http.MethodGet, "/api/ws/chat", nil, ts.tokenFor(t, u))
		assert.Equal(t, http.StatusUpgradeRequired, status)
	})
}
