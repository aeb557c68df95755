package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

// next reads the next queued frame of c or fails after a short wait.
func next(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(testEventuallyTimeout):
		t.Fatalf("no frame for user %d", c.UserID)
		return nil
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected frame for user %d: %s", c.UserID, msg)
	case <-time.After(5 * testPollInterval):
	}
}

func TestHub_BroadcastReachesEveryConnectionOfUser(t *testing.T) {
	hub := NewHub()
	a, err := hub.Register(10, nil)
	require.NoError(t, err)
	b, err := hub.Register(10, nil)
	require.NoError(t, err)
	other, err := hub.Register(11, nil)
	require.NoError(t, err)

	hub.Broadcast(10, []byte(`{"type":"new_message"}`))

	assert.JSONEq(t, `{"type":"new_message"}`, string(next(t, a)))
	assert.JSONEq(t, `{"type":"new_message"}`, string(next(t, b)))
	assertNoFrame(t, other)
	_ = hub.Shutdown(context.Background())
}

func TestHub_UnregisterLastConnectionGoesOffline(t *testing.T) {
	hub := NewHub()
	a, err := hub.Register(15, nil)
	require.NoError(t, err)
	b, err := hub.Register(15, nil)
	require.NoError(t, err)

	hub.UnregisterClient(a)
	assert.True(t, hub.IsOnline(15))
	_, open := <-a.Send
	assert.False(t, open, "send queue is closed on unregister")

	hub.UnregisterClient(b)
	assert.False(t, hub.IsOnline(15))

	// unregistering twice is harmless
	hub.UnregisterClient(b)
	hub.Broadcast(15, []byte("late"))
}

func TestHub_PerUserConnectionLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(7, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(7, nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)

	_, err = hub.Register(8, nil)
	assert.NoError(t, err)
	_ = hub.Shutdown(context.Background())
	assert.False(t, hub.IsOnline(7))
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(3, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer; i++ {
		c.TrySend([]byte("x"))
	}
	c.TrySend([]byte("overflow"))
	assert.Len(t, c.Send, sendBuffer)

	hub.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("after close")) })
}
