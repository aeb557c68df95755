// Package notifications delivers realtime chat and user notifications over WebSockets.
package notifications

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"estatehub/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix         = "notifications:user:"
	conversationChannelPrefix = "chat:conv:"
)

// Notifier publishes events into Redis channels and subscribes hubs to them.
// A Notifier without a Redis client publishes nothing.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether events travel through Redis.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishUser sends a payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload []byte) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishConversation sends a payload to everyone watching a conversation.
func (n *Notifier) PublishConversation(ctx context.Context, conversationID uint, payload []byte) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, ConversationChannel(conversationID), payload).Err()
}

// StartUserSubscriber subscribes to every user channel.
func (n *Notifier) StartUserSubscriber(ctx context.Context, onMessage func(userID uint, payload []byte)) error {
	return n.subscribe(ctx, userChannelPrefix, onMessage)
}

// StartConversationSubscriber subscribes to every conversation channel.
func (n *Notifier) StartConversationSubscriber(ctx context.Context, onMessage func(conversationID uint, payload []byte)) error {
	return n.subscribe(ctx, conversationChannelPrefix, onMessage)
}

// subscribe waits for the pattern subscription to be confirmed, then delivers
// messages until ctx is done.
func (n *Notifier) subscribe(ctx context.Context, prefix string, onMessage func(id uint, payload []byte)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, prefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s*: %w", prefix, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				id, ok := parseChannelID(msg.Channel, prefix)
				if !ok {
					observability.GlobalLogger.WarnContext(ctx, "invalid notification channel", "channel", msg.Channel)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.ErrorContext(ctx, "panic in subscriber",
								"channel", msg.Channel, "panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(id, []byte(msg.Payload))
				}()
			}
		}
	}()
	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ConversationChannel derives the Redis channel name for a conversation.
func ConversationChannel(conversationID uint) string {
	return conversationChannelPrefix + strconv.FormatUint(uint64(conversationID), 10)
}

func parseChannelID(channel, prefix string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, prefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
