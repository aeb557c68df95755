package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserRoleKeyPrefix     = "user:%d:role"
	UserProfileKeyPrefix  = "user:%d:profile"
	ListingKeyPrefix      = "listing:%d"
	UserActivityKeyPrefix = "user:%d:activity"
	CommunityStatsKey     = "stats:community"
	TicketStatsKey        = "stats:tickets"
)

const (
	UserRoleTTL     = 5 * time.Minute
	UserProfileTTL  = 5 * time.Minute
	ListingTTL      = 10 * time.Minute
	UserActivityTTL = 2 * time.Minute
	StatsTTL        = 2 * time.Minute
)

func UserRoleKey(userID uint) string {
	return fmt.Sprintf(UserRoleKeyPrefix, userID)
}

func UserProfileKey(userID uint) string {
	return fmt.Sprintf(UserProfileKeyPrefix, userID)
}

func ListingKey(listingID uint) string {
	return fmt.Sprintf(ListingKeyPrefix, listingID)
}

func UserActivityKey(userID uint) string {
	return fmt.Sprintf(UserActivityKeyPrefix, userID)
}

// Invalidate deletes keys, ignoring a missing client.
func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserRoleKey(userID), UserProfileKey(userID), UserActivityKey(userID))
}

func InvalidateListing(ctx context.Context, listingID uint) {
	Invalidate(ctx, ListingKey(listingID))
}

// InvalidateCommunity drops aggregate Q&A caches after a write.
func InvalidateCommunity(ctx context.Context, authorIDs ...uint) {
	keys := []string{CommunityStatsKey}
	for _, id := range authorIDs {
		keys = append(keys, UserActivityKey(id))
	}
	Invalidate(ctx, keys...)
}

func InvalidateTickets(ctx context.Context) {
	Invalidate(ctx, TicketStatsKey)
}
