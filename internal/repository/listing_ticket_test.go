package repository

import (
	"context"
	"encoding/json"
	"testing"

	"estatehub/internal/models"
	"estatehub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestListingFiltersAndOwnerLookup(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner", false)

	flat := &models.Listing{Kind: models.ListingResidential, Title: "Sunny flat", Price: 1200, Location: "Lalitpur", City: "Lalitpur",
		Status: models.ListingActive, IsAvailable: true, OwnerID: owner.ID, Attributes: map[string]interface{}{"bedrooms": 2}}
	shop := &models.Listing{Kind: models.ListingCommercial, Title: "Corner shop", Price: 5000, Location: "Thamel", City: "Kathmandu",
		Status: models.ListingActive, IsAvailable: true, OwnerID: owner.ID}
	require.NoError(t, repo.Create(ctx, flat))
	require.NoError(t, repo.Create(ctx, shop))

	max := 2000.0
	cheap, total, err := repo.List(ctx, ListingFilter{MaxPrice: &max}, Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, flat.ID, cheap[0].ID)
	assert.Equal(t, json.Number("2"), cheap[0].Attributes["bedrooms"])

	byCity, _, err := repo.List(ctx, ListingFilter{City: "kathmandu"}, Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, byCity, 1)
	assert.Equal(t, shop.ID, byCity[0].ID)

	owned, err := repo.GetItemOwner(ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, owned.OwnerID)
	assert.Equal(t, "Corner shop", owned.Title)

	require.NoError(t, repo.Delete(ctx, shop.ID))
	_, err = repo.GetItemOwner(ctx, shop.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTicketCounts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "user", false)

	mk := func(status models.TicketStatus, priority models.TicketPriority, category models.TicketCategory) {
		require.NoError(t, repo.Create(ctx, &models.Ticket{UserID: user.ID, Name: "U", Email: "u@example.com",
			Subject: "s", Message: "m", Status: status, Priority: priority, Category: category}))
	}
	mk(models.TicketPending, models.PriorityUrgent, models.TicketBilling)
	mk(models.TicketInProgress, models.PriorityLow, models.TicketBilling)
	mk(models.TicketResolved, models.PriorityUrgent, models.TicketTechnical)

	byStatus, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), byStatus[string(models.TicketPending)])
	assert.Equal(t, int64(1), byStatus[string(models.TicketResolved)])

	byCategory, err := repo.CountBy(ctx, "category")
	require.NoError(t, err)
	assert.Equal(t, int64(2), byCategory[string(models.TicketBilling)])

	urgent, err := repo.CountUrgentOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), urgent)

	_, err = repo.CountBy(ctx, "email")
	assert.Error(t, err)

	mine, total, err := repo.List(ctx, TicketFilter{UserID: user.ID, Priority: models.PriorityUrgent}, Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, mine, 2)
}
