package database_test

import (
	"testing"

	"estatehub/internal/database"
	"estatehub/internal/models"
	"estatehub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableNames_FollowRegistry(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	names, err := database.TableNames(db)
	require.NoError(t, err)
	require.Len(t, names, len(database.PersistentModels()))
	assert.Equal(t, "users", names[0])
	assert.Contains(t, names, "votes")
	assert.Contains(t, names, "message_reads")
}

func TestTruncateAllTables_SQLite(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	seller := testutil.CreateUser(t, db, "seller", false)
	testutil.CreateListing(t, db, seller.ID, "Bookshelf")

	require.NoError(t, database.TruncateAllTables(db))

	var users, listings int64
	require.NoError(t, db.Model(&models.User{}).Unscoped().Count(&users).Error)
	require.NoError(t, db.Model(&models.Listing{}).Unscoped().Count(&listings).Error)
	assert.Zero(t, users)
	assert.Zero(t, listings)
}
