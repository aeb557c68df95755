// Package testutil provides shared database fixtures for backend tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"estatehub/internal/database"
	"estatehub/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewSQLiteDB opens an isolated in-memory SQLite database with the full schema.
// The pool is pinned to one connection so every statement sees the same memory
// database; transactional code must route all queries through its tx.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// NewMockDB returns a GORM handle over sqlmock speaking the PostgreSQL dialect.
func NewMockDB(t testing.TB) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open gorm over sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db, mock
}

// CreateUser inserts a user with a unique username and email.
func CreateUser(t testing.TB, db *gorm.DB, username string, admin bool) *models.User {
	t.Helper()
	u := &models.User{
		Name:     strings.ToUpper(username[:1]) + username[1:],
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
		IsAdmin:  admin,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// CreateListing inserts an active item listing owned by ownerID.
func CreateListing(t testing.TB, db *gorm.DB, ownerID uint, title string) *models.Listing {
	t.Helper()
	l := &models.Listing{
		Kind:        models.ListingItem,
		Title:       title,
		Price:       100,
		Location:    "Kathmandu",
		Status:      models.ListingActive,
		IsAvailable: true,
		OwnerID:     ownerID,
	}
	if err := db.Create(l).Error; err != nil {
		t.Fatalf("create listing %s: %v", title, err)
	}
	return l
}
