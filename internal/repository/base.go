// Package repository holds the GORM-backed persistence layer.
package repository

import (
	"estatehub/internal/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// readDB prefers the read replica for queries that tolerate replication lag.
func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// forUpdate adds a row lock. SQLite has no FOR UPDATE and serializes writers instead.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// Normalize applies the default limit and clamps to max.
func (p Page) Normalize(defaultLimit, max int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > max {
		p.Limit = max
	}
	return p
}

// Offset is the row offset of the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}
