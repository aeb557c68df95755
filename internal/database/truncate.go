package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// TableNames resolves the table of every persistent model, in registry order.
func TableNames(db *gorm.DB) ([]string, error) {
	names := make([]string, 0, len(PersistentModels()))
	for _, m := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("parse %T: %w", m, err)
		}
		names = append(names, stmt.Schema.Table)
	}
	return names, nil
}

// TruncateAllTables empties every persistent table. On PostgreSQL identity
// sequences restart; other dialects delete children before parents.
func TruncateAllTables(db *gorm.DB) error {
	names, err := TableNames(db)
	if err != nil {
		return err
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = db.Statement.Quote(n)
	}

	if isPostgres(db) {
		return db.Exec("TRUNCATE TABLE " + strings.Join(quoted, ", ") + " RESTART IDENTITY CASCADE").Error
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for i := len(quoted) - 1; i >= 0; i-- {
			if err := tx.Exec("DELETE FROM " + quoted[i]).Error; err != nil {
				return fmt.Errorf("clear %s: %w", names[i], err)
			}
		}
		return nil
	})
}
