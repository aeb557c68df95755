// Command migrate runs schema operations for the backend.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"estatehub/internal/config"
	"estatehub/internal/database"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/gorm"
)

const usageText = "usage: go run ./cmd/migrate <up|auto|status|down <version>|tables|columns <table>|truncate|reset|createdb>"

var errUsage = errors.New(usageText)

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		log.Fatal(errUsage)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// createdb runs before the target database exists.
	if flag.Arg(0) == "createdb" {
		if err := createDatabaseFromConfig(context.Background(), cfg, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	if err := run(context.Background(), db, cfg, flag.Args(), os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Println("sql migrations applied")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Println("automigrations applied")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		fmt.Fprintf(out, "mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d\n", status.Mode, status.Environment, status.WillRunSQL, status.WillRunAutoMigrate, len(status.AppliedVersions), len(status.PendingMigrations))
		for _, m := range status.PendingMigrations {
			fmt.Fprintf(out, "pending: %06d_%s\n", m.Version, m.Name)
		}
	case "down":
		if len(args) < 2 {
			return errUsage
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Printf("rolled back migration %d", version)
	case "tables":
		return printTables(ctx, db, out)
	case "columns":
		if len(args) < 2 {
			return errUsage
		}
		return printColumns(db, args[1], out)
	case "truncate":
		if cfg.IsProduction() {
			return errors.New("refusing to truncate a production database")
		}
		if err := database.TruncateAllTables(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
		log.Println("all tables truncated")
	case "reset":
		return resetSchema(ctx, db, cfg)
	default:
		return errUsage
	}
	return nil
}

// printTables lists every schema-managed table with its row count.
func printTables(ctx context.Context, db *gorm.DB, out io.Writer) error {
	names, err := database.TableNames(db)
	if err != nil {
		return err
	}
	for _, name := range names {
		if !db.Migrator().HasTable(name) {
			fmt.Fprintf(out, "%-20s missing\n", name)
			continue
		}
		var count int64
		if err := db.WithContext(ctx).Table(name).Count(&count).Error; err != nil {
			return fmt.Errorf("count %s: %w", name, err)
		}
		fmt.Fprintf(out, "%-20s %d rows\n", name, count)
	}
	return nil
}

func printColumns(db *gorm.DB, table string, out io.Writer) error {
	if !db.Migrator().HasTable(table) {
		return fmt.Errorf("table %s does not exist", table)
	}
	cols, err := db.Migrator().ColumnTypes(table)
	if err != nil {
		return fmt.Errorf("column types for %s: %w", table, err)
	}
	fmt.Fprintf(out, "Columns in %s:\n", table)
	for _, c := range cols {
		nullable, _ := c.Nullable()
		fmt.Fprintf(out, " - %s: %s nullable=%t\n", c.Name(), c.DatabaseTypeName(), nullable)
	}
	return nil
}

// resetSchema drops and recreates the public schema. PostgreSQL only.
func resetSchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	if cfg.IsProduction() {
		return errors.New("refusing to reset a production database")
	}
	if db.Dialector.Name() != "postgres" {
		return fmt.Errorf("reset is not supported on %s", db.Dialector.Name())
	}
	if err := db.WithContext(ctx).Exec("DROP SCHEMA public CASCADE; CREATE SCHEMA public;").Error; err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	if err := db.WithContext(ctx).Exec("GRANT ALL ON SCHEMA public TO public;").Error; err != nil {
		return fmt.Errorf("grant schema permissions: %w", err)
	}
	log.Println("public schema reset")
	return nil
}

// createDatabaseFromConfig connects to the maintenance database with the pgx
// stdlib driver and creates cfg.DBName when it is missing.
func createDatabaseFromConfig(ctx context.Context, cfg *config.Config, out io.Writer) error {
	maintenance := *cfg
	maintenance.DBName = "postgres"
	sqlDB, err := sql.Open("pgx", database.DSN(&maintenance))
	if err != nil {
		return fmt.Errorf("open maintenance database: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()
	return createDatabase(ctx, sqlDB, cfg.DBName, out)
}

func createDatabase(ctx context.Context, sqlDB *sql.DB, name string, out io.Writer) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("database name is empty")
	}
	var exists bool
	if err := sqlDB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists); err != nil {
		return fmt.Errorf("check database %s: %w", name, err)
	}
	if exists {
		fmt.Fprintf(out, "database %s already exists\n", name)
		return nil
	}
	if _, err := sqlDB.ExecContext(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	fmt.Fprintf(out, "database %s created\n", name)
	return nil
}
