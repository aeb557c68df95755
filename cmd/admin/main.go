// Package main provides account management utilities for EstateHub operators.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"estatehub/internal/cache"
	"estatehub/internal/config"
	"estatehub/internal/database"
	"estatehub/internal/models"
	"estatehub/internal/repository"
)

const usage = `Usage:
  go run ./cmd/admin promote <user_id|username>   - Promote user to admin
  go run ./cmd/admin demote <user_id|username>    - Demote user from admin
  go run ./cmd/admin verify <user_id|username>    - Mark user as verified
  go run ./cmd/admin list-admins                  - List all admins`

var errUsage = errors.New(usage)

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Role changes must drop cached roles.
	cache.InitRedis(cfg.RedisURL)

	if err := run(context.Background(), repository.NewUserRepository(db), os.Args[1:], os.Stdout); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, users repository.UserRepository, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "list-admins":
		return listAdmins(ctx, users, out)
	case "promote", "demote", "verify":
		if len(args) < 2 {
			return errUsage
		}
		user, err := lookup(ctx, users, args[1])
		if err != nil {
			return err
		}
		switch args[0] {
		case "promote":
			return setAdmin(ctx, users, user, true, out)
		case "demote":
			return setAdmin(ctx, users, user, false, out)
		default:
			return verify(ctx, users, user, out)
		}
	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
}

func lookup(ctx context.Context, users repository.UserRepository, ref string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if id, convErr := strconv.ParseUint(ref, 10, 64); convErr == nil {
		user, err = users.GetByID(ctx, uint(id))
	} else {
		user, err = users.GetByUsername(ctx, ref)
	}
	if err != nil {
		if models.KindOf(err) == models.KindNotFound {
			return nil, fmt.Errorf("user %s not found", ref)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", ref)
	}
	return user, nil
}

func setAdmin(ctx context.Context, users repository.UserRepository, user *models.User, admin bool, out io.Writer) error {
	if user.IsAdmin == admin {
		state := "already an admin"
		if !admin {
			state = "not an admin"
		}
		fmt.Fprintf(out, "User %s (ID: %d) is %s\n", user.Username, user.ID, state)
		return nil
	}
	if err := users.SetAdmin(ctx, user.ID, admin); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	verb := "promoted"
	if !admin {
		verb = "demoted"
	}
	fmt.Fprintf(out, "Successfully %s %s (ID: %d)\n", verb, user.Username, user.ID)
	return nil
}

func verify(ctx context.Context, users repository.UserRepository, user *models.User, out io.Writer) error {
	if user.IsVerified {
		fmt.Fprintf(out, "User %s (ID: %d) is already verified\n", user.Username, user.ID)
		return nil
	}
	if err := users.SetVerified(ctx, user.ID, true); err != nil {
		return fmt.Errorf("failed to verify user: %w", err)
	}
	fmt.Fprintf(out, "Successfully verified %s (ID: %d)\n", user.Username, user.ID)
	return nil
}

func listAdmins(ctx context.Context, users repository.UserRepository, out io.Writer) error {
	var admins []models.User
	for page := 1; ; page++ {
		batch, total, err := users.List(ctx, "", repository.Page{Page: page, Limit: 100})
		if err != nil {
			return fmt.Errorf("failed to fetch users: %w", err)
		}
		for _, u := range batch {
			if u.IsAdmin {
				admins = append(admins, u)
			}
		}
		if len(batch) == 0 || int64(page*100) >= total {
			break
		}
	}

	if len(admins) == 0 {
		fmt.Fprintln(out, "No admins found in the system")
		return nil
	}
	fmt.Fprintln(out, "Current admins:")
	for _, admin := range admins {
		fmt.Fprintf(out, "ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
	return nil
}
