// Command main runs the database seeder for EstateHub.
package main

import (
	"context"
	"flag"
	"log"

	"estatehub/internal/config"
	"estatehub/internal/database"
	"estatehub/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	opts := defaults

	flag.IntVar(&opts.Users, "users", defaults.Users, "Number of users to create")
	flag.IntVar(&opts.ListingsPerUser, "listings", defaults.ListingsPerUser, "Listings per user")
	flag.IntVar(&opts.Questions, "questions", defaults.Questions, "Number of community questions")
	flag.IntVar(&opts.AnswersPerQuestion, "answers", defaults.AnswersPerQuestion, "Maximum answers per question")
	flag.IntVar(&opts.Conversations, "conversations", defaults.Conversations, "Number of buyer/seller conversations")
	flag.IntVar(&opts.MessagesPerConversation, "messages", defaults.MessagesPerConversation, "Messages per conversation")
	flag.IntVar(&opts.Tickets, "tickets", defaults.Tickets, "Number of support tickets")
	flag.StringVar(&opts.Password, "password", defaults.Password, "Password shared by every seeded user")
	flag.BoolVar(&opts.Clean, "clean", true, "Clean database before seeding")
	flag.BoolVar(&opts.SkipBcrypt, "fast-hash", false, "Hash the shared password at minimum bcrypt cost")
	flag.Int64Var(&opts.RandSeed, "rand-seed", 0, "Fix generated content (0 is random)")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d users, %d listings each, %d questions, %d conversations, %d tickets, clean=%v",
		opts.Users, opts.ListingsPerUser, opts.Questions, opts.Conversations, opts.Tickets, opts.Clean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if _, err := seed.NewSeeder(db, opts).Run(context.Background()); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("All done! Your database is now populated with demo data.")
	log.Printf("All seeded users have the password: %s", opts.Password)
}
