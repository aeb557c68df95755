package seed

import (
	"context"
	"errors"
	"fmt"
	"log"

	"estatehub/internal/database"
	"estatehub/internal/models"
	"estatehub/internal/repository"
	"estatehub/internal/service"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	Users                   int
	ListingsPerUser         int
	Questions               int
	AnswersPerQuestion      int
	Conversations           int
	MessagesPerConversation int
	Tickets                 int

	// Password is shared by every seeded account.
	Password string
	// SkipBcrypt hashes at the minimum cost; for tests and throwaway databases.
	SkipBcrypt bool
	// Clean empties every table first.
	Clean bool
	// RandSeed fixes the generated content; zero is random.
	RandSeed int64
}

// DefaultOptions is a small but lively marketplace.
func DefaultOptions() Options {
	return Options{
		Users:                   20,
		ListingsPerUser:         2,
		Questions:               25,
		AnswersPerQuestion:      3,
		Conversations:           15,
		MessagesPerConversation: 4,
		Tickets:                 10,
		Password:                "password123",
	}
}

// Summary counts what a run created.
type Summary struct {
	Users         int
	Listings      int
	Questions     int
	Answers       int
	Votes         int
	Conversations int
	Messages      int
	Tickets       int
}

func (s Summary) String() string {
	return fmt.Sprintf("users=%d listings=%d questions=%d answers=%d votes=%d conversations=%d messages=%d tickets=%d",
		s.Users, s.Listings, s.Questions, s.Answers, s.Votes, s.Conversations, s.Messages, s.Tickets)
}

// Seeder writes demo data through the services so counters, sanitizing and
// system messages match what the API would produce.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory

	users     repository.UserRepository
	community *service.CommunityService
	listings  *service.ListingService
	chat      *service.ChatService
	tickets   *service.TicketService
}

// NewSeeder wires the services against db. Realtime events are not published.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	userRepo := repository.NewUserRepository(db)
	listings := service.NewListingService(repository.NewListingRepository(db))
	chat := service.NewChatService(repository.NewChatRepository(db), userRepo, listings)
	listings.SetNotifier(chat)

	return &Seeder{
		db:      db,
		opts:    opts,
		factory: NewFactory(opts.RandSeed),
		users:   userRepo,
		community: service.NewCommunityService(
			repository.NewQuestionRepository(db),
			repository.NewAnswerRepository(db),
			repository.NewVoteRepository(db),
			repository.NewFlagRepository(db),
			nil,
		),
		listings: listings,
		chat:     chat,
		tickets:  service.NewTicketService(repository.NewTicketRepository(db)),
	}
}

// ClearAll empties every persistent table.
func (s *Seeder) ClearAll() error {
	log.Println("clearing existing data...")
	return database.TruncateAllTables(s.db)
}

// Run seeds users first, then everything that hangs off them.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	if s.opts.Clean {
		if err := s.ClearAll(); err != nil {
			return nil, fmt.Errorf("clear: %w", err)
		}
	}
	if s.opts.Users < 2 {
		return nil, errors.New("at least two users are needed to seed interactions")
	}

	sum := &Summary{}
	users, err := s.SeedUsers(ctx, s.opts.Users)
	if err != nil {
		return nil, err
	}
	sum.Users = len(users)

	listings, err := s.SeedListings(ctx, users, s.opts.ListingsPerUser)
	if err != nil {
		return nil, err
	}
	sum.Listings = len(listings)

	if err := s.SeedCommunity(ctx, users, sum); err != nil {
		return nil, err
	}
	if err := s.SeedConversations(ctx, users, listings, sum); err != nil {
		return nil, err
	}
	if err := s.SeedTickets(ctx, users, sum); err != nil {
		return nil, err
	}

	log.Printf("seed complete: %s", sum)
	return sum, nil
}

// SeedUsers creates n accounts sharing one password. The first is an admin.
func (s *Seeder) SeedUsers(ctx context.Context, n int) ([]*models.User, error) {
	cost := bcrypt.DefaultCost
	if s.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	password := s.opts.Password
	if password == "" {
		password = DefaultOptions().Password
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		u := s.factory.User(string(hash))
		if i == 0 {
			u.IsAdmin = true
			u.IsVerified = true
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %s: %w", u.Username, err)
		}
		users = append(users, u)
	}
	log.Printf("created %d users", len(users))
	return users, nil
}

// SeedListings gives every user perUser listings.
func (s *Seeder) SeedListings(ctx context.Context, users []*models.User, perUser int) ([]*models.Listing, error) {
	var out []*models.Listing
	for _, u := range users {
		for i := 0; i < perUser; i++ {
			l, err := s.listings.Create(ctx, u.ID, s.factory.Listing())
			if err != nil {
				return nil, fmt.Errorf("create listing for %s: %w", u.Username, err)
			}
			out = append(out, l)
		}
	}
	log.Printf("created %d listings", len(out))
	return out, nil
}

// SeedCommunity posts questions, answers them and casts votes. Authors never
// vote on their own posts.
func (s *Seeder) SeedCommunity(ctx context.Context, users []*models.User, sum *Summary) error {
	f := s.factory
	for i := 0; i < s.opts.Questions; i++ {
		author := pick(f, users)
		q, err := s.community.CreateQuestion(ctx, f.Question(author.ID))
		if err != nil {
			return fmt.Errorf("create question: %w", err)
		}
		sum.Questions++

		for _, voter := range s.others(users, author.ID, f.Intn(4)) {
			vote := models.VoteUp
			if f.Chance(0.2) {
				vote = models.VoteDown
			}
			if _, err := s.community.VoteQuestion(ctx, q.ID, voter.ID, vote); err != nil {
				return fmt.Errorf("vote question %d: %w", q.ID, err)
			}
			sum.Votes++
		}

		answerers := s.others(users, author.ID, f.Intn(s.opts.AnswersPerQuestion+1))
		for j, answerer := range answerers {
			a, err := s.community.CreateAnswer(ctx, service.CreateAnswerInput{
				QuestionID: q.ID,
				AuthorID:   answerer.ID,
				Content:    f.Answer(),
			})
			if err != nil {
				return fmt.Errorf("create answer: %w", err)
			}
			sum.Answers++

			for _, voter := range s.others(users, answerer.ID, f.Intn(3)) {
				if _, err := s.community.VoteAnswer(ctx, a.ID, voter.ID, models.VoteUp); err != nil {
					return fmt.Errorf("vote answer %d: %w", a.ID, err)
				}
				sum.Votes++
			}
			if f.Chance(0.3) {
				if _, err := s.community.AddComment(ctx, a.ID, author.ID, f.Comment()); err != nil {
					return fmt.Errorf("comment on answer %d: %w", a.ID, err)
				}
			}
			if j == 0 && f.Chance(0.4) {
				if _, err := s.community.MarkBestAnswer(ctx, a.ID, author.ID); err != nil {
					return fmt.Errorf("mark best answer %d: %w", a.ID, err)
				}
			}
		}
	}
	log.Printf("created %d questions, %d answers, %d votes", sum.Questions, sum.Answers, sum.Votes)
	return nil
}

// SeedConversations opens buyer/seller threads on random listings and
// occasionally marks the listing sold afterwards.
func (s *Seeder) SeedConversations(ctx context.Context, users []*models.User, listings []*models.Listing, sum *Summary) error {
	if len(listings) == 0 {
		return nil
	}
	f := s.factory
	seen := make(map[uint]bool)
	for i := 0; i < s.opts.Conversations; i++ {
		item := pick(f, listings)
		candidates := s.others(users, item.OwnerID, 1)
		if len(candidates) == 0 {
			continue
		}
		buyer := candidates[0]

		conv, err := s.chat.GetOrCreateConversation(ctx, item.ID, buyer.ID)
		if err != nil {
			return fmt.Errorf("open conversation on listing %d: %w", item.ID, err)
		}
		if !seen[conv.ID] {
			seen[conv.ID] = true
			sum.Conversations++
		}

		for j := 0; j < s.opts.MessagesPerConversation; j++ {
			fromBuyer := j%2 == 0
			sender := conv.SellerID
			if fromBuyer {
				sender = conv.BuyerID
			}
			if _, err := s.chat.SendMessage(ctx, service.SendMessageInput{
				ConversationID: conv.ID,
				SenderID:       sender,
				Body:           f.ChatLine(fromBuyer),
			}); err != nil {
				return fmt.Errorf("send message in conversation %d: %w", conv.ID, err)
			}
			sum.Messages++
		}
		if f.Chance(0.5) {
			if _, err := s.chat.MarkRead(ctx, conv.ID, conv.SellerID); err != nil {
				return fmt.Errorf("mark read: %w", err)
			}
		}
		if item.Status == models.ListingActive && f.Chance(0.1) {
			if err := s.listings.MarkSold(ctx, item.ID, models.Principal{ID: item.OwnerID, Role: models.RoleUser}); err != nil {
				return fmt.Errorf("mark listing %d sold: %w", item.ID, err)
			}
			item.Status = models.ListingSold
		}
	}
	log.Printf("created %d conversations, %d messages", sum.Conversations, sum.Messages)
	return nil
}

// SeedTickets files support tickets and works some of them through the desk.
// The first user acts as the desk admin.
func (s *Seeder) SeedTickets(ctx context.Context, users []*models.User, sum *Summary) error {
	f := s.factory
	admin := models.Principal{ID: users[0].ID, Role: models.RoleAdmin}
	for i := 0; i < s.opts.Tickets; i++ {
		owner := pick(f, users)
		t, err := s.tickets.Submit(ctx, owner.ID, f.Ticket(owner))
		if err != nil {
			return fmt.Errorf("submit ticket: %w", err)
		}
		sum.Tickets++

		if !f.Chance(0.6) {
			continue
		}
		if _, err := s.tickets.Respond(ctx, t.ID, admin, "Thanks for reaching out, we are looking into it."); err != nil {
			return fmt.Errorf("respond to ticket %d: %w", t.ID, err)
		}
		if !f.Chance(0.5) {
			continue
		}
		resolved := models.TicketResolved
		if _, err := s.tickets.UpdateStatus(ctx, t.ID, admin, service.UpdateTicketInput{Status: &resolved}); err != nil {
			return fmt.Errorf("resolve ticket %d: %w", t.ID, err)
		}
		if f.Chance(0.5) {
			if _, err := s.tickets.Rate(ctx, t.ID, owner.ID, f.Rating(), ""); err != nil {
				return fmt.Errorf("rate ticket %d: %w", t.ID, err)
			}
		}
	}
	log.Printf("created %d tickets", sum.Tickets)
	return nil
}

// others picks up to n distinct users other than exclude.
func (s *Seeder) others(users []*models.User, exclude uint, n int) []*models.User {
	pool := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u.ID != exclude {
			pool = append(pool, u)
		}
	}
	for i := len(pool) - 1; i > 0; i-- {
		j := s.factory.Intn(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n]
}
