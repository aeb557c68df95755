// Package seed provides helpers to create demo data for development and
// testing. Nothing here runs in production.
package seed

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"estatehub/internal/models"
	"estatehub/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	listingKinds = []models.ListingKind{
		models.ListingResidential,
		models.ListingCommercial,
		models.ListingProperty,
		models.ListingItem,
	}

	listingCategories = map[models.ListingKind][]string{
		models.ListingResidential: {"house", "apartment", "flat", "room"},
		models.ListingCommercial:  {"office", "shop", "warehouse", "restaurant space"},
		models.ListingProperty:    {"land", "plot", "farmland"},
		models.ListingItem:        {"sofa", "dining table", "refrigerator", "scooter", "laptop", "bookshelf"},
	}

	itemConditions = []string{"new", "like-new", "good", "fair"}

	questionTemplates = map[models.QuestionCategory][]string{
		models.CategoryPropertyBuying:  {"What should I check before buying a flat in %s?", "Is it a good time to buy land near %s?"},
		models.CategoryPropertySelling: {"How do I price my house in %s?", "Which documents do I need to sell property in %s?"},
		models.CategoryRental:          {"What is a fair rent for a 2BHK in %s?", "Can a landlord in %s keep the whole deposit?"},
		models.CategoryInvestment:      {"Are commercial shops in %s still a good investment?"},
		models.CategoryLegal:           {"How long does land registration take in %s?"},
		models.CategoryFinancing:       {"Which banks give home loans for property in %s?"},
		models.CategoryMaintenance:     {"Who fixes seepage problems in older houses around %s?"},
		models.CategoryMarketTrends:    {"Have prices in %s gone up this year?"},
		models.CategoryGeneral:         {"Any advice for someone moving to %s?"},
	}

	chatOpeners = []string{
		"Is this still available?",
		"What is your best price?",
		"Can I come and see it this weekend?",
		"Is the price negotiable?",
	}

	chatReplies = []string{
		"Yes, it is still available.",
		"I can go a little lower for a quick sale.",
		"Saturday morning works for me.",
		"Sure, send me a message when you are nearby.",
	}

	ticketCategories = []models.TicketCategory{
		models.TicketGeneral, models.TicketProperty, models.TicketItem,
		models.TicketTechnical, models.TicketBilling, models.TicketComplaint,
	}

	ticketPriorities = []models.TicketPriority{
		models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent,
	}
)

// Factory builds randomized domain inputs. It never touches the database, so
// the same seed always produces the same inputs.
type Factory struct {
	faker *gofakeit.Faker
	seq   int
}

// NewFactory returns a factory seeded with seed; zero picks a time-based seed.
func NewFactory(seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{faker: gofakeit.New(seed)}
}

// Intn returns a number in [0, n).
func (f *Factory) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

// Chance reports true with probability p.
func (f *Factory) Chance(p float64) bool {
	return f.faker.Float64Range(0, 1) < p
}

func pick[T any](f *Factory, items []T) T {
	return items[f.Intn(len(items))]
}

// User builds an account with a unique username. The caller supplies the
// password hash so one bcrypt run serves a whole batch.
func (f *Factory) User(passwordHash string) *models.User {
	f.seq++
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := fmt.Sprintf("%s_%s%d", slug(first), slug(last), f.seq)
	if len(username) > 50 {
		username = fmt.Sprintf("user%d", f.seq)
	}
	return &models.User{
		Name:       first + " " + last,
		Username:   username,
		Email:      username + "@example.com",
		Password:   passwordHash,
		Phone:      f.faker.Numerify("+977 98########"),
		IsVerified: f.Chance(0.3),
	}
}

// Listing builds a listing input of a random kind.
func (f *Factory) Listing() service.ListingInput {
	kind := pick(f, listingKinds)
	category := pick(f, listingCategories[kind])
	city := f.faker.City()

	in := service.ListingInput{
		Kind:        kind,
		Title:       capitalize(fmt.Sprintf("%s %s in %s", f.faker.Adjective(), category, city)),
		Description: f.faker.Paragraph(1, 3, 12, " "),
		Category:    category,
		Location:    f.faker.Street(),
		City:        city,
		State:       f.faker.State(),
		Country:     f.faker.Country(),
	}
	switch kind {
	case models.ListingItem:
		in.Price = f.faker.Price(500, 200000)
		in.Condition = pick(f, itemConditions)
	case models.ListingProperty:
		in.Price = f.faker.Price(1_000_000, 80_000_000)
		in.Attributes = map[string]interface{}{"area_sqft": f.faker.Number(800, 20000)}
	default:
		in.Price = f.faker.Price(1_000_000, 50_000_000)
		in.Attributes = map[string]interface{}{
			"bedrooms":  f.faker.Number(1, 6),
			"bathrooms": f.faker.Number(1, 4),
			"area_sqft": f.faker.Number(400, 5000),
		}
	}
	return in
}

// Question builds a question from authorID in a random category.
func (f *Factory) Question(authorID uint) service.CreateQuestionInput {
	category := pick(f, models.QuestionCategories)
	templates, ok := questionTemplates[category]
	if !ok {
		templates = questionTemplates[models.CategoryGeneral]
	}
	city := f.faker.City()
	return service.CreateQuestionInput{
		AuthorID: authorID,
		Title:    fmt.Sprintf(pick(f, templates), city),
		Content:  f.faker.Paragraph(2, 3, 10, "\n\n"),
		Category: category,
		Tags:     []string{string(category), slug(city)},
	}
}

// Answer builds answer text.
func (f *Factory) Answer() string {
	return f.faker.Paragraph(1, 3, 10, "\n\n")
}

// Comment builds a short comment.
func (f *Factory) Comment() string {
	return f.faker.Sentence(8)
}

// ChatLine builds a message; buyers open, sellers reply.
func (f *Factory) ChatLine(fromBuyer bool) string {
	if fromBuyer {
		return pick(f, chatOpeners)
	}
	return pick(f, chatReplies)
}

// Ticket builds a support request filed by u.
func (f *Factory) Ticket(u *models.User) service.SubmitTicketInput {
	return service.SubmitTicketInput{
		Name:     u.Name,
		Email:    u.Email,
		Phone:    u.Phone,
		Subject:  capitalize(f.faker.Sentence(5)),
		Message:  f.faker.Paragraph(1, 3, 12, " "),
		Category: pick(f, ticketCategories),
		Priority: pick(f, ticketPriorities),
	}
}

// Rating is a satisfaction score between 1 and 5.
func (f *Factory) Rating() int {
	return f.faker.Number(1, 5)
}

func slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == ' ' || r == '-':
			return '-'
		}
		return -1
	}, s)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
