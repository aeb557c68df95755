package service

import (
	"context"
	"strings"

	"estatehub/internal/cache"
	"estatehub/internal/middleware"
	"estatehub/internal/models"
	"estatehub/internal/repository"
	"estatehub/internal/validation"
)

const (
	maxListingTitle       = 200
	maxListingDescription = 5000
)

// ItemNotifier is told when a listing stops being available.
type ItemNotifier interface {
	CloseConversationsForItem(ctx context.Context, itemID uint, subtype models.SystemSubtype) error
}

type ListingService struct {
	repo     repository.ListingRepository
	notifier ItemNotifier
}

type ListingInput struct {
	Kind        models.ListingKind     `json:"kind"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Price       float64                `json:"price"`
	Category    string                 `json:"category"`
	Condition   string                 `json:"condition"`
	Location    string                 `json:"location"`
	City        string                 `json:"city"`
	State       string                 `json:"state"`
	Country     string                 `json:"country"`
	Status      models.ListingStatus   `json:"status"`
	Images      []string               `json:"images"`
	Attributes  map[string]interface{} `json:"attributes"`
}

type ListListingsInput struct {
	Filter repository.ListingFilter
	Page   int
	Limit  int
}

type ListingPage struct {
	Listings   []*models.Listing `json:"listings"`
	Pagination models.Pagination `json:"pagination"`
}

func NewListingService(repo repository.ListingRepository) *ListingService {
	return &ListingService{repo: repo}
}

// SetNotifier installs the conversation notifier. The chat service resolves
// sellers through this service, so it is wired after construction.
func (s *ListingService) SetNotifier(n ItemNotifier) {
	s.notifier = n
}

func (in *ListingInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	if !in.Kind.Valid() {
		return models.NewValidationError("Invalid listing kind")
	}
	if in.Title == "" {
		return models.NewValidationError("Title is required")
	}
	if !validation.CheckLength(in.Title, maxListingTitle) {
		return models.NewValidationError("Title too long (max 200 characters)")
	}
	if validation.Length(in.Description) > maxListingDescription {
		return models.NewValidationError("Description too long (max 5000 characters)")
	}
	if in.Price < 0 {
		return models.NewValidationError("Price cannot be negative")
	}
	if in.Location == "" {
		return models.NewValidationError("Location is required")
	}
	if in.Status == "" {
		in.Status = models.ListingActive
	}
	if !in.Status.Valid() {
		return models.NewValidationError("Invalid listing status")
	}
	return nil
}

func (in *ListingInput) apply(l *models.Listing) {
	l.Kind = in.Kind
	l.Title = validation.StripTags(in.Title)
	l.Description = validation.SanitizeUGC(in.Description)
	l.Price = in.Price
	l.Category = in.Category
	l.Condition = in.Condition
	l.Location = validation.StripTags(in.Location)
	l.City = in.City
	l.State = in.State
	l.Country = in.Country
	l.Status = in.Status
	l.IsAvailable = in.Status == models.ListingActive
	l.Images = in.Images
	l.Attributes = in.Attributes
}

func (s *ListingService) Create(ctx context.Context, ownerID uint, in ListingInput) (*models.Listing, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	l := &models.Listing{OwnerID: ownerID}
	in.apply(l)
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, internal(err)
	}
	return l, nil
}

// Get is served from Redis when warm.
func (s *ListingService) Get(ctx context.Context, id uint) (*models.Listing, error) {
	l, err := cache.Aside(ctx, cache.ListingKey(id), cache.ListingTTL, func(ctx context.Context) (*models.Listing, error) {
		return s.repo.GetByID(ctx, id)
	})
	if err != nil {
		return nil, notFoundOr(err, "Listing", id)
	}
	return l, nil
}

func (s *ListingService) List(ctx context.Context, in ListListingsInput) (*ListingPage, error) {
	if in.Filter.Kind != "" && !in.Filter.Kind.Valid() {
		return nil, models.NewValidationError("Invalid listing kind")
	}
	if in.Filter.Status != "" && !in.Filter.Status.Valid() {
		return nil, models.NewValidationError("Invalid listing status")
	}
	page := repository.Page{Page: in.Page, Limit: in.Limit}.Normalize(20, 100)
	listings, total, err := s.repo.List(ctx, in.Filter, page)
	if err != nil {
		return nil, internal(err)
	}
	if listings == nil {
		listings = []*models.Listing{}
	}
	return &ListingPage{Listings: listings, Pagination: models.NewPagination(page.Page, page.Limit, total)}, nil
}

// owned loads a listing the actor may change.
func (s *ListingService) owned(ctx context.Context, id uint, actor models.Principal) (*models.Listing, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Listing", id)
	}
	if l.OwnerID != actor.ID && !actor.IsAdmin() {
		return nil, models.NewForbiddenError("Not authorized to modify this listing")
	}
	return l, nil
}

func (s *ListingService) Update(ctx context.Context, id uint, actor models.Principal, in ListingInput) (*models.Listing, error) {
	l, err := s.owned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if in.Kind == "" {
		in.Kind = l.Kind
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	wasSold := l.Status == models.ListingSold
	in.apply(l)
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, internal(err)
	}
	cache.InvalidateListing(ctx, id)
	if !wasSold && l.Status == models.ListingSold {
		s.notify(ctx, id, models.SystemItemSold)
	}
	return l, nil
}

// MarkSold takes the listing off the market and tells open conversations.
func (s *ListingService) MarkSold(ctx context.Context, id uint, actor models.Principal) error {
	l, err := s.owned(ctx, id, actor)
	if err != nil {
		return err
	}
	if l.Status == models.ListingSold {
		return models.NewInvalidOperationError("Listing is already sold")
	}
	if err := s.repo.SetStatus(ctx, id, models.ListingSold, false); err != nil {
		return notFoundOr(err, "Listing", id)
	}
	cache.InvalidateListing(ctx, id)
	s.notify(ctx, id, models.SystemItemSold)
	return nil
}

func (s *ListingService) Delete(ctx context.Context, id uint, actor models.Principal) error {
	if _, err := s.owned(ctx, id, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "Listing", id)
	}
	cache.InvalidateListing(ctx, id)
	s.notify(ctx, id, models.SystemItemUnavailable)
	return nil
}

func (s *ListingService) notify(ctx context.Context, id uint, subtype models.SystemSubtype) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.CloseConversationsForItem(ctx, id, subtype); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to notify conversations", "listing_id", id, "subtype", subtype, "error", err)
	}
}

// GetItemOwner resolves the seller of a listing for the chat service.
func (s *ListingService) GetItemOwner(ctx context.Context, itemID uint) (*models.ItemOwner, error) {
	owner, err := s.repo.GetItemOwner(ctx, itemID)
	if err != nil {
		return nil, notFoundOr(err, "Item", itemID)
	}
	return owner, nil
}
