package service

import (
	"context"
	"strings"
	"time"

	"estatehub/internal/cache"
	"estatehub/internal/models"
	"estatehub/internal/repository"
	"estatehub/internal/validation"

	"golang.org/x/sync/errgroup"
)

const (
	maxTicketSubject  = 200
	maxTicketMessage  = 2000
	maxTicketResponse = 2000
	maxTicketFeedback = 500
)

// TicketService runs the support query desk.
type TicketService struct {
	repo repository.TicketRepository
	now  func() time.Time
}

type SubmitTicketInput struct {
	Name     string                `json:"name"`
	Email    string                `json:"email"`
	Phone    string                `json:"phone"`
	Subject  string                `json:"subject"`
	Message  string                `json:"message"`
	Category models.TicketCategory `json:"category"`
	Priority models.TicketPriority `json:"priority"`
}

// UpdateTicketInput is an admin update; nil fields are left unchanged.
type UpdateTicketInput struct {
	Status     *models.TicketStatus   `json:"status"`
	Priority   *models.TicketPriority `json:"priority"`
	AssignedTo *uint                  `json:"assigned_to"`
	Tags       *[]string              `json:"tags"`
}

type ListTicketsInput struct {
	Filter repository.TicketFilter
	Page   int
	Limit  int
}

type TicketPage struct {
	Tickets    []*models.Ticket  `json:"tickets"`
	Pagination models.Pagination `json:"pagination"`
}

func NewTicketService(repo repository.TicketRepository) *TicketService {
	return &TicketService{repo: repo, now: time.Now}
}

func (s *TicketService) Submit(ctx context.Context, userID uint, in SubmitTicketInput) (*models.Ticket, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if in.Name == "" || in.Subject == "" || in.Message == "" {
		return nil, models.NewValidationError("Name, subject and message are required")
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Phone != "" {
		if err := validation.ValidatePhone(in.Phone); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	if !validation.CheckLength(in.Subject, maxTicketSubject) {
		return nil, models.NewValidationError("Subject too long (max 200 characters)")
	}
	if !validation.CheckLength(in.Message, maxTicketMessage) {
		return nil, models.NewValidationError("Message too long (max 2000 characters)")
	}
	if in.Category == "" {
		in.Category = models.TicketGeneral
	}
	if !in.Category.Valid() {
		return nil, models.NewValidationError("Invalid category")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, models.NewValidationError("Invalid priority")
	}

	t := &models.Ticket{
		UserID:   userID,
		Name:     validation.StripTags(in.Name),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:    in.Phone,
		Subject:  validation.StripTags(in.Subject),
		Message:  validation.StripTags(in.Message),
		Category: in.Category,
		Priority: in.Priority,
		Status:   models.TicketPending,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, internal(err)
	}
	cache.InvalidateTickets(ctx)
	return t, nil
}

func (s *TicketService) list(ctx context.Context, in ListTicketsInput) (*TicketPage, error) {
	if in.Filter.Status != "" && !in.Filter.Status.Valid() {
		return nil, models.NewValidationError("Invalid status")
	}
	if in.Filter.Priority != "" && !in.Filter.Priority.Valid() {
		return nil, models.NewValidationError("Invalid priority")
	}
	if in.Filter.Category != "" && !in.Filter.Category.Valid() {
		return nil, models.NewValidationError("Invalid category")
	}
	page := repository.Page{Page: in.Page, Limit: in.Limit}.Normalize(20, 100)
	tickets, total, err := s.repo.List(ctx, in.Filter, page)
	if err != nil {
		return nil, internal(err)
	}
	if tickets == nil {
		tickets = []*models.Ticket{}
	}
	return &TicketPage{Tickets: tickets, Pagination: models.NewPagination(page.Page, page.Limit, total)}, nil
}

// ListMine returns the caller's own tickets.
func (s *TicketService) ListMine(ctx context.Context, userID uint, in ListTicketsInput) (*TicketPage, error) {
	in.Filter.UserID = userID
	return s.list(ctx, in)
}

// List is the admin queue.
func (s *TicketService) List(ctx context.Context, actor models.Principal, in ListTicketsInput) (*TicketPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.list(ctx, in)
}

func (s *TicketService) Get(ctx context.Context, id uint, actor models.Principal) (*models.Ticket, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Ticket", id)
	}
	if t.UserID != actor.ID && !actor.IsAdmin() {
		return nil, models.NewForbiddenError("Not authorized to view this ticket")
	}
	return t, nil
}

// UpdateStatus applies an admin update. Status only moves forward.
func (s *TicketService) UpdateStatus(ctx context.Context, id uint, actor models.Principal, in UpdateTicketInput) (*models.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Ticket", id)
	}

	if in.Status != nil && *in.Status != t.Status {
		if !in.Status.Valid() {
			return nil, models.NewValidationError("Invalid status")
		}
		if !t.Status.CanAdvanceTo(*in.Status) {
			return nil, models.NewInvalidOperationError("Cannot move ticket from " + string(t.Status) + " to " + string(*in.Status))
		}
		t.Status = *in.Status
		if t.Status == models.TicketResolved {
			now := s.now().UTC()
			t.ResolvedAt = &now
		}
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, models.NewValidationError("Invalid priority")
		}
		t.Priority = *in.Priority
	}
	if in.AssignedTo != nil {
		t.AssignedTo = in.AssignedTo
	}
	if in.Tags != nil {
		tags, err := normalizeTags(*in.Tags)
		if err != nil {
			return nil, err
		}
		t.Tags = tags
	}
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, internal(err)
	}
	cache.InvalidateTickets(ctx)
	return t, nil
}

// Respond stores the admin response and picks up a pending ticket.
func (s *TicketService) Respond(ctx context.Context, id uint, actor models.Principal, message string) (*models.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, models.NewValidationError("Response is required")
	}
	if !validation.CheckLength(message, maxTicketResponse) {
		return nil, models.NewValidationError("Response too long (max 2000 characters)")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Ticket", id)
	}
	now := s.now().UTC()
	responder := actor.ID
	t.AdminResponse = validation.StripTags(message)
	t.RespondedBy = &responder
	t.RespondedAt = &now
	if t.Status == models.TicketPending {
		t.Status = models.TicketInProgress
	}
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, internal(err)
	}
	cache.InvalidateTickets(ctx)
	return t, nil
}

// Rate records the owner's satisfaction with a resolved ticket.
func (s *TicketService) Rate(ctx context.Context, id, userID uint, rating int, feedback string) (*models.Ticket, error) {
	if rating < 1 || rating > 5 {
		return nil, models.NewValidationError("Rating must be between 1 and 5")
	}
	feedback = validation.StripTags(strings.TrimSpace(feedback))
	if validation.Length(feedback) > maxTicketFeedback {
		return nil, models.NewValidationError("Feedback too long (max 500 characters)")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Ticket", id)
	}
	if t.UserID != userID {
		return nil, models.NewForbiddenError("Only the ticket owner can rate it")
	}
	if t.Status != models.TicketResolved {
		return nil, models.NewInvalidOperationError("Only resolved tickets can be rated")
	}
	now := s.now().UTC()
	t.SatisfactionRating = &rating
	t.SatisfactionFeedback = feedback
	t.RatedAt = &now
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, internal(err)
	}
	return t, nil
}

func (s *TicketService) Delete(ctx context.Context, id uint, actor models.Principal) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "Ticket", id)
	}
	cache.InvalidateTickets(ctx)
	return nil
}

// Stats aggregates the desk. The breakdowns are queried concurrently.
func (s *TicketService) Stats(ctx context.Context, actor models.Principal) (*models.TicketStats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	stats, err := cache.Aside(ctx, cache.TicketStatsKey, cache.StatsTTL, s.loadStats)
	if err != nil {
		return nil, internal(err)
	}
	return stats, nil
}

func (s *TicketService) loadStats(ctx context.Context) (*models.TicketStats, error) {
	var (
		byStatus, byCategory, byPriority map[string]int64
		urgent                           int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		byStatus, err = s.repo.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		byCategory, err = s.repo.CountBy(gctx, "category")
		return err
	})
	g.Go(func() (err error) {
		byPriority, err = s.repo.CountBy(gctx, "priority")
		return err
	})
	g.Go(func() (err error) {
		urgent, err = s.repo.CountUrgentOpen(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &models.TicketStats{
		Pending:    byStatus[string(models.TicketPending)],
		InProgress: byStatus[string(models.TicketInProgress)],
		Resolved:   byStatus[string(models.TicketResolved)],
		Closed:     byStatus[string(models.TicketClosed)],
		Urgent:     urgent,
		Categories: byCategory,
		Priorities: byPriority,
	}
	for _, n := range byStatus {
		stats.Total += n
	}
	return stats, nil
}
