package repository

import (
	"context"
	"strings"

	"estatehub/internal/models"

	"gorm.io/gorm"
)

// TicketFilter narrows the admin ticket listing.
type TicketFilter struct {
	UserID   uint
	Status   models.TicketStatus
	Priority models.TicketPriority
	Category models.TicketCategory
	Search   string
}

// TicketRepository persists query desk tickets.
type TicketRepository interface {
	Create(ctx context.Context, t *models.Ticket) error
	GetByID(ctx context.Context, id uint) (*models.Ticket, error)
	List(ctx context.Context, filter TicketFilter, page Page) ([]*models.Ticket, int64, error)
	Save(ctx context.Context, t *models.Ticket) error
	Delete(ctx context.Context, id uint) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountBy(ctx context.Context, column string) (map[string]int64, error)
	CountUrgentOpen(ctx context.Context) (int64, error)
}

type ticketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, t *models.Ticket) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *ticketRepository) GetByID(ctx context.Context, id uint) (*models.Ticket, error) {
	var t models.Ticket
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter, page Page) ([]*models.Ticket, int64, error) {
	query := readDB(r.db).WithContext(ctx).Model(&models.Ticket{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(subject) LIKE ? OR LOWER(message) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var tickets []*models.Ticket
	err := query.Order("created_at DESC").Order("id DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&tickets).Error
	return tickets, total, err
}

func (r *ticketRepository) Save(ctx context.Context, t *models.Ticket) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *ticketRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Ticket{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.CountBy(ctx, "status")
}

// CountBy groups ticket counts by status, category or priority.
func (r *ticketRepository) CountBy(ctx context.Context, column string) (map[string]int64, error) {
	switch column {
	case "status", "category", "priority":
	default:
		return nil, gorm.ErrInvalidField
	}
	var rows []struct {
		Bucket string
		Count  int64
	}
	err := readDB(r.db).WithContext(ctx).Model(&models.Ticket{}).
		Select(column + " AS bucket, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Bucket] = row.Count
	}
	return out, nil
}

func (r *ticketRepository) CountUrgentOpen(ctx context.Context) (int64, error) {
	var n int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Ticket{}).
		Where("priority = ? AND status IN ?", models.PriorityUrgent, []models.TicketStatus{models.TicketPending, models.TicketInProgress}).
		Count(&n).Error
	return n, err
}
