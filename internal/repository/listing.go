package repository

import (
	"context"
	"strings"

	"estatehub/internal/models"
	"estatehub/internal/observability"

	"gorm.io/gorm"
)

// ListingFilter narrows catalog listings. Zero values mean no constraint.
type ListingFilter struct {
	Kind     models.ListingKind
	Category string
	City     string
	OwnerID  uint
	Status   models.ListingStatus
	MinPrice *float64
	MaxPrice *float64
	Search   string
}

// ListingRepository persists catalog listings of every kind.
type ListingRepository interface {
	Create(ctx context.Context, l *models.Listing) error
	GetByID(ctx context.Context, id uint) (*models.Listing, error)
	List(ctx context.Context, filter ListingFilter, page Page) ([]*models.Listing, int64, error)
	Update(ctx context.Context, l *models.Listing) error
	SetStatus(ctx context.Context, id uint, status models.ListingStatus, available bool) error
	Delete(ctx context.Context, id uint) error
	GetItemOwner(ctx context.Context, id uint) (*models.ItemOwner, error)
}

type listingRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db, logger: observability.NewRepoLogger("listings")}
}

func (r *listingRepository) Create(ctx context.Context, l *models.Listing) error {
	if err := r.db.WithContext(ctx).Create(l).Error; err != nil {
		r.logger.LogError(ctx, err, "create")
		return err
	}
	r.logger.LogWrite(ctx, "create", map[string]interface{}{"id": l.ID, "kind": l.Kind, "owner_id": l.OwnerID})
	return nil
}

func (r *listingRepository) GetByID(ctx context.Context, id uint) (*models.Listing, error) {
	var l models.Listing
	if err := r.db.WithContext(ctx).Preload("Owner").First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *listingRepository) List(ctx context.Context, filter ListingFilter, page Page) ([]*models.Listing, int64, error) {
	query := readDB(r.db).WithContext(ctx).Model(&models.Listing{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.City != "" {
		query = query.Where("LOWER(city) = ?", strings.ToLower(filter.City))
	}
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(location) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var listings []*models.Listing
	err := query.Preload("Owner").
		Order("created_at DESC").Order("id DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&listings).Error
	return listings, total, err
}

func (r *listingRepository) Update(ctx context.Context, l *models.Listing) error {
	err := r.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", l.ID).Updates(map[string]interface{}{
		"title":        l.Title,
		"description":  l.Description,
		"price":        l.Price,
		"category":     l.Category,
		"condition":    l.Condition,
		"location":     l.Location,
		"city":         l.City,
		"state":        l.State,
		"country":      l.Country,
		"status":       l.Status,
		"is_available": l.IsAvailable,
		"images":       l.Images,
		"attributes":   l.Attributes,
	}).Error
	if err != nil {
		r.logger.LogError(ctx, err, "update")
	}
	return err
}

func (r *listingRepository) SetStatus(ctx context.Context, id uint, status models.ListingStatus, available bool) error {
	res := r.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       status,
		"is_available": available,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *listingRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Listing{}, id)
	if res.Error != nil {
		r.logger.LogError(ctx, res.Error, "delete")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.logger.LogWrite(ctx, "delete", map[string]interface{}{"id": id})
	return nil
}

func (r *listingRepository) GetItemOwner(ctx context.Context, id uint) (*models.ItemOwner, error) {
	var owner models.ItemOwner
	err := r.db.WithContext(ctx).Model(&models.Listing{}).
		Select("owner_id", "title").
		Where("id = ?", id).
		Take(&owner).Error
	if err != nil {
		return nil, err
	}
	return &owner, nil
}
