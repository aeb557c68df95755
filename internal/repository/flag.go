package repository

import (
	"context"

	"estatehub/internal/models"

	"gorm.io/gorm"
)

// FlagRepository stores moderation reports.
type FlagRepository interface {
	Create(ctx context.Context, f *models.ModerationFlag) error
	HasOpen(ctx context.Context, target models.VoteTarget, targetID, userID uint) (bool, error)
	ListOpen(ctx context.Context, page Page) ([]*models.ModerationFlag, int64, error)
	Resolve(ctx context.Context, id, adminID uint) (*models.ModerationFlag, error)
}

type flagRepository struct {
	db *gorm.DB
}

func NewFlagRepository(db *gorm.DB) FlagRepository {
	return &flagRepository{db: db}
}

func (r *flagRepository) Create(ctx context.Context, f *models.ModerationFlag) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *flagRepository) HasOpen(ctx context.Context, target models.VoteTarget, targetID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ModerationFlag{}).
		Where("target_type = ? AND target_id = ? AND flagged_by = ? AND resolved = ?", target, targetID, userID, false).
		Count(&n).Error
	return n > 0, err
}

func (r *flagRepository) ListOpen(ctx context.Context, page Page) ([]*models.ModerationFlag, int64, error) {
	query := readDB(r.db).WithContext(ctx).Model(&models.ModerationFlag{}).Where("resolved = ?", false)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var flags []*models.ModerationFlag
	err := query.Order("created_at ASC").Order("id ASC").
		Offset(page.Offset()).Limit(page.Limit).Find(&flags).Error
	return flags, total, err
}

func (r *flagRepository) Resolve(ctx context.Context, id, adminID uint) (*models.ModerationFlag, error) {
	var f models.ModerationFlag
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Take(&f, id).Error; err != nil {
			return err
		}
		f.Resolved = true
		f.ResolvedBy = &adminID
		return tx.Model(&models.ModerationFlag{}).Where("id = ?", id).
			UpdateColumns(map[string]interface{}{"resolved": true, "resolved_by": adminID}).Error
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}
