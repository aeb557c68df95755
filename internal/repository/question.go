package repository

import (
	"context"
	"strings"
	"time"

	"estatehub/internal/models"
	"estatehub/internal/observability"

	"gorm.io/gorm"
)

// QuestionSort orders question listings.
type QuestionSort string

// Sorts a client may request on the public listing. The empty value means SortRecent.
const (
	SortRecent       QuestionSort = "recent"
	SortPopular      QuestionSort = "popular"
	SortMostAnswered QuestionSort = "mostAnswered"
)

// SortNewest is plain creation order, used for a user's activity feed.
// It is not accepted from clients.
const SortNewest QuestionSort = "newest"

// Public reports whether clients may request s.
func (s QuestionSort) Public() bool {
	switch s {
	case "", SortRecent, SortPopular, SortMostAnswered:
		return true
	}
	return false
}

// QuestionFilter narrows ListQuestions. Zero values mean no constraint,
// except Status which defaults to active.
type QuestionFilter struct {
	Category models.QuestionCategory
	Tags     []string
	Search   string
	Status   models.QuestionStatus
	AuthorID uint
	Sort     QuestionSort
}

// QuestionRepository persists questions with their tags and view history.
type QuestionRepository interface {
	Create(ctx context.Context, q *models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	List(ctx context.Context, filter QuestionFilter, page Page) ([]*models.Question, int64, error)
	UpdateContent(ctx context.Context, q *models.Question, tags []string, replaceTags bool) error
	SetStatus(ctx context.Context, id uint, status models.QuestionStatus) error
	SetPinned(ctx context.Context, id uint, pinned bool) error
	Touch(ctx context.Context, id uint, at time.Time) error
	RecordView(ctx context.Context, questionID, viewerID uint, at time.Time) (bool, error)
	Stats(ctx context.Context) (*models.CommunityStats, error)
}

type questionRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db, logger: observability.NewRepoLogger("questions")}
}

func (r *questionRepository) Create(ctx context.Context, q *models.Question) error {
	if err := r.db.WithContext(ctx).Create(q).Error; err != nil {
		r.logger.LogError(ctx, err, "create")
		return err
	}
	r.logger.LogWrite(ctx, "create", map[string]interface{}{"id": q.ID, "author_id": q.AuthorID})
	return nil
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var q models.Question
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Tags").
		First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *questionRepository) List(ctx context.Context, filter QuestionFilter, page Page) ([]*models.Question, int64, error) {
	query := readDB(r.db).WithContext(ctx).Model(&models.Question{})

	status := filter.Status
	if status == "" {
		status = models.QuestionActive
	}
	query = query.Where("questions.status = ?", status)

	if filter.Category != "" && filter.Category != "all" {
		query = query.Where("questions.category = ?", filter.Category)
	}
	if filter.AuthorID != 0 {
		query = query.Where("questions.author_id = ?", filter.AuthorID)
	}
	if len(filter.Tags) > 0 {
		query = query.Where("EXISTS (SELECT 1 FROM question_tags qt WHERE qt.question_id = questions.id AND qt.tag IN ?)", filter.Tags)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where(
			"LOWER(questions.title) LIKE ? OR LOWER(questions.content) LIKE ? OR EXISTS (SELECT 1 FROM question_tags qt WHERE qt.question_id = questions.id AND LOWER(qt.tag) LIKE ?)",
			like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch filter.Sort {
	case SortPopular:
		query = query.Order("questions.vote_score DESC").Order("questions.view_count DESC")
	case SortMostAnswered:
		query = query.Order("questions.answer_count DESC").Order("questions.created_at DESC")
	case SortNewest:
		query = query.Order("questions.created_at DESC")
	default:
		query = query.Order("questions.is_pinned DESC").Order("questions.last_activity DESC")
	}
	query = query.Order("questions.id DESC")

	var questions []*models.Question
	err := query.
		Preload("Author").
		Preload("Tags").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&questions).Error
	return questions, total, err
}

func (r *questionRepository) UpdateContent(ctx context.Context, q *models.Question, tags []string, replaceTags bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Question{}).Where("id = ?", q.ID).Updates(map[string]interface{}{
			"title":         q.Title,
			"content":       q.Content,
			"last_activity": q.LastActivity,
		}).Error
		if err != nil {
			return err
		}
		if !replaceTags {
			return nil
		}
		if err := tx.Where("question_id = ?", q.ID).Delete(&models.QuestionTag{}).Error; err != nil {
			return err
		}
		rows := make([]models.QuestionTag, 0, len(tags))
		for _, t := range tags {
			rows = append(rows, models.QuestionTag{QuestionID: q.ID, Tag: t})
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		q.Tags = rows
		q.TagNames = tags
		return nil
	})
}

func (r *questionRepository) SetStatus(ctx context.Context, id uint, status models.QuestionStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Question{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		r.logger.LogError(ctx, res.Error, "set_status")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.logger.LogWrite(ctx, "set_status", map[string]interface{}{"id": id, "status": status})
	return nil
}

func (r *questionRepository) SetPinned(ctx context.Context, id uint, pinned bool) error {
	res := r.db.WithContext(ctx).Model(&models.Question{}).Where("id = ?", id).Update("is_pinned", pinned)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *questionRepository) Touch(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Question{}).Where("id = ?", id).
		UpdateColumn("last_activity", at).Error
}

// RecordView counts a view unless the viewer already viewed the question
// within the dedup window. History beyond the newest MaxQuestionViews rows is pruned.
func (r *questionRepository) RecordView(ctx context.Context, questionID, viewerID uint, at time.Time) (bool, error) {
	counted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recent int64
		err := tx.Model(&models.QuestionView{}).
			Where("question_id = ? AND viewer_id = ? AND viewed_at > ?", questionID, viewerID, at.Add(-models.ViewDedupWindow)).
			Count(&recent).Error
		if err != nil || recent > 0 {
			return err
		}

		if err := tx.Create(&models.QuestionView{QuestionID: questionID, ViewerID: viewerID, ViewedAt: at}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Question{}).Where("id = ?", questionID).
			UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
			return err
		}
		counted = true

		return tx.Exec(
			`DELETE FROM question_views WHERE question_id = ? AND id NOT IN (
				SELECT id FROM (
					SELECT id FROM question_views WHERE question_id = ? ORDER BY viewed_at DESC, id DESC LIMIT ?
				) AS keep
			)`,
			questionID, questionID, models.MaxQuestionViews,
		).Error
	})
	if err != nil {
		r.logger.LogError(ctx, err, "record_view")
		return false, err
	}
	observability.QuestionViews.WithLabelValues(boolLabel(counted)).Inc()
	return counted, nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (r *questionRepository) Stats(ctx context.Context) (*models.CommunityStats, error) {
	db := readDB(r.db).WithContext(ctx)
	stats := &models.CommunityStats{Categories: map[string]int64{}}

	var q struct {
		Total    int64
		Active   int64
		Answered int64
		Views    int64
		Votes    int64
	}
	err := db.Model(&models.Question{}).Select(
		"COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0) AS active, " +
			"COALESCE(SUM(CASE WHEN status = 'active' AND is_answered THEN 1 ELSE 0 END), 0) AS answered, " +
			"COALESCE(SUM(view_count), 0) AS views, " +
			"COALESCE(SUM(vote_score), 0) AS votes",
	).Where("status <> ?", models.QuestionDeleted).Scan(&q).Error
	if err != nil {
		return nil, err
	}
	stats.TotalQuestions = q.Total
	stats.ActiveQuestions = q.Active
	stats.AnsweredQuestions = q.Answered
	stats.TotalViews = q.Views
	stats.TotalVotes = q.Votes

	var a struct {
		Total int64
		Best  int64
	}
	err = db.Model(&models.Answer{}).Select(
		"COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_best_answer THEN 1 ELSE 0 END), 0) AS best",
	).Where("status = ?", models.AnswerActive).Scan(&a).Error
	if err != nil {
		return nil, err
	}
	stats.TotalAnswers = a.Total
	stats.BestAnswers = a.Best

	var rows []struct {
		Category string
		Count    int64
	}
	err = db.Model(&models.Question{}).Select("category, COUNT(*) AS count").
		Where("status = ?", models.QuestionActive).Group("category").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.Categories[row.Category] = row.Count
	}
	return stats, nil
}
