package repository

import (
	"context"
	"time"

	"estatehub/internal/models"
	"estatehub/internal/observability"

	"gorm.io/gorm"
)

// AnswerRepository persists answers and their comments.
type AnswerRepository interface {
	// Create inserts the answer and bumps the question's counters. It returns
	// gorm.ErrRecordNotFound when the question is missing or not active.
	Create(ctx context.Context, a *models.Answer, at time.Time) error
	GetByID(ctx context.Context, id uint) (*models.Answer, error)
	ListForQuestion(ctx context.Context, questionID uint) ([]*models.Answer, error)
	ListByAuthor(ctx context.Context, authorID uint, page Page) ([]*models.Answer, int64, error)
	// MarkBest runs authorize against the locked question, then moves the best
	// flag to answerID.
	MarkBest(ctx context.Context, answerID uint, authorize func(q *models.Question) error) (*models.Answer, error)
	SaveEdit(ctx context.Context, a *models.Answer) error
	// Delete soft-deletes the answer and recomputes the question's answer state.
	Delete(ctx context.Context, a *models.Answer) error
	AddComment(ctx context.Context, c *models.AnswerComment) error
	GetComment(ctx context.Context, answerID, commentID uint) (*models.AnswerComment, error)
}

type answerRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db, logger: observability.NewRepoLogger("answers")}
}

func (r *answerRepository) Create(ctx context.Context, a *models.Answer, at time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Question
		err := forUpdate(tx).Select("id").
			Where("id = ? AND status = ?", a.QuestionID, models.QuestionActive).
			Take(&q).Error
		if err != nil {
			return err
		}
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		return tx.Model(&models.Question{}).Where("id = ?", a.QuestionID).UpdateColumns(map[string]interface{}{
			"answer_count":  gorm.Expr("answer_count + 1"),
			"is_answered":   true,
			"last_activity": at,
		}).Error
	})
	if err != nil {
		r.logger.LogError(ctx, err, "create")
		return err
	}
	r.logger.LogWrite(ctx, "create", map[string]interface{}{"id": a.ID, "question_id": a.QuestionID})
	return nil
}

func (r *answerRepository) GetByID(ctx context.Context, id uint) (*models.Answer, error) {
	var a models.Answer
	if err := r.db.WithContext(ctx).Preload("Author").First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *answerRepository) ListForQuestion(ctx context.Context, questionID uint) ([]*models.Answer, error) {
	var answers []*models.Answer
	err := readDB(r.db).WithContext(ctx).
		Where("question_id = ? AND status = ?", questionID, models.AnswerActive).
		Preload("Author").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("answer_comments.created_at ASC").Order("answer_comments.id ASC")
		}).
		Preload("Comments.Author").
		Order("is_best_answer DESC").
		Order("vote_score DESC").
		Order("created_at DESC").
		Order("id DESC").
		Find(&answers).Error
	return answers, err
}

func (r *answerRepository) ListByAuthor(ctx context.Context, authorID uint, page Page) ([]*models.Answer, int64, error) {
	query := readDB(r.db).WithContext(ctx).Model(&models.Answer{}).
		Where("author_id = ? AND status = ?", authorID, models.AnswerActive)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var answers []*models.Answer
	err := query.Order("created_at DESC").Order("id DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&answers).Error
	return answers, total, err
}

func (r *answerRepository) MarkBest(ctx context.Context, answerID uint, authorize func(q *models.Question) error) (*models.Answer, error) {
	var answer models.Answer
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND status = ?", answerID, models.AnswerActive).Take(&answer).Error; err != nil {
			return err
		}
		var q models.Question
		if err := forUpdate(tx).Where("id = ? AND status <> ?", answer.QuestionID, models.QuestionDeleted).Take(&q).Error; err != nil {
			return err
		}
		if err := authorize(&q); err != nil {
			return err
		}

		err := tx.Model(&models.Answer{}).
			Where("question_id = ? AND id <> ? AND (is_best_answer = ? OR is_accepted_by_author = ?)", q.ID, answer.ID, true, true).
			UpdateColumns(map[string]interface{}{"is_best_answer": false, "is_accepted_by_author": false}).Error
		if err != nil {
			return err
		}
		err = tx.Model(&models.Answer{}).Where("id = ?", answer.ID).
			UpdateColumns(map[string]interface{}{"is_best_answer": true, "is_accepted_by_author": true}).Error
		if err != nil {
			return err
		}
		answer.IsBestAnswer = true
		answer.IsAcceptedByAuthor = true
		return tx.Model(&models.Question{}).Where("id = ?", q.ID).UpdateColumn("best_answer_id", answer.ID).Error
	})
	if err != nil {
		return nil, err
	}
	r.logger.LogWrite(ctx, "mark_best", map[string]interface{}{"id": answer.ID, "question_id": answer.QuestionID})
	return &answer, nil
}

func (r *answerRepository) SaveEdit(ctx context.Context, a *models.Answer) error {
	return r.db.WithContext(ctx).Model(&models.Answer{}).Where("id = ?", a.ID).Updates(map[string]interface{}{
		"content":        a.Content,
		"edit_history":   a.EditHistory,
		"last_edited_at": a.LastEditedAt,
	}).Error
}

func (r *answerRepository) Delete(ctx context.Context, a *models.Answer) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Question
		if err := forUpdate(tx).Select("id", "best_answer_id").Where("id = ?", a.QuestionID).Take(&q).Error; err != nil {
			return err
		}
		err := tx.Model(&models.Answer{}).Where("id = ?", a.ID).UpdateColumns(map[string]interface{}{
			"status":                models.AnswerDeleted,
			"is_best_answer":        false,
			"is_accepted_by_author": false,
		}).Error
		if err != nil {
			return err
		}

		var remaining int64
		if err := tx.Model(&models.Answer{}).
			Where("question_id = ? AND status = ?", a.QuestionID, models.AnswerActive).
			Count(&remaining).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{
			"answer_count": remaining,
			"is_answered":  remaining > 0,
		}
		if q.BestAnswerID != nil && *q.BestAnswerID == a.ID {
			updates["best_answer_id"] = nil
		}
		return tx.Model(&models.Question{}).Where("id = ?", a.QuestionID).UpdateColumns(updates).Error
	})
	if err != nil {
		r.logger.LogError(ctx, err, "delete")
		return err
	}
	r.logger.LogWrite(ctx, "delete", map[string]interface{}{"id": a.ID})
	return nil
}

func (r *answerRepository) AddComment(ctx context.Context, c *models.AnswerComment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *answerRepository) GetComment(ctx context.Context, answerID, commentID uint) (*models.AnswerComment, error) {
	var c models.AnswerComment
	err := r.db.WithContext(ctx).Where("id = ? AND answer_id = ?", commentID, answerID).Take(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
