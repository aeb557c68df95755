package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estatehub/internal/models"
	"estatehub/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteRepository is the vote ledger shared by questions, answers and comments.
type VoteRepository interface {
	// Cast toggles voterID's vote on the target: the existing vote is removed
	// and the requested one inserted only when it differs. Counters are
	// recomputed from the ledger in the same transaction.
	Cast(ctx context.Context, target models.VoteTarget, targetID, voterID uint, vote models.VoteType) (*models.VoteState, error)
	Get(ctx context.Context, target models.VoteTarget, targetID, voterID uint) (models.VoteType, error)
	GetMany(ctx context.Context, target models.VoteTarget, targetIDs []uint, voterID uint) (map[uint]models.VoteType, error)
}

type voteRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
	now    func() time.Time
}

func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db, logger: observability.NewRepoLogger("votes"), now: time.Now}
}

func (r *voteRepository) Cast(ctx context.Context, target models.VoteTarget, targetID, voterID uint, vote models.VoteType) (*models.VoteState, error) {
	table := target.Table()
	if table == "" {
		return nil, fmt.Errorf("unknown vote target %q", target)
	}

	var state models.VoteState
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked struct{ ID uint }
		if err := forUpdate(tx).Table(table).Select("id").Where("id = ?", targetID).Take(&locked).Error; err != nil {
			return err
		}

		var existing models.Vote
		res := tx.Where("target_type = ? AND target_id = ? AND voter_id = ?", target, targetID, voterID).
			Limit(1).Find(&existing)
		if res.Error != nil {
			return res.Error
		}
		previous := models.VoteNone
		if res.RowsAffected > 0 {
			previous = models.VoteTypeFromDelta(existing.Value)
			if err := tx.Delete(&models.Vote{}, existing.ID).Error; err != nil {
				return err
			}
		}

		current := models.VoteNone
		if vote != models.VoteNone && vote != previous {
			row := models.Vote{
				TargetType: target,
				TargetID:   targetID,
				VoterID:    voterID,
				Value:      vote.Delta(),
				CreatedAt:  r.now().UTC(),
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "target_type"}, {Name: "target_id"}, {Name: "voter_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "created_at"}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
			current = vote
		}

		if err := recomputeCounters(tx, target, targetID); err != nil {
			return err
		}
		if err := touchQuestion(tx, target, targetID, r.now().UTC()); err != nil {
			return err
		}
		counts, err := readCounters(tx, target, targetID)
		if err != nil {
			return err
		}
		state = counts
		state.Vote = current
		return nil
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.LogError(ctx, err, "cast")
		}
		return nil, err
	}

	observability.VotesCast.WithLabelValues(string(target), string(state.Vote)).Inc()
	r.logger.LogWrite(ctx, "cast", map[string]interface{}{
		"target":    target,
		"target_id": targetID,
		"voter_id":  voterID,
		"result":    state.Vote,
	})
	return &state, nil
}

const ledgerCount = "(SELECT COUNT(*) FROM votes WHERE target_type = ? AND target_id = ? AND value = ?)"

func recomputeCounters(tx *gorm.DB, target models.VoteTarget, targetID uint) error {
	if target.UpvoteOnly() {
		return tx.Exec(
			"UPDATE "+target.Table()+" SET upvote_count = "+ledgerCount+", vote_score = "+ledgerCount+" WHERE id = ?",
			target, targetID, 1, target, targetID, 1, targetID,
		).Error
	}
	return tx.Exec(
		"UPDATE "+target.Table()+" SET upvote_count = "+ledgerCount+", downvote_count = "+ledgerCount+
			", vote_score = (SELECT COALESCE(SUM(value), 0) FROM votes WHERE target_type = ? AND target_id = ?) WHERE id = ?",
		target, targetID, 1, target, targetID, -1, target, targetID, targetID,
	).Error
}

// touchQuestion bumps last_activity of the question a question or answer vote lands on.
func touchQuestion(tx *gorm.DB, target models.VoteTarget, targetID uint, at time.Time) error {
	switch target {
	case models.VoteTargetQuestion:
		return tx.Exec("UPDATE questions SET last_activity = ? WHERE id = ?", at, targetID).Error
	case models.VoteTargetAnswer:
		return tx.Exec("UPDATE questions SET last_activity = ? WHERE id = (SELECT question_id FROM answers WHERE id = ?)", at, targetID).Error
	}
	return nil
}

func readCounters(tx *gorm.DB, target models.VoteTarget, targetID uint) (models.VoteState, error) {
	var row struct {
		UpvoteCount   int
		DownvoteCount int
		VoteScore     int
	}
	columns := "upvote_count, downvote_count, vote_score"
	if target.UpvoteOnly() {
		columns = "upvote_count, 0 AS downvote_count, vote_score"
	}
	err := tx.Table(target.Table()).Select(columns).Where("id = ?", targetID).Take(&row).Error
	return models.VoteState{
		Score:     row.VoteScore,
		Upvotes:   row.UpvoteCount,
		Downvotes: row.DownvoteCount,
	}, err
}

func (r *voteRepository) Get(ctx context.Context, target models.VoteTarget, targetID, voterID uint) (models.VoteType, error) {
	if voterID == 0 {
		return models.VoteNone, nil
	}
	var values []int
	err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Where("target_type = ? AND target_id = ? AND voter_id = ?", target, targetID, voterID).
		Limit(1).Pluck("value", &values).Error
	if err != nil || len(values) == 0 {
		return models.VoteNone, err
	}
	return models.VoteTypeFromDelta(values[0]), nil
}

func (r *voteRepository) GetMany(ctx context.Context, target models.VoteTarget, targetIDs []uint, voterID uint) (map[uint]models.VoteType, error) {
	out := make(map[uint]models.VoteType, len(targetIDs))
	if voterID == 0 || len(targetIDs) == 0 {
		return out, nil
	}
	var rows []models.Vote
	err := r.db.WithContext(ctx).
		Select("target_id", "value").
		Where("target_type = ? AND voter_id = ? AND target_id IN ?", target, voterID, targetIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, v := range rows {
		out[v.TargetID] = models.VoteTypeFromDelta(v.Value)
	}
	return out, nil
}
