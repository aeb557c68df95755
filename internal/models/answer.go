package models

import (
	"time"

	"gorm.io/datatypes"
)

// MaxEditHistory bounds the number of prior revisions kept per answer.
const MaxEditHistory = 10

// AnswerStatus is the visibility of an answer.
type AnswerStatus string

const (
	AnswerActive        AnswerStatus = "active"
	AnswerDeleted       AnswerStatus = "deleted"
	AnswerPendingReview AnswerStatus = "pending-review"
	AnswerHidden        AnswerStatus = "hidden"
)

// AnswerState is the explicit best-answer state of an answer.
type AnswerState string

const (
	AnswerStateNormal AnswerState = "normal"
	AnswerStateBest   AnswerState = "best"
)

// EditRecord is a prior revision of an answer body.
type EditRecord struct {
	Content  string    `json:"content"`
	EditedAt time.Time `json:"edited_at"`
	Reason   string    `json:"reason,omitempty"`
}

// Answer belongs to a question. At most one answer per question is best,
// enforced by the partial unique index on question_id.
type Answer struct {
	ID                 uint                            `gorm:"primaryKey" json:"id"`
	Content            string                          `gorm:"type:text;not null" json:"content"`
	AuthorID           uint                            `gorm:"not null;index" json:"author_id"`
	Author             *User                           `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	QuestionID         uint                            `gorm:"not null;index;uniqueIndex:idx_answers_one_best,where:is_best_answer = true" json:"question_id"`
	UpvoteCount        int                             `gorm:"not null;default:0" json:"upvotes"`
	DownvoteCount      int                             `gorm:"not null;default:0" json:"downvotes"`
	VoteScore          int                             `gorm:"not null;default:0" json:"vote_score"`
	IsBestAnswer       bool                            `gorm:"not null;default:false" json:"is_best_answer"`
	IsAcceptedByAuthor bool                            `gorm:"not null;default:false" json:"is_accepted_by_author"`
	Status             AnswerStatus                    `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	EditHistory        datatypes.JSONSlice[EditRecord] `json:"edit_history,omitempty"`
	LastEditedAt       *time.Time                      `json:"last_edited_at,omitempty"`
	Comments           []AnswerComment                 `gorm:"foreignKey:AnswerID;constraint:OnDelete:CASCADE" json:"comments"`
	// UserVote is the requesting viewer's vote (computed)
	UserVote VoteType `gorm:"-" json:"user_vote,omitempty"`
	// ContentHTML is the rendered Markdown body, filled on request
	ContentHTML string    `gorm:"-" json:"content_html,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// State derives the explicit best-answer state from the persisted flag.
func (a *Answer) State() AnswerState {
	if a.IsBestAnswer {
		return AnswerStateBest
	}
	return AnswerStateNormal
}

// PushEdit records the current body as a revision, evicting the oldest
// entries beyond MaxEditHistory.
func (a *Answer) PushEdit(rec EditRecord) {
	history := append([]EditRecord(a.EditHistory), rec)
	if len(history) > MaxEditHistory {
		history = history[len(history)-MaxEditHistory:]
	}
	a.EditHistory = datatypes.JSONSlice[EditRecord](history)
}

// AnswerComment is a short reply attached to an answer. Comments only take
// upvotes, so VoteScore always equals UpvoteCount.
type AnswerComment struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	AnswerID    uint   `gorm:"not null;index" json:"answer_id"`
	Content     string `gorm:"size:1000;not null" json:"content"`
	AuthorID    uint   `gorm:"not null;index" json:"author_id"`
	Author      *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	UpvoteCount int    `gorm:"not null;default:0" json:"upvotes"`
	VoteScore   int    `gorm:"not null;default:0" json:"vote_score"`
	// UserVote is the requesting viewer's vote (computed)
	UserVote  VoteType  `gorm:"-" json:"user_vote,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
