package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Field bounds shared by validation and the schema.
const (
	MaxQuestionTitle   = 300
	MaxQuestionContent = 5000
	MaxAnswerContent   = 10000
	MaxCommentContent  = 1000
	MaxTagLength       = 50
	MaxFlagDescription = 500

	// MaxQuestionViews bounds the per-question view history.
	MaxQuestionViews = 1000
	// ViewDedupWindow is the span in which repeat views by one viewer count once.
	ViewDedupWindow = 24 * time.Hour
)

// QuestionCategory is the topic a question is filed under.
type QuestionCategory string

const (
	CategoryPropertyBuying  QuestionCategory = "property-buying"
	CategoryPropertySelling QuestionCategory = "property-selling"
	CategoryRental          QuestionCategory = "rental"
	CategoryInvestment      QuestionCategory = "investment"
	CategoryLegal           QuestionCategory = "legal"
	CategoryFinancing       QuestionCategory = "financing"
	CategoryMaintenance     QuestionCategory = "maintenance"
	CategoryTechnology      QuestionCategory = "technology"
	CategoryGeneral         QuestionCategory = "general"
	CategoryMarketTrends    QuestionCategory = "market-trends"
)

// QuestionCategories lists every accepted category.
var QuestionCategories = []QuestionCategory{
	CategoryPropertyBuying, CategoryPropertySelling, CategoryRental,
	CategoryInvestment, CategoryLegal, CategoryFinancing, CategoryMaintenance,
	CategoryTechnology, CategoryGeneral, CategoryMarketTrends,
}

// Valid reports whether c is a known category.
func (c QuestionCategory) Valid() bool {
	for _, known := range QuestionCategories {
		if c == known {
			return true
		}
	}
	return false
}

// QuestionStatus is the lifecycle state of a question.
type QuestionStatus string

const (
	// QuestionActive questions are listed and accept answers.
	QuestionActive QuestionStatus = "active"
	// QuestionClosed questions stay readable but take no new answers.
	QuestionClosed QuestionStatus = "closed"
	// QuestionDeleted is terminal and hides the question.
	QuestionDeleted QuestionStatus = "deleted"
	// QuestionPendingReview is set manually by an admin after a flag.
	QuestionPendingReview QuestionStatus = "pending-review"
)

var questionTransitions = map[QuestionStatus][]QuestionStatus{
	QuestionActive:        {QuestionClosed, QuestionDeleted, QuestionPendingReview},
	QuestionPendingReview: {QuestionActive, QuestionDeleted},
	QuestionClosed:        {QuestionDeleted},
}

// Valid reports whether s is a known status.
func (s QuestionStatus) Valid() bool {
	_, ok := questionTransitions[s]
	return ok || s == QuestionDeleted
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s QuestionStatus) CanTransitionTo(next QuestionStatus) bool {
	for _, allowed := range questionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Question is the aggregate root of a community thread.
type Question struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	Title         string                      `gorm:"size:300;not null" json:"title"`
	Content       string                      `gorm:"type:text;not null" json:"content"`
	AuthorID      uint                        `gorm:"not null;index" json:"author_id"`
	Author        *User                       `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Category      QuestionCategory            `gorm:"type:varchar(32);not null;default:'general';index" json:"category"`
	Tags          []QuestionTag               `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"-"`
	TagNames      []string                    `gorm:"-" json:"tags"`
	UpvoteCount   int                         `gorm:"not null;default:0" json:"upvotes"`
	DownvoteCount int                         `gorm:"not null;default:0" json:"downvotes"`
	VoteScore     int                         `gorm:"not null;default:0;index" json:"vote_score"`
	ViewCount     int                         `gorm:"not null;default:0" json:"view_count"`
	AnswerCount   int                         `gorm:"not null;default:0" json:"answer_count"`
	BestAnswerID  *uint                       `json:"best_answer_id,omitempty"`
	Status        QuestionStatus              `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	IsPinned      bool                        `gorm:"not null;default:false" json:"is_pinned"`
	IsAnswered    bool                        `gorm:"not null;default:false" json:"is_answered"`
	LastActivity  time.Time                   `gorm:"index" json:"last_activity"`
	Attachments   datatypes.JSONSlice[string] `json:"attachments,omitempty"`
	// UserVote is the requesting viewer's vote (computed)
	UserVote VoteType `gorm:"-" json:"user_vote,omitempty"`
	// ContentHTML is the rendered Markdown body, filled on request
	ContentHTML string    `gorm:"-" json:"content_html,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NetVotes is the derived upvotes minus downvotes.
func (q *Question) NetVotes() int {
	return q.UpvoteCount - q.DownvoteCount
}

// MarshalJSON adds the derived net_votes to the stored fields.
func (q Question) MarshalJSON() ([]byte, error) {
	type stored Question
	return json.Marshal(struct {
		stored
		NetVotes int `json:"net_votes"`
	}{stored(q), q.NetVotes()})
}

// AfterFind exposes preloaded tag rows as plain strings.
func (q *Question) AfterFind(_ *gorm.DB) error {
	q.TagNames = make([]string, 0, len(q.Tags))
	for _, t := range q.Tags {
		q.TagNames = append(q.TagNames, t.Tag)
	}
	return nil
}

// QuestionTag is one tag of a question; tags form a set per question.
type QuestionTag struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	QuestionID uint   `gorm:"not null;uniqueIndex:idx_question_tags_unique,priority:1" json:"-"`
	Tag        string `gorm:"size:50;not null;uniqueIndex:idx_question_tags_unique,priority:2;index" json:"tag"`
}

// QuestionView records one counted view for dedup.
type QuestionView struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"not null;index:idx_question_views_lookup,priority:1" json:"question_id"`
	ViewerID   uint      `gorm:"not null;index:idx_question_views_lookup,priority:2" json:"viewer_id"`
	ViewedAt   time.Time `gorm:"not null;index:idx_question_views_lookup,priority:3" json:"viewed_at"`
}
