package models

import "time"

// VoteTarget names the kind of entity a vote is cast on.
type VoteTarget string

const (
	// VoteTargetQuestion is a vote on a question.
	VoteTargetQuestion VoteTarget = "question"
	// VoteTargetAnswer is a vote on an answer.
	VoteTargetAnswer VoteTarget = "answer"
	// VoteTargetComment is a vote on an answer comment. Only upvotes are allowed.
	VoteTargetComment VoteTarget = "comment"
)

// Table returns the table holding the target rows and their counters.
func (t VoteTarget) Table() string {
	switch t {
	case VoteTargetQuestion:
		return "questions"
	case VoteTargetAnswer:
		return "answers"
	case VoteTargetComment:
		return "answer_comments"
	}
	return ""
}

// UpvoteOnly reports whether the target rejects downvotes.
func (t VoteTarget) UpvoteOnly() bool {
	return t == VoteTargetComment
}

// VoteType is the state of one voter on one target.
type VoteType string

const (
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
	VoteNone VoteType = "none"
)

// Delta returns the stored ledger value for the vote type.
func (v VoteType) Delta() int {
	switch v {
	case VoteUp:
		return 1
	case VoteDown:
		return -1
	}
	return 0
}

// VoteTypeFromDelta is the inverse of Delta.
func VoteTypeFromDelta(delta int) VoteType {
	switch {
	case delta > 0:
		return VoteUp
	case delta < 0:
		return VoteDown
	}
	return VoteNone
}

// Vote is one row of the vote ledger. A voter holds at most one vote per target.
type Vote struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	TargetType VoteTarget `gorm:"type:varchar(16);not null;uniqueIndex:idx_votes_target_voter,priority:1" json:"target_type"`
	TargetID   uint       `gorm:"not null;uniqueIndex:idx_votes_target_voter,priority:2" json:"target_id"`
	VoterID    uint       `gorm:"not null;uniqueIndex:idx_votes_target_voter,priority:3;index" json:"voter_id"`
	Value      int        `gorm:"not null" json:"value"`
	CreatedAt  time.Time  `json:"created_at"`
}

// VoteState is the result of a cast: the caller's vote and the target's counters.
type VoteState struct {
	Vote      VoteType `json:"user_vote"`
	Score     int      `json:"vote_score"`
	Upvotes   int      `json:"upvotes"`
	Downvotes int      `json:"downvotes"`
}
