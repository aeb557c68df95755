package models

import "time"

// FlagReason is why a user reported content.
type FlagReason string

const (
	FlagSpam          FlagReason = "spam"
	FlagInappropriate FlagReason = "inappropriate"
	FlagOffTopic      FlagReason = "off-topic"
	FlagDuplicate     FlagReason = "duplicate"
	FlagPlagiarism    FlagReason = "plagiarism"
	FlagLowQuality    FlagReason = "low-quality"
	FlagOther         FlagReason = "other"
)

var flagReasons = map[VoteTarget][]FlagReason{
	VoteTargetQuestion: {FlagSpam, FlagInappropriate, FlagOffTopic, FlagDuplicate, FlagOther},
	VoteTargetAnswer:   {FlagSpam, FlagInappropriate, FlagPlagiarism, FlagLowQuality, FlagOther},
}

// ValidFor reports whether r is an accepted reason for the target kind.
func (r FlagReason) ValidFor(target VoteTarget) bool {
	for _, allowed := range flagReasons[target] {
		if r == allowed {
			return true
		}
	}
	return false
}

// ModerationFlag is a user report on a question or an answer.
type ModerationFlag struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TargetType  VoteTarget `gorm:"type:varchar(16);not null;index:idx_flags_target,priority:1;uniqueIndex:idx_flags_open_per_user,priority:1,where:resolved = false" json:"target_type"`
	TargetID    uint       `gorm:"not null;index:idx_flags_target,priority:2;uniqueIndex:idx_flags_open_per_user,priority:2,where:resolved = false" json:"target_id"`
	FlaggedBy   uint       `gorm:"not null;index;uniqueIndex:idx_flags_open_per_user,priority:3,where:resolved = false" json:"flagged_by"`
	Reason      FlagReason `gorm:"type:varchar(20);not null" json:"reason"`
	Description string     `gorm:"size:500" json:"description,omitempty"`
	Resolved    bool       `gorm:"not null;default:false;index" json:"resolved"`
	ResolvedBy  *uint      `json:"resolved_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
