package models

import (
	"time"

	"gorm.io/datatypes"
)

// TicketCategory is the topic of a support query.
type TicketCategory string

const (
	TicketGeneral    TicketCategory = "general"
	TicketProperty   TicketCategory = "property"
	TicketItem       TicketCategory = "item"
	TicketTechnical  TicketCategory = "technical"
	TicketBilling    TicketCategory = "billing"
	TicketComplaint  TicketCategory = "complaint"
	TicketSuggestion TicketCategory = "suggestion"
)

// Valid reports whether c is a known ticket category.
func (c TicketCategory) Valid() bool {
	switch c {
	case TicketGeneral, TicketProperty, TicketItem, TicketTechnical,
		TicketBilling, TicketComplaint, TicketSuggestion:
		return true
	}
	return false
}

// TicketPriority orders the admin queue.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TicketStatus moves strictly forward: pending, in-progress, resolved, closed.
type TicketStatus string

const (
	TicketPending    TicketStatus = "pending"
	TicketInProgress TicketStatus = "in-progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

var ticketOrder = map[TicketStatus]int{
	TicketPending:    0,
	TicketInProgress: 1,
	TicketResolved:   2,
	TicketClosed:     3,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	_, ok := ticketOrder[s]
	return ok
}

// CanAdvanceTo reports whether next is later in the workflow than s.
func (s TicketStatus) CanAdvanceTo(next TicketStatus) bool {
	from, okFrom := ticketOrder[s]
	to, okTo := ticketOrder[next]
	return okFrom && okTo && to > from
}

// Ticket is a user query handled by the admin desk.
type Ticket struct {
	ID                   uint                        `gorm:"primaryKey" json:"id"`
	UserID               uint                        `gorm:"not null;index" json:"user_id"`
	User                 *User                       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Name                 string                      `gorm:"size:100;not null" json:"name"`
	Email                string                      `gorm:"size:255;not null" json:"email"`
	Phone                string                      `gorm:"size:20" json:"phone,omitempty"`
	Subject              string                      `gorm:"size:200;not null" json:"subject"`
	Message              string                      `gorm:"size:2000;not null" json:"message"`
	Category             TicketCategory              `gorm:"type:varchar(20);not null;default:'general';index" json:"category"`
	Priority             TicketPriority              `gorm:"type:varchar(10);not null;default:'medium';index" json:"priority"`
	Status               TicketStatus                `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	AdminResponse        string                      `gorm:"size:2000" json:"admin_response,omitempty"`
	RespondedBy          *uint                       `json:"responded_by,omitempty"`
	RespondedAt          *time.Time                  `json:"responded_at,omitempty"`
	AssignedTo           *uint                       `gorm:"index" json:"assigned_to,omitempty"`
	Tags                 datatypes.JSONSlice[string] `json:"tags,omitempty"`
	ResolvedAt           *time.Time                  `json:"resolved_at,omitempty"`
	SatisfactionRating   *int                        `json:"satisfaction_rating,omitempty"`
	SatisfactionFeedback string                      `gorm:"size:500" json:"satisfaction_feedback,omitempty"`
	RatedAt              *time.Time                  `json:"rated_at,omitempty"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`
}
