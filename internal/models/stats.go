package models

// CommunityStats is the admin overview of the Q&A board.
type CommunityStats struct {
	TotalQuestions    int64            `json:"total_questions"`
	ActiveQuestions   int64            `json:"active_questions"`
	AnsweredQuestions int64            `json:"answered_questions"`
	TotalViews        int64            `json:"total_views"`
	TotalVotes        int64            `json:"total_votes"`
	TotalAnswers      int64            `json:"total_answers"`
	BestAnswers       int64            `json:"best_answers"`
	Categories        map[string]int64 `json:"category_breakdown"`
}

// TicketStats is the admin overview of the query desk.
type TicketStats struct {
	Total      int64            `json:"total"`
	Pending    int64            `json:"pending"`
	InProgress int64            `json:"in_progress"`
	Resolved   int64            `json:"resolved"`
	Closed     int64            `json:"closed"`
	Urgent     int64            `json:"urgent"`
	Categories map[string]int64 `json:"by_category"`
	Priorities map[string]int64 `json:"by_priority"`
}

// Pagination describes a page of a numbered listing.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	Total       int64 `json:"total"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

// NewPagination derives page counts from a total.
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		Total:       total,
		HasNext:     page < pages,
		HasPrev:     page > 1,
	}
}
