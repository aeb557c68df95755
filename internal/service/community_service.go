package service

import (
	"context"
	"strings"
	"time"

	"estatehub/internal/cache"
	"estatehub/internal/featureflags"
	"estatehub/internal/middleware"
	"estatehub/internal/models"
	"estatehub/internal/observability"
	"estatehub/internal/repository"
	"estatehub/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultQuestionLimit = 10
	maxQuestionLimit     = 100
	activityPreviewLimit = 5
)

// FeatureChecker reports whether a named feature is on for a user.
type FeatureChecker interface {
	Enabled(flag featureflags.Flag, userID uint) bool
}

// CommunityService owns the Q&A board: questions, answers, comments, votes
// and moderation flags.
type CommunityService struct {
	questions repository.QuestionRepository
	answers   repository.AnswerRepository
	votes     repository.VoteRepository
	flags     repository.FlagRepository
	features  FeatureChecker
	now       func() time.Time
}

// NewCommunityService returns a CommunityService. features may be nil.
func NewCommunityService(
	questions repository.QuestionRepository,
	answers repository.AnswerRepository,
	votes repository.VoteRepository,
	flags repository.FlagRepository,
	features FeatureChecker,
) *CommunityService {
	return &CommunityService{
		questions: questions,
		answers:   answers,
		votes:     votes,
		flags:     flags,
		features:  features,
		now:       time.Now,
	}
}

type CreateQuestionInput struct {
	AuthorID    uint
	Title       string
	Content     string
	Category    models.QuestionCategory
	Tags        []string
	Attachments []string
}

type ListQuestionsInput struct {
	Category models.QuestionCategory
	Tags     []string
	Search   string
	Status   models.QuestionStatus
	Sort     repository.QuestionSort
	Page     int
	Limit    int
}

// QuestionPage is one page of the question board.
type QuestionPage struct {
	Questions  []*models.Question `json:"questions"`
	Pagination models.Pagination  `json:"pagination"`
}

type GetQuestionInput struct {
	ID         uint
	ViewerID   uint
	RenderHTML bool
}

// QuestionDetail is a question with its active answers, annotated for the viewer.
type QuestionDetail struct {
	Question *models.Question `json:"question"`
	Answers  []*models.Answer `json:"answers"`
}

// UpdateQuestionInput carries the mutable fields; nil means unchanged.
type UpdateQuestionInput struct {
	ID       uint
	EditorID uint
	Title    *string
	Content  *string
	Tags     *[]string
}

type CreateAnswerInput struct {
	QuestionID uint
	AuthorID   uint
	Content    string
}

type EditAnswerInput struct {
	AnswerID uint
	EditorID uint
	Content  string
	Reason   string
}

type FlagInput struct {
	Target      models.VoteTarget
	TargetID    uint
	UserID      uint
	Reason      models.FlagReason
	Description string
}

// ActivityType selects what UserActivity returns.
type ActivityType string

const (
	ActivityAll       ActivityType = "all"
	ActivityQuestions ActivityType = "questions"
	ActivityAnswers   ActivityType = "answers"
)

type UserActivityInput struct {
	UserID uint
	Type   ActivityType
	Page   int
	Limit  int
}

// UserActivity is a user's recent questions and answers.
type UserActivity struct {
	Questions  []*models.Question `json:"questions,omitempty"`
	Answers    []*models.Answer   `json:"answers,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
}

type FlagPage struct {
	Flags      []*models.ModerationFlag `json:"flags"`
	Pagination models.Pagination        `json:"pagination"`
}

func (s *CommunityService) CreateQuestion(ctx context.Context, in CreateQuestionInput) (q *models.Question, err error) {
	ctx, span := observability.StartSpan(ctx, "community.CreateQuestion", attribute.Int("author.id", int(in.AuthorID)))
	defer func() { observability.EndSpan(span, err) }()

	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	if err := validateQuestionText(title, content); err != nil {
		return nil, err
	}
	category := in.Category
	if category == "" {
		category = models.CategoryGeneral
	}
	if !category.Valid() {
		return nil, models.NewValidationError("Invalid category")
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	q = &models.Question{
		Title:        validation.StripTags(title),
		Content:      validation.SanitizeUGC(content),
		AuthorID:     in.AuthorID,
		Category:     category,
		Status:       models.QuestionActive,
		LastActivity: now,
		Attachments:  in.Attachments,
	}
	for _, t := range tags {
		q.Tags = append(q.Tags, models.QuestionTag{Tag: t})
	}
	if err := s.questions.Create(ctx, q); err != nil {
		return nil, internal(err)
	}
	q.TagNames = tags
	cache.InvalidateCommunity(ctx, in.AuthorID)
	return q, nil
}

func validateQuestionText(title, content string) error {
	if title == "" {
		return models.NewValidationError("Title is required")
	}
	if !validation.CheckLength(title, models.MaxQuestionTitle) {
		return models.NewValidationError("Title too long (max 300 characters)")
	}
	if content == "" {
		return models.NewValidationError("Content is required")
	}
	if !validation.CheckLength(content, models.MaxQuestionContent) {
		return models.NewValidationError("Content too long (max 5000 characters)")
	}
	return nil
}

// normalizeTags lowercases, trims and de-duplicates tags.
func normalizeTags(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		if !validation.CheckLength(t, models.MaxTagLength) {
			return nil, models.NewValidationError("Tag too long (max 50 characters)")
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags, nil
}

func (s *CommunityService) ListQuestions(ctx context.Context, in ListQuestionsInput) (*QuestionPage, error) {
	if in.Category != "" && in.Category != "all" && !in.Category.Valid() {
		return nil, models.NewValidationError("Invalid category")
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, models.NewValidationError("Invalid status")
	}
	if !in.Sort.Public() {
		return nil, models.NewValidationError("Invalid sort")
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	page := repository.Page{Page: in.Page, Limit: in.Limit}.Normalize(defaultQuestionLimit, maxQuestionLimit)
	questions, total, err := s.questions.List(ctx, repository.QuestionFilter{
		Category: in.Category,
		Tags:     tags,
		Search:   in.Search,
		Status:   in.Status,
		Sort:     in.Sort,
	}, page)
	if err != nil {
		return nil, internal(err)
	}
	if questions == nil {
		questions = []*models.Question{}
	}
	return &QuestionPage{
		Questions:  questions,
		Pagination: models.NewPagination(page.Page, page.Limit, total),
	}, nil
}

// GetQuestion returns the question with its answers. A signed-in viewer's
// first read within the dedup window counts as a view.
func (s *CommunityService) GetQuestion(ctx context.Context, in GetQuestionInput) (detail *QuestionDetail, err error) {
	ctx, span := observability.StartSpan(ctx, "community.GetQuestion", attribute.Int("question.id", int(in.ID)))
	defer func() { observability.EndSpan(span, err) }()

	q, err := s.visibleQuestion(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	if in.ViewerID != 0 {
		counted, err := s.questions.RecordView(ctx, q.ID, in.ViewerID, s.now().UTC())
		if err != nil {
			middleware.Logger.WarnContext(ctx, "failed to record question view", "question_id", q.ID, "error", err)
		}
		if counted {
			q.ViewCount++
		}
	}

	answers, err := s.answers.ListForQuestion(ctx, q.ID)
	if err != nil {
		return nil, internal(err)
	}
	if answers == nil {
		answers = []*models.Answer{}
	}

	if in.ViewerID != 0 {
		if err := s.annotateVotes(ctx, q, answers, in.ViewerID); err != nil {
			return nil, internal(err)
		}
	}
	if in.RenderHTML && s.featureOn(featureflags.MarkdownRender, in.ViewerID) {
		if err := renderBodies(q, answers); err != nil {
			return nil, internal(err)
		}
	}
	return &QuestionDetail{Question: q, Answers: answers}, nil
}

func (s *CommunityService) featureOn(flag featureflags.Flag, userID uint) bool {
	return s.features != nil && s.features.Enabled(flag, userID)
}

func (s *CommunityService) annotateVotes(ctx context.Context, q *models.Question, answers []*models.Answer, viewerID uint) error {
	vote, err := s.votes.Get(ctx, models.VoteTargetQuestion, q.ID, viewerID)
	if err != nil {
		return err
	}
	q.UserVote = vote
	if len(answers) == 0 {
		return nil
	}

	answerIDs := make([]uint, 0, len(answers))
	var commentIDs []uint
	for _, a := range answers {
		answerIDs = append(answerIDs, a.ID)
		for _, c := range a.Comments {
			commentIDs = append(commentIDs, c.ID)
		}
	}
	answerVotes, err := s.votes.GetMany(ctx, models.VoteTargetAnswer, answerIDs, viewerID)
	if err != nil {
		return err
	}
	commentVotes, err := s.votes.GetMany(ctx, models.VoteTargetComment, commentIDs, viewerID)
	if err != nil {
		return err
	}
	for _, a := range answers {
		a.UserVote = voteOrNone(answerVotes, a.ID)
		for i := range a.Comments {
			a.Comments[i].UserVote = voteOrNone(commentVotes, a.Comments[i].ID)
		}
	}
	return nil
}

func voteOrNone(votes map[uint]models.VoteType, id uint) models.VoteType {
	if v, ok := votes[id]; ok {
		return v
	}
	return models.VoteNone
}

func renderBodies(q *models.Question, answers []*models.Answer) error {
	html, err := validation.RenderMarkdown(q.Content)
	if err != nil {
		return err
	}
	q.ContentHTML = html
	for _, a := range answers {
		if a.ContentHTML, err = validation.RenderMarkdown(a.Content); err != nil {
			return err
		}
	}
	return nil
}

// visibleQuestion loads a question, hiding deleted ones.
func (s *CommunityService) visibleQuestion(ctx context.Context, id uint) (*models.Question, error) {
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Question", id)
	}
	if q.Status == models.QuestionDeleted {
		return nil, models.NewNotFoundError("Question", id)
	}
	return q, nil
}

func validVote(vote models.VoteType) error {
	if vote != models.VoteUp && vote != models.VoteDown {
		return models.NewValidationError("vote must be upvote or downvote")
	}
	return nil
}

func (s *CommunityService) VoteQuestion(ctx context.Context, id, voterID uint, vote models.VoteType) (state *models.VoteState, err error) {
	ctx, span := observability.StartSpan(ctx, "community.VoteQuestion",
		attribute.Int("question.id", int(id)), attribute.String("vote", string(vote)))
	defer func() { observability.EndSpan(span, err) }()

	if err := validVote(vote); err != nil {
		return nil, err
	}
	q, err := s.visibleQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.AuthorID == voterID {
		return nil, models.NewSelfVoteError("You cannot vote on your own question")
	}
	state, err = s.votes.Cast(ctx, models.VoteTargetQuestion, id, voterID, vote)
	if err != nil {
		return nil, notFoundOr(err, "Question", id)
	}
	cache.InvalidateCommunity(ctx)
	return state, nil
}

func (s *CommunityService) VoteAnswer(ctx context.Context, id, voterID uint, vote models.VoteType) (state *models.VoteState, err error) {
	ctx, span := observability.StartSpan(ctx, "community.VoteAnswer",
		attribute.Int("answer.id", int(id)), attribute.String("vote", string(vote)))
	defer func() { observability.EndSpan(span, err) }()

	if err := validVote(vote); err != nil {
		return nil, err
	}
	a, err := s.activeAnswer(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.AuthorID == voterID {
		return nil, models.NewSelfVoteError("You cannot vote on your own answer")
	}
	state, err = s.votes.Cast(ctx, models.VoteTargetAnswer, id, voterID, vote)
	if err != nil {
		return nil, notFoundOr(err, "Answer", id)
	}
	return state, nil
}

// VoteComment toggles an upvote on a comment. Comments carry no downvotes.
func (s *CommunityService) VoteComment(ctx context.Context, answerID, commentID, voterID uint, vote models.VoteType) (*models.VoteState, error) {
	if vote == "" {
		vote = models.VoteUp
	}
	if vote != models.VoteUp {
		return nil, models.NewValidationError("comments only accept upvotes")
	}
	if _, err := s.activeAnswer(ctx, answerID); err != nil {
		return nil, err
	}
	if _, err := s.answers.GetComment(ctx, answerID, commentID); err != nil {
		return nil, notFoundOr(err, "Comment", commentID)
	}
	state, err := s.votes.Cast(ctx, models.VoteTargetComment, commentID, voterID, vote)
	if err != nil {
		return nil, notFoundOr(err, "Comment", commentID)
	}
	return state, nil
}

func (s *CommunityService) activeAnswer(ctx context.Context, id uint) (*models.Answer, error) {
	a, err := s.answers.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Answer", id)
	}
	if a.Status != models.AnswerActive {
		return nil, models.NewNotFoundError("Answer", id)
	}
	return a, nil
}

func (s *CommunityService) UpdateQuestion(ctx context.Context, in UpdateQuestionInput) (*models.Question, error) {
	q, err := s.questions.GetByID(ctx, in.ID)
	if err != nil {
		return nil, notFoundOr(err, "Question", in.ID)
	}
	if q.Status == models.QuestionDeleted {
		return nil, models.NewInvalidOperationError("Cannot edit a deleted question")
	}
	if q.AuthorID != in.EditorID {
		return nil, models.NewForbiddenError("Only the author can edit this question")
	}

	title, content := q.Title, q.Content
	if in.Title != nil {
		title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		content = strings.TrimSpace(*in.Content)
	}
	if err := validateQuestionText(title, content); err != nil {
		return nil, err
	}
	var tags []string
	if in.Tags != nil {
		if tags, err = normalizeTags(*in.Tags); err != nil {
			return nil, err
		}
	}

	q.Title = validation.StripTags(title)
	q.Content = validation.SanitizeUGC(content)
	q.LastActivity = s.now().UTC()
	if err := s.questions.UpdateContent(ctx, q, tags, in.Tags != nil); err != nil {
		return nil, internal(err)
	}
	return q, nil
}

// DeleteQuestion soft-deletes a question. The author and admins may do so.
func (s *CommunityService) DeleteQuestion(ctx context.Context, id uint, requester models.Principal) error {
	q, err := s.visibleQuestion(ctx, id)
	if err != nil {
		return err
	}
	if q.AuthorID != requester.ID && !requester.IsAdmin() {
		return models.NewForbiddenError("Not authorized to delete this question")
	}
	if err := s.questions.SetStatus(ctx, id, models.QuestionDeleted); err != nil {
		return notFoundOr(err, "Question", id)
	}
	cache.InvalidateCommunity(ctx, q.AuthorID)
	return nil
}

func (s *CommunityService) CreateAnswer(ctx context.Context, in CreateAnswerInput) (a *models.Answer, err error) {
	ctx, span := observability.StartSpan(ctx, "community.CreateAnswer", attribute.Int("question.id", int(in.QuestionID)))
	defer func() { observability.EndSpan(span, err) }()

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Answer content is required")
	}
	if !validation.CheckLength(content, models.MaxAnswerContent) {
		return nil, models.NewValidationError("Answer too long (max 10000 characters)")
	}

	a = &models.Answer{
		QuestionID: in.QuestionID,
		AuthorID:   in.AuthorID,
		Content:    validation.SanitizeUGC(content),
		Status:     models.AnswerActive,
		Comments:   []models.AnswerComment{},
	}
	if err := s.answers.Create(ctx, a, s.now().UTC()); err != nil {
		return nil, notFoundOr(err, "Question", in.QuestionID)
	}
	cache.InvalidateCommunity(ctx, in.AuthorID)
	return a, nil
}

// MarkBestAnswer moves the best-answer mark to answerID. Only the question's
// author may do so; a failure leaves the previous mark untouched.
func (s *CommunityService) MarkBestAnswer(ctx context.Context, answerID, requesterID uint) (a *models.Answer, err error) {
	ctx, span := observability.StartSpan(ctx, "community.MarkBestAnswer", attribute.Int("answer.id", int(answerID)))
	defer func() { observability.EndSpan(span, err) }()

	a, err = s.answers.MarkBest(ctx, answerID, func(q *models.Question) error {
		if q.AuthorID != requesterID {
			return models.NewForbiddenError("Only the question author can mark the best answer")
		}
		return nil
	})
	if err != nil {
		return nil, notFoundOr(err, "Answer", answerID)
	}
	cache.InvalidateCommunity(ctx)
	return a, nil
}

func (s *CommunityService) AddComment(ctx context.Context, answerID, authorID uint, content string) (*models.AnswerComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("Comment content is required")
	}
	if !validation.CheckLength(content, models.MaxCommentContent) {
		return nil, models.NewValidationError("Comment too long (max 1000 characters)")
	}
	if _, err := s.activeAnswer(ctx, answerID); err != nil {
		return nil, err
	}
	c := &models.AnswerComment{
		AnswerID: answerID,
		AuthorID: authorID,
		Content:  validation.StripTags(content),
	}
	if err := s.answers.AddComment(ctx, c); err != nil {
		return nil, internal(err)
	}
	c.UserVote = models.VoteNone
	return c, nil
}

// EditAnswer replaces the body and keeps the previous one in the edit history.
func (s *CommunityService) EditAnswer(ctx context.Context, in EditAnswerInput) (*models.Answer, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Answer content is required")
	}
	if !validation.CheckLength(content, models.MaxAnswerContent) {
		return nil, models.NewValidationError("Answer too long (max 10000 characters)")
	}
	a, err := s.activeAnswer(ctx, in.AnswerID)
	if err != nil {
		return nil, err
	}
	if a.AuthorID != in.EditorID {
		return nil, models.NewForbiddenError("Only the author can edit this answer")
	}

	now := s.now().UTC()
	a.PushEdit(models.EditRecord{
		Content:  a.Content,
		EditedAt: now,
		Reason:   validation.StripTags(strings.TrimSpace(in.Reason)),
	})
	a.Content = validation.SanitizeUGC(content)
	a.LastEditedAt = &now
	if err := s.answers.SaveEdit(ctx, a); err != nil {
		return nil, internal(err)
	}
	return a, nil
}

func (s *CommunityService) DeleteAnswer(ctx context.Context, answerID uint, requester models.Principal) error {
	a, err := s.activeAnswer(ctx, answerID)
	if err != nil {
		return err
	}
	if a.AuthorID != requester.ID && !requester.IsAdmin() {
		return models.NewForbiddenError("Not authorized to delete this answer")
	}
	if err := s.answers.Delete(ctx, a); err != nil {
		return notFoundOr(err, "Answer", answerID)
	}
	cache.InvalidateCommunity(ctx, a.AuthorID)
	return nil
}

// Flag reports a question or an answer. A user holds at most one open flag per target.
func (s *CommunityService) Flag(ctx context.Context, in FlagInput) (*models.ModerationFlag, error) {
	switch in.Target {
	case models.VoteTargetQuestion:
		if _, err := s.visibleQuestion(ctx, in.TargetID); err != nil {
			return nil, err
		}
	case models.VoteTargetAnswer:
		if _, err := s.activeAnswer(ctx, in.TargetID); err != nil {
			return nil, err
		}
	default:
		return nil, models.NewValidationError("Only questions and answers can be flagged")
	}
	if !in.Reason.ValidFor(in.Target) {
		return nil, models.NewValidationError("Invalid flag reason")
	}
	description := validation.StripTags(strings.TrimSpace(in.Description))
	if validation.Length(description) > models.MaxFlagDescription {
		return nil, models.NewValidationError("Description too long (max 500 characters)")
	}

	open, err := s.flags.HasOpen(ctx, in.Target, in.TargetID, in.UserID)
	if err != nil {
		return nil, internal(err)
	}
	if open {
		return nil, models.NewConflictError("You have already flagged this "+string(in.Target), nil)
	}
	f := &models.ModerationFlag{
		TargetType:  in.Target,
		TargetID:    in.TargetID,
		FlaggedBy:   in.UserID,
		Reason:      in.Reason,
		Description: description,
	}
	if err := s.flags.Create(ctx, f); err != nil {
		if isUniqueConstraintError(err) {
			return nil, models.NewConflictError("You have already flagged this "+string(in.Target), err)
		}
		return nil, internal(err)
	}
	return f, nil
}

func (s *CommunityService) ListOpenFlags(ctx context.Context, actor models.Principal, page, limit int) (*FlagPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	p := repository.Page{Page: page, Limit: limit}.Normalize(20, maxQuestionLimit)
	flags, total, err := s.flags.ListOpen(ctx, p)
	if err != nil {
		return nil, internal(err)
	}
	if flags == nil {
		flags = []*models.ModerationFlag{}
	}
	return &FlagPage{Flags: flags, Pagination: models.NewPagination(p.Page, p.Limit, total)}, nil
}

func (s *CommunityService) ResolveFlag(ctx context.Context, actor models.Principal, flagID uint) (*models.ModerationFlag, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	f, err := s.flags.Resolve(ctx, flagID, actor.ID)
	if err != nil {
		return nil, notFoundOr(err, "Flag", flagID)
	}
	return f, nil
}

// SetQuestionStatus applies a manual moderation transition.
func (s *CommunityService) SetQuestionStatus(ctx context.Context, actor models.Principal, id uint, status models.QuestionStatus) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if !status.Valid() {
		return models.NewValidationError("Invalid status")
	}
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "Question", id)
	}
	if !q.Status.CanTransitionTo(status) {
		return models.NewInvalidOperationError("Cannot move question from " + string(q.Status) + " to " + string(status))
	}
	if err := s.questions.SetStatus(ctx, id, status); err != nil {
		return notFoundOr(err, "Question", id)
	}
	cache.InvalidateCommunity(ctx, q.AuthorID)
	return nil
}

func (s *CommunityService) SetPinned(ctx context.Context, actor models.Principal, id uint, pinned bool) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := s.visibleQuestion(ctx, id); err != nil {
		return err
	}
	return notFoundOr(s.questions.SetPinned(ctx, id, pinned), "Question", id)
}

// Stats is served from Redis when warm.
func (s *CommunityService) Stats(ctx context.Context, actor models.Principal) (*models.CommunityStats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	stats, err := cache.Aside(ctx, cache.CommunityStatsKey, cache.StatsTTL, s.questions.Stats)
	if err != nil {
		return nil, internal(err)
	}
	return stats, nil
}

func (s *CommunityService) UserActivity(ctx context.Context, in UserActivityInput) (*UserActivity, error) {
	switch in.Type {
	case "", ActivityAll:
		return cache.Aside(ctx, cache.UserActivityKey(in.UserID), cache.UserActivityTTL, func(ctx context.Context) (*UserActivity, error) {
			return s.activityPreview(ctx, in.UserID)
		})
	case ActivityQuestions:
		page := repository.Page{Page: in.Page, Limit: in.Limit}.Normalize(defaultQuestionLimit, maxQuestionLimit)
		questions, total, err := s.questions.List(ctx, repository.QuestionFilter{AuthorID: in.UserID, Sort: repository.SortNewest}, page)
		if err != nil {
			return nil, internal(err)
		}
		p := models.NewPagination(page.Page, page.Limit, total)
		return &UserActivity{Questions: questions, Pagination: &p}, nil
	case ActivityAnswers:
		page := repository.Page{Page: in.Page, Limit: in.Limit}.Normalize(defaultQuestionLimit, maxQuestionLimit)
		answers, total, err := s.answers.ListByAuthor(ctx, in.UserID, page)
		if err != nil {
			return nil, internal(err)
		}
		p := models.NewPagination(page.Page, page.Limit, total)
		return &UserActivity{Answers: answers, Pagination: &p}, nil
	default:
		return nil, models.NewValidationError("type must be all, questions or answers")
	}
}

func (s *CommunityService) activityPreview(ctx context.Context, userID uint) (*UserActivity, error) {
	page := repository.Page{Page: 1, Limit: activityPreviewLimit}
	questions, _, err := s.questions.List(ctx, repository.QuestionFilter{AuthorID: userID, Sort: repository.SortNewest}, page)
	if err != nil {
		return nil, internal(err)
	}
	answers, _, err := s.answers.ListByAuthor(ctx, userID, page)
	if err != nil {
		return nil, internal(err)
	}
	if questions == nil {
		questions = []*models.Question{}
	}
	if answers == nil {
		answers = []*models.Answer{}
	}
	return &UserActivity{Questions: questions, Answers: answers}, nil
}
