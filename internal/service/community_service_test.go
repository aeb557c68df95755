package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"estatehub/internal/cache"
	"estatehub/internal/featureflags"
	"estatehub/internal/models"
	"estatehub/internal/observability"
	"estatehub/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) question(t *testing.T, author *models.User, title string) *models.Question {
	t.Helper()
	q, err := e.community.CreateQuestion(context.Background(), CreateQuestionInput{
		AuthorID: author.ID,
		Title:    title,
		Content:  "What should I check before signing a lease?",
		Category: models.CategoryRental,
		Tags:     []string{"lease", "Rental "},
	})
	require.NoError(t, err)
	return q
}

func (e *env) answer(t *testing.T, q *models.Question, author *models.User, content string) *models.Answer {
	t.Helper()
	a, err := e.community.CreateAnswer(context.Background(), CreateAnswerInput{QuestionID: q.ID, AuthorID: author.ID, Content: content})
	require.NoError(t, err)
	return a
}

func TestCommunityService_CreateQuestion_Validation(t *testing.T) {
	t.Parallel()
	svc := NewCommunityService(nil, nil, nil, nil, nil)

	cases := []struct {
		name string
		in   CreateQuestionInput
	}{
		{"empty title", CreateQuestionInput{Title: "  ", Content: "body"}},
		{"long title", CreateQuestionInput{Title: strings.Repeat("t", 301), Content: "body"}},
		{"empty content", CreateQuestionInput{Title: "title", Content: ""}},
		{"long content", CreateQuestionInput{Title: "title", Content: strings.Repeat("c", 5001)}},
		{"unknown category", CreateQuestionInput{Title: "title", Content: "body", Category: "gardening"}},
		{"long tag", CreateQuestionInput{Title: "title", Content: "body", Tags: []string{strings.Repeat("x", 51)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateQuestion(context.Background(), tc.in)
			assertKind(t, err, models.KindValidation)
		})
	}
}

func TestCommunityService_CreateQuestion_Defaults(t *testing.T) {
	e := newEnv(t)
	author := e.user(t, "alice")

	q := e.question(t, author, "Lease <b>checklist</b>")

	assert.Equal(t, models.QuestionActive, q.Status)
	assert.False(t, q.IsAnswered)
	assert.Equal(t, "Lease checklist", q.Title)
	assert.Equal(t, []string{"lease", "rental"}, q.TagNames)
	assert.WithinDuration(t, e.clock.now, q.LastActivity, time.Millisecond)
}

// Author A asks; B upvotes twice and ends with no vote.
func TestCommunityService_ScenarioA_VoteToggle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	q := e.question(t, a, "Deposit rules")

	state, err := e.community.VoteQuestion(ctx, q.ID, b.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Score)
	assert.Equal(t, models.VoteUp, state.Vote)

	detail, err := e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID, ViewerID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, models.VoteUp, detail.Question.UserVote)
	assert.Equal(t, 1, detail.Question.VoteScore)

	state, err = e.community.VoteQuestion(ctx, q.ID, b.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Score)
	assert.Equal(t, models.VoteNone, state.Vote)

	detail, err = e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID, ViewerID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, models.VoteNone, detail.Question.UserVote)
	assert.Equal(t, 0, detail.Question.VoteScore)
}

func TestCommunityService_VoteSwitchKeepsMutualExclusion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	q := e.question(t, a, "Switching votes")
	ans := e.answer(t, q, a, "Check the deposit clause.")

	sequence := []models.VoteType{models.VoteUp, models.VoteDown, models.VoteDown, models.VoteDown, models.VoteUp}
	for _, v := range sequence {
		state, err := e.community.VoteAnswer(ctx, ans.ID, b.ID, v)
		require.NoError(t, err)
		assert.Equal(t, state.Upvotes-state.Downvotes, state.Score)
		assert.LessOrEqual(t, state.Upvotes+state.Downvotes, 1, "voter counted on both sides")
	}

	var rows int64
	require.NoError(t, e.db.Model(&models.Vote{}).Where("target_type = ? AND target_id = ?", models.VoteTargetAnswer, ans.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestCommunityService_VoteValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	q := e.question(t, a, "Vote rules")
	ans := e.answer(t, q, b, "An answer")
	comment, err := e.community.AddComment(ctx, ans.ID, b.ID, "self comment")
	require.NoError(t, err)

	_, err = e.community.VoteQuestion(ctx, q.ID, b.ID, "sideways")
	assertKind(t, err, models.KindValidation)

	_, err = e.community.VoteQuestion(ctx, 9999, b.ID, models.VoteUp)
	assertKind(t, err, models.KindNotFound)

	_, err = e.community.VoteAnswer(ctx, ans.ID, b.ID, models.VoteUp)
	assertKind(t, err, models.KindForbiddenSelfVote)

	_, err = e.community.VoteComment(ctx, ans.ID, comment.ID, a.ID, models.VoteDown)
	assertKind(t, err, models.KindValidation)

	// comment authors may upvote their own comments
	state, err := e.community.VoteComment(ctx, ans.ID, comment.ID, b.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Score)
}

func TestCommunityService_VoteComment_ScopedToAnswer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	q := e.question(t, a, "Comment scope")
	first := e.answer(t, q, b, "first")
	second := e.answer(t, q, b, "second")
	comment, err := e.community.AddComment(ctx, first.ID, b.ID, "on first")
	require.NoError(t, err)

	_, err = e.community.VoteComment(ctx, second.ID, comment.ID, a.ID, "")
	assertKind(t, err, models.KindNotFound)

	_, err = e.community.VoteComment(ctx, 9999, comment.ID, a.ID, "")
	assertKind(t, err, models.KindNotFound)

	state, err := e.community.VoteComment(ctx, first.ID, comment.ID, a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.VoteUp, state.Vote)
	assert.Equal(t, 1, state.Score)

	state, err = e.community.VoteComment(ctx, first.ID, comment.ID, a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.VoteNone, state.Vote)
	assert.Equal(t, 0, state.Score)
}

func TestCommunityService_ConcurrentVotesKeepScoreConsistent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	author := e.user(t, "author")
	q := e.question(t, author, "Busy question")

	voters := make([]*models.User, 10)
	for i := range voters {
		voters[i] = e.user(t, fmt.Sprintf("voter%d", i))
	}

	var wg sync.WaitGroup
	for i, v := range voters {
		wg.Add(1)
		go func(i int, v *models.User) {
			defer wg.Done()
			vote := models.VoteUp
			if i%3 == 0 {
				vote = models.VoteDown
			}
			_, err := e.community.VoteQuestion(ctx, q.ID, v.ID, vote)
			assert.NoError(t, err)
		}(i, v)
	}
	wg.Wait()

	var stored models.Question
	require.NoError(t, e.db.First(&stored, q.ID).Error)
	assert.Equal(t, 6, stored.UpvoteCount)
	assert.Equal(t, 4, stored.DownvoteCount)
	assert.Equal(t, stored.UpvoteCount-stored.DownvoteCount, stored.VoteScore)
}

// A non-author cannot edit, and an author cannot vote on their own question.
func TestCommunityService_AuthorizationScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	author := e.user(t, "alice")
	d := e.user(t, "dave")
	q := e.question(t, author, "Who may edit")

	title := "hijacked"
	_, err := e.community.UpdateQuestion(ctx, UpdateQuestionInput{ID: q.ID, EditorID: d.ID, Title: &title})
	assertKind(t, err, models.KindForbidden)

	dq := e.question(t, d, "Dave's own question")
	_, err = e.community.VoteQuestion(ctx, dq.ID, d.ID, models.VoteUp)
	assertKind(t, err, models.KindForbiddenSelfVote)
}

func TestCommunityService_UpdateQuestion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	author := e.user(t, "alice")
	admin := e.admin(t, "root")
	q := e.question(t, author, "Original title")

	e.clock.Advance(time.Hour)
	title := "Edited title"
	tags := []string{"deposit"}
	updated, err := e.community.UpdateQuestion(ctx, UpdateQuestionInput{ID: q.ID, EditorID: author.ID, Title: &title, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "Edited title", updated.Title)
	assert.Equal(t, []string{"deposit"}, updated.TagNames)

	stored, err := e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"deposit"}, stored.Question.TagNames)
	assert.WithinDuration(t, e.clock.now, stored.Question.LastActivity, time.Millisecond)

	require.NoError(t, e.community.DeleteQuestion(ctx, q.ID, principal(admin)))
	_, err = e.community.UpdateQuestion(ctx, UpdateQuestionInput{ID: q.ID, EditorID: author.ID, Title: &title})
	assertKind(t, err, models.KindInvalidOperation)
}

func TestCommunityService_DeleteQuestion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	author := e.user(t, "alice")
	other := e.user(t, "mallory")
	q := e.question(t, author, "Delete me")

	err := e.community.DeleteQuestion(ctx, q.ID, principal(other))
	assertKind(t, err, models.KindForbidden)

	require.NoError(t, e.community.DeleteQuestion(ctx, q.ID, principal(author)))

	_, err = e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID})
	assertKind(t, err, models.KindNotFound)

	page, err := e.community.ListQuestions(ctx, ListQuestionsInput{})
	require.NoError(t, err)
	assert.Empty(t, page.Questions)
}

func TestCommunityService_ViewDedup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	author := e.user(t, "alice")
	viewer := e.user(t, "victor")
	q := e.question(t, author, "Views")

	for i := 0; i < 2; i++ {
		_, err := e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID, ViewerID: viewer.ID})
		require.NoError(t, err)
	}
	// anonymous reads never count
	_, err := e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID})
	require.NoError(t, err)

	var stored models.Question
	require.NoError(t, e.db.First(&stored, q.ID).Error)
	assert.Equal(t, 1, stored.ViewCount)

	e.clock.Advance(25 * time.Hour)
	detail, err := e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID, ViewerID: viewer.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, detail.Question.ViewCount)
}

// A answers nothing; B and C answer; A marks C's answer best.
func TestCommunityService_ScenarioB_MarkBest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	c := e.user(t, "carol")
	q := e.question(t, a, "Best answer")
	answer1 := e.answer(t, q, b, "Answer one")
	answer2 := e.answer(t, q, c, "Answer two")

	best, err := e.community.MarkBestAnswer(ctx, answer1.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, best.IsBestAnswer)

	best, err = e.community.MarkBestAnswer(ctx, answer2.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnswerStateBest, best.State())

	detail, err := e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID})
	require.NoError(t, err)
	require.NotNil(t, detail.Question.BestAnswerID)
	assert.Equal(t, answer2.ID, *detail.Question.BestAnswerID)
	require.Len(t, detail.Answers, 2)
	assert.Equal(t, answer2.ID, detail.Answers[0].ID, "best answer sorts first")
	assert.True(t, detail.Answers[0].IsBestAnswer)
	assert.True(t, detail.Answers[0].IsAcceptedByAuthor)
	assert.False(t, detail.Answers[1].IsBestAnswer)
	assert.False(t, detail.Answers[1].IsAcceptedByAuthor)
}

func TestCommunityService_MarkBest_NonAuthorLeavesStateIntact(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	q := e.question(t, a, "Guarded")
	first := e.answer(t, q, b, "first")
	second := e.answer(t, q, b, "second")
	_, err := e.community.MarkBestAnswer(ctx, first.ID, a.ID)
	require.NoError(t, err)

	_, err = e.community.MarkBestAnswer(ctx, second.ID, b.ID)
	assertKind(t, err, models.KindForbidden)

	_, err = e.community.MarkBestAnswer(ctx, 9999, a.ID)
	assertKind(t, err, models.KindNotFound)

	var bests []models.Answer
	require.NoError(t, e.db.Where("question_id = ? AND is_best_answer = ?", q.ID, true).Find(&bests).Error)
	require.Len(t, bests, 1)
	assert.Equal(t, first.ID, bests[0].ID)
}

func TestCommunityService_ConcurrentMarkBestLeavesOneBest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	q := e.question(t, a, "Race")
	answers := make([]*models.Answer, 5)
	for i := range answers {
		answers[i] = e.answer(t, q, b, fmt.Sprintf("answer %d", i))
	}

	var wg sync.WaitGroup
	for _, ans := range answers {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := e.community.MarkBestAnswer(ctx, id, a.ID)
			assert.NoError(t, err)
		}(ans.ID)
	}
	wg.Wait()

	var bests []models.Answer
	require.NoError(t, e.db.Where("question_id = ? AND is_best_answer = ?", q.ID, true).Find(&bests).Error)
	require.Len(t, bests, 1)
	var stored models.Question
	require.NoError(t, e.db.First(&stored, q.ID).Error)
	require.NotNil(t, stored.BestAnswerID)
	assert.Equal(t, bests[0].ID, *stored.BestAnswerID)
}

func TestCommunityService_CreateAnswer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	admin := e.admin(t, "root")
	q := e.question(t, a, "Answer me")

	_, err := e.community.CreateAnswer(ctx, CreateAnswerInput{QuestionID: q.ID, AuthorID: b.ID, Content: " "})
	assertKind(t, err, models.KindValidation)
	_, err = e.community.CreateAnswer(ctx, CreateAnswerInput{QuestionID: q.ID, AuthorID: b.ID, Content: strings.Repeat("a", 10001)})
	assertKind(t, err, models.KindValidation)
	_, err = e.community.CreateAnswer(ctx, CreateAnswerInput{QuestionID: 9999, AuthorID: b.ID, Content: "hi"})
	assertKind(t, err, models.KindNotFound)

	e.clock.Advance(time.Minute)
	e.answer(t, q, b, "Read the whole lease.")
	var stored models.Question
	require.NoError(t, e.db.First(&stored, q.ID).Error)
	assert.Equal(t, 1, stored.AnswerCount)
	assert.True(t, stored.IsAnswered)
	assert.WithinDuration(t, e.clock.now, stored.LastActivity, time.Millisecond)

	require.NoError(t, e.community.SetQuestionStatus(ctx, principal(admin), q.ID, models.QuestionClosed))
	_, err = e.community.CreateAnswer(ctx, CreateAnswerInput{QuestionID: q.ID, AuthorID: b.ID, Content: "late"})
	assertKind(t, err, models.KindNotFound)
}

func TestCommunityService_AnswerEditAndDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	q := e.question(t, a, "Edits")
	ans := e.answer(t, q, b, "version 0")

	_, err := e.community.EditAnswer(ctx, EditAnswerInput{AnswerID: ans.ID, EditorID: a.ID, Content: "not mine"})
	assertKind(t, err, models.KindForbidden)

	for i := 1; i <= models.MaxEditHistory+2; i++ {
		e.clock.Advance(time.Second)
		_, err := e.community.EditAnswer(ctx, EditAnswerInput{AnswerID: ans.ID, EditorID: b.ID, Content: fmt.Sprintf("version %d", i)})
		require.NoError(t, err)
	}
	var stored models.Answer
	require.NoError(t, e.db.First(&stored, ans.ID).Error)
	assert.Equal(t, fmt.Sprintf("version %d", models.MaxEditHistory+2), stored.Content)
	require.Len(t, stored.EditHistory, models.MaxEditHistory)
	assert.Equal(t, "version 2", stored.EditHistory[0].Content, "oldest entries evicted")
	assert.Equal(t, fmt.Sprintf("version %d", models.MaxEditHistory+1), stored.EditHistory[models.MaxEditHistory-1].Content)
	require.NotNil(t, stored.LastEditedAt)

	_, err = e.community.MarkBestAnswer(ctx, ans.ID, a.ID)
	require.NoError(t, err)
	err = e.community.DeleteAnswer(ctx, ans.ID, principal(a))
	assertKind(t, err, models.KindForbidden)
	require.NoError(t, e.community.DeleteAnswer(ctx, ans.ID, principal(b)))

	var question models.Question
	require.NoError(t, e.db.First(&question, q.ID).Error)
	assert.Nil(t, question.BestAnswerID)
	assert.Equal(t, 0, question.AnswerCount)
	assert.False(t, question.IsAnswered)
}

func TestCommunityService_GetQuestion_AnnotatesViewerVotes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	c := e.user(t, "carol")
	q := e.question(t, a, "Annotations")
	upvoted := e.answer(t, q, b, "upvoted")
	downvoted := e.answer(t, q, b, "downvoted")
	comment, err := e.community.AddComment(ctx, upvoted.ID, b.ID, "nice")
	require.NoError(t, err)

	_, err = e.community.VoteAnswer(ctx, upvoted.ID, c.ID, models.VoteUp)
	require.NoError(t, err)
	_, err = e.community.VoteAnswer(ctx, downvoted.ID, c.ID, models.VoteDown)
	require.NoError(t, err)
	_, err = e.community.VoteComment(ctx, upvoted.ID, comment.ID, c.ID, models.VoteUp)
	require.NoError(t, err)

	detail, err := e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID, ViewerID: c.ID})
	require.NoError(t, err)
	require.Len(t, detail.Answers, 2)
	assert.Equal(t, upvoted.ID, detail.Answers[0].ID, "higher score first")
	assert.Equal(t, models.VoteUp, detail.Answers[0].UserVote)
	assert.Equal(t, models.VoteDown, detail.Answers[1].UserVote)
	require.Len(t, detail.Answers[0].Comments, 1)
	assert.Equal(t, models.VoteUp, detail.Answers[0].Comments[0].UserVote)
	assert.Equal(t, models.VoteNone, detail.Question.UserVote)
}

type featureStub map[featureflags.Flag]bool

func (f featureStub) Enabled(flag featureflags.Flag, _ uint) bool { return f[flag] }

func TestCommunityService_GetQuestion_RenderHTML(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	q, err := e.community.CreateQuestion(ctx, CreateQuestionInput{
		AuthorID: a.ID, Title: "Markdown", Content: "**bold** <script>alert(1)</script>", Category: models.CategoryGeneral,
	})
	require.NoError(t, err)

	detail, err := e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID, RenderHTML: true})
	require.NoError(t, err)
	assert.Empty(t, detail.Question.ContentHTML, "flag off")

	e.community.features = featureStub{featureflags.MarkdownRender: true}
	detail, err = e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID, RenderHTML: true})
	require.NoError(t, err)
	assert.Contains(t, detail.Question.ContentHTML, "<strong>bold</strong>")
	assert.NotContains(t, detail.Question.ContentHTML, "<script>")
}

func TestCommunityService_ListQuestions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	for i := 0; i < 12; i++ {
		e.clock.Advance(time.Minute)
		e.question(t, a, fmt.Sprintf("Question %02d", i))
	}
	popular := e.question(t, a, "Popular one")
	_, err := e.community.VoteQuestion(ctx, popular.ID, b.ID, models.VoteUp)
	require.NoError(t, err)

	page, err := e.community.ListQuestions(ctx, ListQuestionsInput{})
	require.NoError(t, err)
	assert.Len(t, page.Questions, 10)
	assert.Equal(t, models.Pagination{CurrentPage: 1, TotalPages: 2, Total: 13, HasNext: true, HasPrev: false}, page.Pagination)

	page, err = e.community.ListQuestions(ctx, ListQuestionsInput{Sort: repository.SortPopular, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Questions, 1)
	assert.Equal(t, popular.ID, page.Questions[0].ID)

	page, err = e.community.ListQuestions(ctx, ListQuestionsInput{Search: "popular"})
	require.NoError(t, err)
	assert.Len(t, page.Questions, 1)

	_, err = e.community.ListQuestions(ctx, ListQuestionsInput{Sort: "random"})
	assertKind(t, err, models.KindValidation)
	_, err = e.community.ListQuestions(ctx, ListQuestionsInput{Sort: repository.SortNewest})
	assertKind(t, err, models.KindValidation)
	_, err = e.community.ListQuestions(ctx, ListQuestionsInput{Category: "gardening"})
	assertKind(t, err, models.KindValidation)
}

func TestCommunityService_Flags(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	admin := e.admin(t, "root")
	q := e.question(t, a, "Flag me")

	_, err := e.community.Flag(ctx, FlagInput{Target: models.VoteTargetQuestion, TargetID: q.ID, UserID: b.ID, Reason: models.FlagPlagiarism})
	assertKind(t, err, models.KindValidation)

	f, err := e.community.Flag(ctx, FlagInput{Target: models.VoteTargetQuestion, TargetID: q.ID, UserID: b.ID, Reason: models.FlagSpam})
	require.NoError(t, err)

	_, err = e.community.Flag(ctx, FlagInput{Target: models.VoteTargetQuestion, TargetID: q.ID, UserID: b.ID, Reason: models.FlagOther})
	assertKind(t, err, models.KindConflict)

	_, err = e.community.ListOpenFlags(ctx, principal(b), 1, 10)
	assertKind(t, err, models.KindForbidden)

	open, err := e.community.ListOpenFlags(ctx, principal(admin), 1, 10)
	require.NoError(t, err)
	require.Len(t, open.Flags, 1)

	resolved, err := e.community.ResolveFlag(ctx, principal(admin), f.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	// a resolved flag frees the slot
	_, err = e.community.Flag(ctx, FlagInput{Target: models.VoteTargetQuestion, TargetID: q.ID, UserID: b.ID, Reason: models.FlagOther})
	require.NoError(t, err)
}

func TestCommunityService_SetQuestionStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	admin := e.admin(t, "root")
	q := e.question(t, a, "Moderated")

	err := e.community.SetQuestionStatus(ctx, principal(a), q.ID, models.QuestionClosed)
	assertKind(t, err, models.KindForbidden)

	require.NoError(t, e.community.SetQuestionStatus(ctx, principal(admin), q.ID, models.QuestionPendingReview))
	err = e.community.SetQuestionStatus(ctx, principal(admin), q.ID, models.QuestionClosed)
	assertKind(t, err, models.KindInvalidOperation)
	require.NoError(t, e.community.SetQuestionStatus(ctx, principal(admin), q.ID, models.QuestionActive))

	require.NoError(t, e.community.SetPinned(ctx, principal(admin), q.ID, true))
	var stored models.Question
	require.NoError(t, e.db.First(&stored, q.ID).Error)
	assert.True(t, stored.IsPinned)
	assert.Equal(t, models.QuestionActive, stored.Status)
}

func TestCommunityService_UserActivity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	q := e.question(t, b, "Someone else's")
	for i := 0; i < 7; i++ {
		e.question(t, a, fmt.Sprintf("mine %d", i))
		e.answer(t, q, a, fmt.Sprintf("answer %d", i))
	}

	all, err := e.community.UserActivity(ctx, UserActivityInput{UserID: a.ID, Type: ActivityAll})
	require.NoError(t, err)
	assert.Len(t, all.Questions, activityPreviewLimit)
	assert.Len(t, all.Answers, activityPreviewLimit)
	assert.Equal(t, "mine 6", all.Questions[0].Title)

	answers, err := e.community.UserActivity(ctx, UserActivityInput{UserID: a.ID, Type: ActivityAnswers, Limit: 3, Page: 3})
	require.NoError(t, err)
	assert.Len(t, answers.Answers, 1)
	assert.Equal(t, int64(7), answers.Pagination.Total)

	_, err = e.community.UserActivity(ctx, UserActivityInput{UserID: a.ID, Type: "likes"})
	assertKind(t, err, models.KindValidation)
}

func TestCommunityService_Stats_CachedInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	admin := e.admin(t, "root")
	q := e.question(t, a, "Counted")
	e.answer(t, q, b, "answer")
	_, err := e.community.VoteQuestion(ctx, q.ID, b.ID, models.VoteUp)
	require.NoError(t, err)

	_, err = e.community.Stats(ctx, principal(a))
	assertKind(t, err, models.KindForbidden)

	stats, err := e.community.Stats(ctx, principal(admin))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalQuestions)
	assert.Equal(t, int64(1), stats.AnsweredQuestions)
	assert.Equal(t, int64(1), stats.TotalAnswers)
	assert.Equal(t, int64(1), stats.TotalVotes)
	assert.Equal(t, int64(1), stats.Categories[string(models.CategoryRental)])
	assert.True(t, mr.Exists(cache.CommunityStatsKey))

	// a write drops the cached aggregate
	e.question(t, a, "Second")
	assert.False(t, mr.Exists(cache.CommunityStatsKey))
	stats, err = e.community.Stats(ctx, principal(admin))
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalQuestions)
}

func TestCommunityService_GetQuestion_ViewMetricOncePerRead(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "alice")
	b := e.user(t, "bob")
	q := e.question(t, a, "Counting views")

	counted := observability.QuestionViews.WithLabelValues("true")
	deduped := observability.QuestionViews.WithLabelValues("false")
	countedBefore, dedupedBefore := counterValue(t, counted), counterValue(t, deduped)

	_, err := e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID, ViewerID: b.ID})
	require.NoError(t, err)
	_, err = e.community.GetQuestion(ctx, GetQuestionInput{ID: q.ID, ViewerID: b.ID})
	require.NoError(t, err)

	assert.Equal(t, 1.0, counterValue(t, counted)-countedBefore)
	assert.Equal(t, 1.0, counterValue(t, deduped)-dedupedBefore)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
