package server

import (
	"context"
	"time"

	"estatehub/internal/models"
	"estatehub/internal/repository"
	"estatehub/internal/service"

	"github.com/gofiber/fiber/v2"
)

type voteRequest struct {
	VoteType models.VoteType `json:"vote_type"`
}

type flagRequest struct {
	Reason      models.FlagReason `json:"reason"`
	Description string            `json:"description"`
}

// GetQuestions handles GET /api/questions
// @Summary Browse questions
// @Tags community
// @Produce json
// @Param category query string false "Category or all"
// @Param tags query string false "Comma separated tags, any of"
// @Param search query string false "Free text over title, content and tags"
// @Param status query string false "Question status" default(active)
// @Param sort query string false "recent, popular or mostAnswered" default(recent)
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} models.SuccessResponse{data=service.QuestionPage}
// @Failure 400 {object} models.ErrorResponse
// @Router /questions [get]
func (s *Server) GetQuestions(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	page := parsePagination(c, 10)
	result, err := s.community.ListQuestions(ctx, service.ListQuestionsInput{
		Category: models.QuestionCategory(c.Query("category")),
		Tags:     splitTags(c.Query("tags")),
		Search:   c.Query("search"),
		Status:   models.QuestionStatus(c.Query("status")),
		Sort:     repository.QuestionSort(c.Query("sort")),
		Page:     page.Page,
		Limit:    page.Limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, result)
}

// CreateQuestion handles POST /api/questions
// @Summary Ask a question
// @Tags community
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{title=string,content=string,category=string,tags=[]string} true "Question"
// @Success 201 {object} models.SuccessResponse{data=models.Question}
// @Failure 400 {object} models.ErrorResponse
// @Router /questions [post]
func (s *Server) CreateQuestion(c *fiber.Ctx) error {
	var req struct {
		Title       string                  `json:"title"`
		Content     string                  `json:"content"`
		Category    models.QuestionCategory `json:"category"`
		Tags        []string                `json:"tags"`
		Attachments []string                `json:"attachments"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	q, err := s.community.CreateQuestion(c.UserContext(), service.CreateQuestionInput{
		AuthorID:    principal(c).ID,
		Title:       req.Title,
		Content:     req.Content,
		Category:    req.Category,
		Tags:        req.Tags,
		Attachments: req.Attachments,
	})
	if err != nil {
		return respondError(c, err)
	}
	return created(c, q)
}

// GetQuestion handles GET /api/questions/:id
// @Summary Question detail
// @Description Counts one view per signed-in viewer per 24 hours. render=html returns sanitized HTML bodies.
// @Tags community
// @Produce json
// @Param id path int true "Question ID"
// @Param render query string false "html to render Markdown"
// @Success 200 {object} models.SuccessResponse{data=service.QuestionDetail}
// @Failure 404 {object} models.ErrorResponse
// @Router /questions/{id} [get]
func (s *Server) GetQuestion(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	detail, err := s.community.GetQuestion(c.UserContext(), service.GetQuestionInput{
		ID:         id,
		ViewerID:   principal(c).ID,
		RenderHTML: c.Query("render") == "html",
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, detail)
}

// UpdateQuestion handles PUT /api/questions/:id
// @Summary Edit a question
// @Tags community
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Param request body object{title=string,content=string,tags=[]string} true "Fields to change"
// @Success 200 {object} models.SuccessResponse{data=models.Question}
// @Failure 403 {object} models.ErrorResponse
// @Router /questions/{id} [put]
func (s *Server) UpdateQuestion(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Title   *string   `json:"title"`
		Content *string   `json:"content"`
		Tags    *[]string `json:"tags"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	q, err := s.community.UpdateQuestion(c.UserContext(), service.UpdateQuestionInput{
		ID:       id,
		EditorID: principal(c).ID,
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, q)
}

// DeleteQuestion handles DELETE /api/questions/:id
// @Summary Delete a question
// @Tags community
// @Produce json
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /questions/{id} [delete]
func (s *Server) DeleteQuestion(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.community.DeleteQuestion(c.UserContext(), id, principal(c)); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.Map{"message": "Question deleted"})
}

// VoteQuestion handles POST /api/questions/:id/vote
// @Summary Vote on a question
// @Description Repeating the same vote removes it; the opposite vote replaces it
// @Tags community
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Param request body object{vote_type=string} true "upvote or downvote"
// @Success 200 {object} models.SuccessResponse{data=models.VoteState}
// @Failure 403 {object} models.ErrorResponse
// @Router /questions/{id}/vote [post]
func (s *Server) VoteQuestion(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req voteRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	state, err := s.community.VoteQuestion(c.UserContext(), id, principal(c).ID, req.VoteType)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, state)
}

// SetQuestionStatus handles PUT /api/questions/:id/status
// @Summary Moderate question status
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Param request body object{status=string} true "Target status"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /questions/{id}/status [put]
func (s *Server) SetQuestionStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Status models.QuestionStatus `json:"status"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := s.community.SetQuestionStatus(c.UserContext(), principal(c), id, req.Status); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.Map{"id": id, "status": req.Status})
}

// SetQuestionPinned handles PUT /api/questions/:id/pin
// @Summary Pin or unpin a question
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Param request body object{pinned=bool} true "Pin state"
// @Success 200 {object} models.SuccessResponse
// @Router /questions/{id}/pin [put]
func (s *Server) SetQuestionPinned(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Pinned bool `json:"pinned"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := s.community.SetPinned(c.UserContext(), principal(c), id, req.Pinned); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.Map{"id": id, "pinned": req.Pinned})
}

// CreateAnswer handles POST /api/questions/:id/answers
// @Summary Answer a question
// @Tags community
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Param request body object{content=string} true "Answer"
// @Success 201 {object} models.SuccessResponse{data=models.Answer}
// @Failure 404 {object} models.ErrorResponse
// @Router /questions/{id}/answers [post]
func (s *Server) CreateAnswer(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	a, err := s.community.CreateAnswer(c.UserContext(), service.CreateAnswerInput{
		QuestionID: id,
		AuthorID:   principal(c).ID,
		Content:    req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return created(c, a)
}

// FlagQuestion handles POST /api/questions/:id/flag
// @Summary Flag a question
// @Tags community
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Question ID"
// @Param request body object{reason=string,description=string} true "Flag"
// @Success 201 {object} models.SuccessResponse{data=models.ModerationFlag}
// @Failure 409 {object} models.ErrorResponse
// @Router /questions/{id}/flag [post]
func (s *Server) FlagQuestion(c *fiber.Ctx) error {
	return s.flag(c, models.VoteTargetQuestion)
}

// FlagAnswer handles POST /api/answers/:id/flag
// @Summary Flag an answer
// @Tags community
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Answer ID"
// @Param request body object{reason=string,description=string} true "Flag"
// @Success 201 {object} models.SuccessResponse{data=models.ModerationFlag}
// @Failure 409 {object} models.ErrorResponse
// @Router /answers/{id}/flag [post]
func (s *Server) FlagAnswer(c *fiber.Ctx) error {
	return s.flag(c, models.VoteTargetAnswer)
}

func (s *Server) flag(c *fiber.Ctx, target models.VoteTarget) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req flagRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	f, err := s.community.Flag(c.UserContext(), service.FlagInput{
		Target:      target,
		TargetID:    id,
		UserID:      principal(c).ID,
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		return respondError(c, err)
	}
	return created(c, f)
}

// VoteAnswer handles POST /api/answers/:id/vote
// @Summary Vote on an answer
// @Tags community
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Answer ID"
// @Param request body object{vote_type=string} true "upvote or downvote"
// @Success 200 {object} models.SuccessResponse{data=models.VoteState}
// @Failure 403 {object} models.ErrorResponse
// @Router /answers/{id}/vote [post]
func (s *Server) VoteAnswer(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req voteRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	state, err := s.community.VoteAnswer(c.UserContext(), id, principal(c).ID, req.VoteType)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, state)
}

// MarkBestAnswer handles POST /api/answers/:id/best
// @Summary Accept an answer
// @Description Only the question author may accept; any previous best answer is cleared
// @Tags community
// @Produce json
// @Security BearerAuth
// @Param id path int true "Answer ID"
// @Success 200 {object} models.SuccessResponse{data=models.Answer}
// @Failure 403 {object} models.ErrorResponse
// @Router /answers/{id}/best [post]
func (s *Server) MarkBestAnswer(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	a, err := s.community.MarkBestAnswer(c.UserContext(), id, principal(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, a)
}

// EditAnswer handles PUT /api/answers/:id
// @Summary Edit an answer
// @Tags community
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Answer ID"
// @Param request body object{content=string,reason=string} true "New body"
// @Success 200 {object} models.SuccessResponse{data=models.Answer}
// @Failure 403 {object} models.ErrorResponse
// @Router /answers/{id} [put]
func (s *Server) EditAnswer(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
		Reason  string `json:"reason"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	a, err := s.community.EditAnswer(c.UserContext(), service.EditAnswerInput{
		AnswerID: id,
		EditorID: principal(c).ID,
		Content:  req.Content,
		Reason:   req.Reason,
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, a)
}

// DeleteAnswer handles DELETE /api/answers/:id
// @Summary Delete an answer
// @Tags community
// @Produce json
// @Security BearerAuth
// @Param id path int true "Answer ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /answers/{id} [delete]
func (s *Server) DeleteAnswer(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.community.DeleteAnswer(c.UserContext(), id, principal(c)); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.Map{"message": "Answer deleted"})
}

// AddComment handles POST /api/answers/:id/comments
// @Summary Comment on an answer
// @Tags community
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Answer ID"
// @Param request body object{content=string} true "Comment"
// @Success 201 {object} models.SuccessResponse{data=models.AnswerComment}
// @Router /answers/{id}/comments [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	comment, err := s.community.AddComment(c.UserContext(), id, principal(c).ID, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, comment)
}

// VoteComment handles POST /api/answers/:id/comments/:commentId/vote
// @Summary Upvote a comment
// @Description Upvote toggle; an empty body counts as upvote
// @Tags community
// @Produce json
// @Security BearerAuth
// @Param id path int true "Answer ID"
// @Param commentId path int true "Comment ID"
// @Success 200 {object} models.SuccessResponse{data=models.VoteState}
// @Router /answers/{id}/comments/{commentId}/vote [post]
func (s *Server) VoteComment(c *fiber.Ctx) error {
	answerID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var req voteRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}
	state, err := s.community.VoteComment(c.UserContext(), answerID, commentID, principal(c).ID, req.VoteType)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, state)
}

// GetOpenFlags handles GET /api/admin/flags
// @Summary Open moderation flags
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse{data=service.FlagPage}
// @Router /admin/flags [get]
func (s *Server) GetOpenFlags(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	flags, err := s.community.ListOpenFlags(c.UserContext(), principal(c), page.Page, page.Limit)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, flags)
}

// ResolveFlag handles POST /api/admin/flags/:id/resolve
// @Summary Resolve a flag
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Flag ID"
// @Success 200 {object} models.SuccessResponse{data=models.ModerationFlag}
// @Router /admin/flags/{id}/resolve [post]
func (s *Server) ResolveFlag(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	f, err := s.community.ResolveFlag(c.UserContext(), principal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, f)
}

// GetCommunityStats handles GET /api/admin/community/stats
// @Summary Q&A statistics
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse{data=models.CommunityStats}
// @Router /admin/community/stats [get]
func (s *Server) GetCommunityStats(c *fiber.Ctx) error {
	stats, err := s.community.Stats(c.UserContext(), principal(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, stats)
}
