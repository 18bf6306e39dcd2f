package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emilythestrangee/qna-forum/backend/internal/acceptance"
	"github.com/emilythestrangee/qna-forum/backend/internal/middleware"
	"github.com/emilythestrangee/qna-forum/backend/internal/models"
)

type AnswerHandler struct {
	acceptance *acceptance.Manager
	logger     *zap.SugaredLogger
}

func NewAnswerHandler(mgr *acceptance.Manager, logger *zap.SugaredLogger) *AnswerHandler {
	return &AnswerHandler{acceptance: mgr, logger: logger}
}

// questionOwner checks that the caller asked the question in :id.
func (h *AnswerHandler) questionOwner(c *gin.Context) (questionID, answerID int, ok bool) {
	userID, ok := requireUser(c)
	if !ok {
		return 0, 0, false
	}
	if questionID, ok = intParam(c, "id"); !ok {
		return 0, 0, false
	}
	if answerID, ok = intParam(c, "answerId"); !ok {
		return 0, 0, false
	}

	question, err := h.acceptance.Question(c.Request.Context(), questionID)
	if err != nil {
		respondError(c, h.logger, err)
		return 0, 0, false
	}
	if question.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the question author can change the accepted answer"})
		return 0, 0, false
	}
	return questionID, answerID, true
}

// AcceptAnswer marks an answer as the accepted one
func (h *AnswerHandler) AcceptAnswer(c *gin.Context) {
	questionID, answerID, ok := h.questionOwner(c)
	if !ok {
		return
	}

	state, err := h.acceptance.Accept(c.Request.Context(), questionID, answerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// UnacceptAnswer clears the accepted answer
func (h *AnswerHandler) UnacceptAnswer(c *gin.Context) {
	questionID, answerID, ok := h.questionOwner(c)
	if !ok {
		return
	}

	state, err := h.acceptance.Unaccept(c.Request.Context(), questionID, answerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// DeleteAnswer soft-deletes an answer, or removes it with ?permanent=true
func (h *AnswerHandler) DeleteAnswer(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	answerID, ok := intParam(c, "answerId")
	if !ok {
		return
	}
	permanent, err := strconv.ParseBool(c.DefaultQuery("permanent", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "permanent must be a boolean"})
		return
	}

	answer, err := h.acceptance.Answer(c.Request.Context(), answerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if answer.AuthorID != userID && c.GetString(middleware.ContextRole) != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only delete your own answers"})
		return
	}

	state, err := h.acceptance.DeleteAnswer(c.Request.Context(), answerID, permanent)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Answer deleted", "permanent": permanent, "question": state})
}
