package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qna-forum/backend/internal/models"
	"github.com/emilythestrangee/qna-forum/backend/internal/reputation"
	"github.com/emilythestrangee/qna-forum/backend/internal/voting"
)

type UserHandler struct {
	db         *gorm.DB
	reputation *reputation.Ledger
	votes      *voting.Service
	logger     *zap.SugaredLogger
}

func NewUserHandler(db *gorm.DB, rep *reputation.Ledger, votes *voting.Service, logger *zap.SugaredLogger) *UserHandler {
	return &UserHandler{db: db, reputation: rep, votes: votes, logger: logger}
}

// GetUserProfile returns a user's profile with reputation and rank
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	userID, ok := intParam(c, "id")
	if !ok {
		return
	}
	var user models.User

	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	var questionCount, answerCount int64
	if err := h.db.WithContext(c.Request.Context()).Model(&models.Question{}).
		Where("author_id = ? AND is_deleted = ?", userID, false).Count(&questionCount).Error; err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Model(&models.Answer{}).
		Where("author_id = ? AND is_deleted = ?", userID, false).Count(&answerCount).Error; err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":            user.ID,
			"username":      user.Username,
			"bio":           user.Bio,
			"avatar":        user.Avatar,
			"reputation":    user.Reputation,
			"rank":          user.Rank,
			"rank_override": user.RankOverride,
		},
		"question_count": questionCount,
		"answer_count":   answerCount,
	})
}

// GetMyVotes lists the caller's voting history
func (h *UserHandler) GetMyVotes(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var kind models.TargetKind
	if raw := c.Query("kind"); raw != "" {
		parsed, err := models.ParseTargetKind(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		kind = parsed
	}
	page, limit := pageParams(c)

	votes, total, err := h.votes.History(c.Request.Context(), userID, kind, page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes, "total": total, "page": page})
}

// SetRank pins a user's rank regardless of reputation (admin only)
func (h *UserHandler) SetRank(c *gin.Context) {
	userID, ok := intParam(c, "id")
	if !ok {
		return
	}

	var input struct {
		Rank string `json:"rank" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rank is required"})
		return
	}

	user, err := h.reputation.OverrideRank(c.Request.Context(), userID, input.Rank)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "reputation": user.Reputation, "rank": user.Rank, "rank_override": user.RankOverride})
}

// ClearRank drops the pinned rank and re-derives it from reputation (admin only)
func (h *UserHandler) ClearRank(c *gin.Context) {
	userID, ok := intParam(c, "id")
	if !ok {
		return
	}

	user, err := h.reputation.ClearOverride(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "reputation": user.Reputation, "rank": user.Rank, "rank_override": user.RankOverride})
}
