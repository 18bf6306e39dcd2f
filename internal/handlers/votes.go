package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emilythestrangee/qna-forum/backend/internal/models"
	"github.com/emilythestrangee/qna-forum/backend/internal/voting"
)

type VoteHandler struct {
	votes  *voting.Service
	logger *zap.SugaredLogger
}

func NewVoteHandler(votes *voting.Service, logger *zap.SugaredLogger) *VoteHandler {
	return &VoteHandler{votes: votes, logger: logger}
}

// target reads the :kind and :id path parameters.
func (h *VoteHandler) target(c *gin.Context) (models.TargetKind, int, bool) {
	kind, err := models.ParseTargetKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", 0, false
	}
	id, ok := intParam(c, "id")
	return kind, id, ok
}

// CastVote creates, flips or toggles off the caller's vote on a target
func (h *VoteHandler) CastVote(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	kind, id, ok := h.target(c)
	if !ok {
		return
	}

	var input struct {
		Direction models.Direction `json:"direction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be \"up\" or \"down\""})
		return
	}

	result, err := h.votes.CastVote(c.Request.Context(), userID, kind, id, input.Direction)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetUserVote returns the caller's current vote on a target, or null
func (h *VoteHandler) GetUserVote(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	kind, id, ok := h.target(c)
	if !ok {
		return
	}

	dir, found, err := h.votes.GetUserVote(c.Request.Context(), userID, kind, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var direction *models.Direction
	if found {
		direction = &dir
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "id": id, "direction": direction})
}

// LookupVotes returns the caller's votes for a batch of targets
func (h *VoteHandler) LookupVotes(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var input struct {
		Targets []struct {
			Kind string `json:"kind"`
			ID   int    `json:"id"`
		} `json:"targets" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "targets are required"})
		return
	}

	refs := make([]voting.TargetRef, 0, len(input.Targets))
	for _, t := range input.Targets {
		kind, err := models.ParseTargetKind(t.Kind)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		refs = append(refs, voting.TargetRef{Kind: kind, ID: t.ID})
	}

	votes, err := h.votes.GetVotesForTargets(c.Request.Context(), userID, refs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	responses := make([]gin.H, 0, len(votes))
	for _, ref := range refs {
		if dir, ok := votes[ref]; ok {
			responses = append(responses, gin.H{"kind": ref.Kind, "id": ref.ID, "direction": dir})
			delete(votes, ref)
		}
	}
	c.JSON(http.StatusOK, gin.H{"votes": responses})
}

// GetVoteStats compares a target's ledger totals with its stored counter
func (h *VoteHandler) GetVoteStats(c *gin.Context) {
	kind, id, ok := h.target(c)
	if !ok {
		return
	}

	check, err := h.votes.VerifyCounter(c.Request.Context(), kind, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"up":      check.Up,
		"down":    check.Down,
		"net":     check.Net(),
		"counter": check.Counter,
		"drift":   check.Drift,
	})
}
