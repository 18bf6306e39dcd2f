package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qna-forum/backend/internal/acceptance"
	"github.com/emilythestrangee/qna-forum/backend/internal/apperr"
	"github.com/emilythestrangee/qna-forum/backend/internal/middleware"
	"github.com/emilythestrangee/qna-forum/backend/internal/notify"
	"github.com/emilythestrangee/qna-forum/backend/internal/reputation"
	"github.com/emilythestrangee/qna-forum/backend/internal/voting"
)

// Services are the engine components the handlers call into.
type Services struct {
	DB            *gorm.DB
	Votes         *voting.Service
	Acceptance    *acceptance.Manager
	Notifications *notify.Service
	Reputation    *reputation.Ledger
}

// Handler combines all handler types
type Handler struct {
	Vote         *VoteHandler
	Answer       *AnswerHandler
	Notification *NotificationHandler
	User         *UserHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(s Services, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		Vote:         NewVoteHandler(s.Votes, logger),
		Answer:       NewAnswerHandler(s.Acceptance, logger),
		Notification: NewNotificationHandler(s.Notifications, logger),
		User:         NewUserHandler(s.DB, s.Reputation, s.Votes, logger),
	}
}

func extractUserID(c *gin.Context) (int, bool) {
	raw, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case uint:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// requireUser aborts with 401 when the request carries no user.
func requireUser(c *gin.Context) (int, bool) {
	id, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return id, ok
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return v, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation: http.StatusBadRequest,
	apperr.KindConflict:   http.StatusConflict,
	apperr.KindInvariant:  http.StatusUnprocessableEntity,
	apperr.KindNotFound:   http.StatusNotFound,
}

// respondError writes err with the status its kind maps to. Anything
// unclassified is logged and reported as a generic 500.
func respondError(c *gin.Context, logger *zap.SugaredLogger, err error) {
	status, ok := statusByKind[apperr.KindOf(err)]
	if !ok {
		status = http.StatusInternalServerError
		logger.Errorw("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}
