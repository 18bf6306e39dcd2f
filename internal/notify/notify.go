// Package notify stores user notifications. Create collapses rapid repeats
// of the same event into one row; it is not an idempotency mechanism.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qna-forum/backend/internal/apperr"
	"github.com/emilythestrangee/qna-forum/backend/internal/models"
)

const DefaultDedupWindow = 5 * time.Minute

// Payload is everything needed to create a notification.
type Payload struct {
	SenderID          int
	RecipientID       int
	Type              models.NotificationType
	Title             string
	Message           string
	RelatedQuestionID *int
	RelatedAnswerID   *int
	RelatedCommentID  *int
	Metadata          map[string]string
}

type Service struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
	window time.Duration
	now    func() time.Time
}

func NewService(db *gorm.DB, logger *zap.SugaredLogger, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Service{
		db:     db,
		logger: logger,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create stores a notification unless it would notify the sender about their
// own action (nil, nil) or an identical notification was created within the
// de-duplication window, in which case that one is returned unchanged.
func (s *Service) Create(ctx context.Context, p Payload) (*models.Notification, error) {
	if p.SenderID == p.RecipientID {
		return nil, nil
	}
	if p.SenderID == 0 || p.RecipientID == 0 {
		return nil, apperr.Validation("notify.Create", "sender and recipient are required")
	}
	if !p.Type.Valid() {
		return nil, apperr.Validation("notify.Create", "unknown notification type %q", p.Type)
	}

	now := s.now()
	db := s.db.WithContext(ctx)

	query := db.Where("recipient_id = ? AND sender_id = ? AND type = ? AND created_at >= ?",
		p.RecipientID, p.SenderID, p.Type, now.Add(-s.window))
	query = matchRelated(query, "related_question_id", p.RelatedQuestionID)
	query = matchRelated(query, "related_answer_id", p.RelatedAnswerID)
	query = matchRelated(query, "related_comment_id", p.RelatedCommentID)

	// Lookup and insert are not atomic: two identical concurrent calls can
	// both insert. That is accepted; dedup only has to be best effort.
	var existing models.Notification
	err := query.Order("created_at desc").Take(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error looking up notification: %w", err)
	}

	title, message := p.Title, p.Message
	if title == "" || message == "" {
		defTitle, defMessage := defaultText(p.Type, p.Metadata)
		if title == "" {
			title = defTitle
		}
		if message == "" {
			message = defMessage
		}
	}

	notification := models.Notification{
		RecipientID:       p.RecipientID,
		SenderID:          p.SenderID,
		Type:              p.Type,
		Title:             truncate(title, 200),
		Message:           truncate(message, 500),
		RelatedQuestionID: p.RelatedQuestionID,
		RelatedAnswerID:   p.RelatedAnswerID,
		RelatedCommentID:  p.RelatedCommentID,
		Metadata:          p.Metadata,
		CreatedAt:         now,
	}
	if err := db.Omit("Sender").Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("error creating notification: %w", err)
	}

	s.logger.Debugw("notification created",
		"id", notification.ID, "type", notification.Type,
		"recipient_id", notification.RecipientID, "sender_id", notification.SenderID)

	return &notification, nil
}

func matchRelated(query *gorm.DB, column string, id *int) *gorm.DB {
	if id == nil {
		return query.Where(column + " IS NULL")
	}
	return query.Where(column+" = ?", *id)
}

func defaultText(t models.NotificationType, metadata map[string]string) (string, string) {
	switch t {
	case models.NotificationQuestionVoted:
		return "Your question received a vote", fmt.Sprintf("Someone %svoted your question", metadata["vote_type"])
	case models.NotificationAnswerVoted:
		return "Your answer received a vote", fmt.Sprintf("Someone %svoted your answer", metadata["vote_type"])
	case models.NotificationCommentVoted:
		return "Your comment received a vote", fmt.Sprintf("Someone %svoted your comment", metadata["vote_type"])
	case models.NotificationAnswerAccepted:
		return "Your answer was accepted", "The question author accepted your answer"
	case models.NotificationAnswerPosted:
		return "New answer", "Someone answered your question"
	case models.NotificationCommentPosted:
		return "New comment", "Someone commented on your post"
	case models.NotificationMention:
		return "You were mentioned", "Someone mentioned you"
	case models.NotificationQuestionClosed:
		return "Question closed", "Your question was closed"
	case models.NotificationBadgeEarned:
		return "New rank", fmt.Sprintf("You reached the %s rank", metadata["new_rank"])
	}
	return "Notification", "You have a new notification"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// List returns the recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, recipientID, page, limit int, unreadOnly bool) ([]models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filtered := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
		if unreadOnly {
			query = query.Where("is_read = ?", false)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting notifications: %w", err)
	}

	notifications := []models.Notification{}
	err := filtered().Preload("Sender").
		Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, fmt.Errorf("error fetching notifications: %w", err)
	}
	return notifications, total, nil
}

func (s *Service) UnreadCount(ctx context.Context, recipientID int) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one of the recipient's notifications read. Marking an
// already read notification is a no-op.
func (s *Service) MarkRead(ctx context.Context, recipientID, id int) (*models.Notification, error) {
	var notification models.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).Take(&notification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("notify.MarkRead", "notification %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching notification: %w", err)
	}

	if notification.IsRead {
		return &notification, nil
	}

	readAt := s.now()
	err = s.db.WithContext(ctx).Model(&notification).
		Updates(map[string]any{"is_read": true, "read_at": readAt}).Error
	if err != nil {
		return nil, fmt.Errorf("error marking notification read: %w", err)
	}
	notification.IsRead = true
	notification.ReadAt = &readAt
	return &notification, nil
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID int) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]any{"is_read": true, "read_at": s.now()})
	if res.Error != nil {
		return 0, fmt.Errorf("error marking notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Service) Delete(ctx context.Context, recipientID, id int) error {
	res := s.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).Delete(&models.Notification{})
	if res.Error != nil {
		return fmt.Errorf("error deleting notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("notify.Delete", "notification %d not found", id)
	}
	return nil
}

// Sweep deletes read notifications older than retention.
func (s *Service) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	res := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("error sweeping notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}
