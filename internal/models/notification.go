package models

import "time"

type NotificationType string

const (
	NotificationAnswerPosted   NotificationType = "answer_posted"
	NotificationCommentPosted  NotificationType = "comment_posted"
	NotificationAnswerAccepted NotificationType = "answer_accepted"
	NotificationMention        NotificationType = "mention"
	NotificationQuestionVoted  NotificationType = "question_voted"
	NotificationAnswerVoted    NotificationType = "answer_voted"
	NotificationCommentVoted   NotificationType = "comment_voted"
	NotificationQuestionClosed NotificationType = "question_closed"
	NotificationBadgeEarned    NotificationType = "badge_earned"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationAnswerPosted, NotificationCommentPosted, NotificationAnswerAccepted,
		NotificationMention, NotificationQuestionVoted, NotificationAnswerVoted,
		NotificationCommentVoted, NotificationQuestionClosed, NotificationBadgeEarned:
		return true
	}
	return false
}

// VotedNotification returns the notification type sent to the author of a
// voted target.
func VotedNotification(kind TargetKind) NotificationType {
	switch kind {
	case KindQuestion:
		return NotificationQuestionVoted
	case KindAnswer:
		return NotificationAnswerVoted
	default:
		return NotificationCommentVoted
	}
}

type Notification struct {
	ID          int              `gorm:"primaryKey" json:"id"`
	RecipientID int              `gorm:"not null;index:idx_notifications_recipient_created,priority:1;index:idx_notifications_recipient_read,priority:1" json:"recipient_id"`
	SenderID    int              `gorm:"not null" json:"sender_id"`
	Sender      User             `gorm:"foreignKey:SenderID" json:"sender"`
	Type        NotificationType `gorm:"type:varchar(32);not null;index" json:"type"`
	Title       string           `gorm:"size:200;not null" json:"title"`
	Message     string           `gorm:"size:500;not null" json:"message"`

	RelatedQuestionID *int `json:"related_question_id,omitempty"`
	RelatedAnswerID   *int `json:"related_answer_id,omitempty"`
	RelatedCommentID  *int `json:"related_comment_id,omitempty"`

	Metadata map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`

	IsRead    bool       `gorm:"not null;default:false;index:idx_notifications_recipient_read,priority:2" json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"index:idx_notifications_recipient_created,priority:2" json:"created_at"`
}
