package models

import "time"

type Comment struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	Body       string    `gorm:"not null" json:"body"`
	AuthorID   int       `gorm:"not null;index" json:"author_id"`
	User       User      `gorm:"foreignKey:AuthorID" json:"user"`
	QuestionID int       `gorm:"not null;index" json:"question_id"`
	AnswerID   *int      `gorm:"index" json:"answer_id,omitempty"`
	VoteCount  int       `gorm:"not null;default:0" json:"votes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (c *Comment) VoteKind() TargetKind { return KindComment }
func (c *Comment) VoteTargetID() int    { return c.ID }
func (c *Comment) VoteAuthorID() int    { return c.AuthorID }

// Removed is always false: comments are hard-deleted only.
func (c *Comment) Removed() bool { return false }
