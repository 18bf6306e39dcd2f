package models

import "time"

type Question struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	Title    string `gorm:"not null" json:"title"`
	Body     string `json:"body"`
	AuthorID int    `gorm:"not null;index" json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID" json:"author"`

	VoteCount         int  `gorm:"not null;default:0" json:"votes"`
	AnswersCount      int  `gorm:"not null;default:0" json:"answers_count"`
	HasAcceptedAnswer bool `gorm:"not null;default:false" json:"has_accepted_answer"`

	IsDeleted bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (q *Question) VoteKind() TargetKind { return KindQuestion }
func (q *Question) VoteTargetID() int    { return q.ID }
func (q *Question) VoteAuthorID() int    { return q.AuthorID }
func (q *Question) Removed() bool        { return q.IsDeleted }
