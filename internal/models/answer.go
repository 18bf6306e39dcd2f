package models

import "time"

type Answer struct {
	ID         int    `gorm:"primaryKey" json:"id"`
	QuestionID int    `gorm:"not null;index:idx_answers_question_accepted,priority:1" json:"question_id"`
	AuthorID   int    `gorm:"not null;index" json:"author_id"`
	Author     User   `gorm:"foreignKey:AuthorID" json:"author"`
	Body       string `json:"body"`
	VoteCount  int    `gorm:"not null;default:0" json:"votes"`

	IsAccepted bool       `gorm:"not null;default:false;index:idx_answers_question_accepted,priority:2" json:"is_accepted"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	// AcceptanceBonus is true while the author holds the acceptance reputation
	// for this answer. Soft delete clears IsAccepted but keeps the bonus.
	AcceptanceBonus bool `gorm:"not null;default:false" json:"-"`

	IsDeleted bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (a *Answer) VoteKind() TargetKind { return KindAnswer }
func (a *Answer) VoteTargetID() int    { return a.ID }
func (a *Answer) VoteAuthorID() int    { return a.AuthorID }
func (a *Answer) Removed() bool        { return a.IsDeleted }
