package models

import "time"

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type User struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	Username string `gorm:"unique;not null" json:"username"`
	Email    string `gorm:"unique;not null" json:"email"`
	Bio      string `json:"bio"`
	Avatar   string `json:"avatar"`
	Role     string `gorm:"not null;default:member" json:"role"`

	// Reputation and Rank are written by the reputation ledger only.
	Reputation   int    `gorm:"not null;default:0" json:"reputation"`
	Rank         string `gorm:"not null;default:Beginner" json:"rank"`
	RankOverride bool   `gorm:"not null;default:false" json:"rank_override"` // pinned by an admin

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
