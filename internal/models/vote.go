package models

import (
	"fmt"
	"strings"
	"time"
)

// TargetKind names the entity a vote or notification points at.
type TargetKind string

const (
	KindQuestion TargetKind = "question"
	KindAnswer   TargetKind = "answer"
	KindComment  TargetKind = "comment"
)

func ParseTargetKind(s string) (TargetKind, error) {
	switch TargetKind(strings.ToLower(strings.TrimSuffix(s, "s"))) {
	case KindQuestion:
		return KindQuestion, nil
	case KindAnswer:
		return KindAnswer, nil
	case KindComment:
		return KindComment, nil
	}
	return "", fmt.Errorf("unknown target kind %q", s)
}

// Direction is stored as +1 / -1, matching the signed contribution of the
// vote to the target's counter.
type Direction int

const (
	Up   Direction = 1
	Down Direction = -1
)

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "up", "upvote", "1", "+1":
		return Up, nil
	case "down", "downvote", "-1":
		return Down, nil
	}
	return 0, fmt.Errorf("unknown vote direction %q", s)
}

func (d Direction) Valid() bool { return d == Up || d == Down }

func (d Direction) Opposite() Direction { return -d }

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return "none"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Vote model - one row per (voter, target kind, target id). The triple is the
// primary key, so a second vote on the same target can only be an update.
type Vote struct {
	VoterID    int        `gorm:"primaryKey;autoIncrement:false" json:"voter_id"`
	TargetKind TargetKind `gorm:"primaryKey;type:varchar(16);index:idx_votes_target,priority:1" json:"target_kind"`
	TargetID   int        `gorm:"primaryKey;autoIncrement:false;index:idx_votes_target,priority:2" json:"target_id"`
	Direction  Direction  `gorm:"type:smallint;not null" json:"direction"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// VoteTarget is implemented by every votable entity.
type VoteTarget interface {
	VoteKind() TargetKind
	VoteTargetID() int
	VoteAuthorID() int
	Removed() bool
}

// VoteAction is the transition a cast produced.
type VoteAction string

const (
	VoteCreated VoteAction = "created"
	VoteRemoved VoteAction = "removed"
	VoteChanged VoteAction = "changed"
)
