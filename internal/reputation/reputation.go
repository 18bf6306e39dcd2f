// Package reputation is the single writer of User.Reputation and User.Rank.
//
// Vote-induced deltas come from one magnitude table, acceptance has its own
// fixed bonus, and rank is re-derived from the post-mutation reputation
// unless an administrator pinned it.
package reputation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qna-forum/backend/internal/apperr"
	"github.com/emilythestrangee/qna-forum/backend/internal/models"
)

// AcceptanceBonus is granted to an answer's author while the answer is
// accepted.
const AcceptanceBonus = 15

type magnitude struct {
	up   int
	down int
}

var magnitudes = map[models.TargetKind]magnitude{
	models.KindQuestion: {up: 5, down: -2},
	models.KindAnswer:   {up: 10, down: -2},
	models.KindComment:  {up: 2, down: -1},
}

// Magnitude is the reputation a single vote of direction dir on a target of
// the given kind is worth to the target's author.
func Magnitude(kind models.TargetKind, dir models.Direction) int {
	m, ok := magnitudes[kind]
	if !ok {
		return 0
	}
	if dir == models.Up {
		return m.up
	}
	if dir == models.Down {
		return m.down
	}
	return 0
}

// VoteDelta maps a vote transition to the author's reputation delta.
// dir is the requested direction, previous the direction stored before the
// transition (zero for created).
func VoteDelta(kind models.TargetKind, action models.VoteAction, dir, previous models.Direction) int {
	switch action {
	case models.VoteCreated:
		return Magnitude(kind, dir)
	case models.VoteRemoved:
		return -Magnitude(kind, previous)
	case models.VoteChanged:
		return Magnitude(kind, dir) - Magnitude(kind, previous)
	}
	return 0
}

// Change describes the effect of one reputation mutation.
type Change struct {
	UserID     int    `json:"user_id"`
	Delta      int    `json:"delta"`
	Reputation int    `json:"reputation"`
	OldRank    string `json:"old_rank"`
	Rank       string `json:"rank"`
}

func (c Change) RankChanged() bool { return c.OldRank != c.Rank }

type Ledger struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewLedger(db *gorm.DB, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

// ApplyVote applies the delta of a vote transition to authorID inside tx.
func (l *Ledger) ApplyVote(tx *gorm.DB, kind models.TargetKind, action models.VoteAction, dir, previous models.Direction, authorID int) (Change, error) {
	return l.Adjust(tx, authorID, VoteDelta(kind, action, dir, previous))
}

func (l *Ledger) GrantAcceptance(tx *gorm.DB, authorID int) (Change, error) {
	return l.Adjust(tx, authorID, AcceptanceBonus)
}

func (l *Ledger) RevokeAcceptance(tx *gorm.DB, authorID int) (Change, error) {
	return l.Adjust(tx, authorID, -AcceptanceBonus)
}

// Adjust atomically adds delta to the user's reputation and re-derives rank.
// It must run inside the caller's transaction.
func (l *Ledger) Adjust(tx *gorm.DB, userID, delta int) (Change, error) {
	if delta != 0 {
		res := tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("reputation", gorm.Expr("reputation + ?", delta))
		if res.Error != nil {
			return Change{}, fmt.Errorf("error adjusting reputation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return Change{}, apperr.NotFound("reputation.Adjust", "user %d not found", userID)
		}
	}

	var user models.User
	if err := tx.Select("id", "reputation", "rank", "rank_override").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Change{}, apperr.NotFound("reputation.Adjust", "user %d not found", userID)
		}
		return Change{}, fmt.Errorf("error reading reputation: %w", err)
	}

	change := Change{
		UserID:     userID,
		Delta:      delta,
		Reputation: user.Reputation,
		OldRank:    user.Rank,
		Rank:       user.Rank,
	}
	if user.RankOverride {
		return change, nil
	}

	derived := RankFor(user.Reputation)
	if string(derived) != user.Rank {
		if err := tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("rank", string(derived)).Error; err != nil {
			return Change{}, fmt.Errorf("error updating rank: %w", err)
		}
		change.Rank = string(derived)
		l.logger.Infow("rank changed", "user_id", userID, "from", user.Rank, "to", derived, "reputation", user.Reputation)
	}

	return change, nil
}

// OverrideRank pins a user's rank. Later reputation changes leave it alone
// until ClearOverride.
func (l *Ledger) OverrideRank(ctx context.Context, userID int, rank string) (models.User, error) {
	parsed, err := ParseRank(rank)
	if err != nil {
		return models.User{}, apperr.Validation("reputation.OverrideRank", "%s", err.Error())
	}

	var user models.User
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumns(map[string]any{"rank": string(parsed), "rank_override": true})
		if res.Error != nil {
			return fmt.Errorf("error overriding rank: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("reputation.OverrideRank", "user %d not found", userID)
		}
		return tx.First(&user, userID).Error
	})
	if err != nil {
		return models.User{}, err
	}

	l.logger.Infow("rank overridden", "user_id", userID, "rank", parsed)
	return user, nil
}

// ClearOverride unpins the rank and re-derives it from reputation.
func (l *Ledger) ClearOverride(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("rank_override", false)
		if res.Error != nil {
			return fmt.Errorf("error clearing rank override: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("reputation.ClearOverride", "user %d not found", userID)
		}
		if _, err := l.Adjust(tx, userID, 0); err != nil {
			return err
		}
		return tx.First(&user, userID).Error
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}
