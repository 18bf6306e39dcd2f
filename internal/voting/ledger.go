package voting

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/emilythestrangee/qna-forum/backend/internal/apperr"
	"github.com/emilythestrangee/qna-forum/backend/internal/models"
	"github.com/emilythestrangee/qna-forum/backend/internal/reputation"
)

// errStaleVote means the vote row changed between our read and our
// conditional write. The cast is retried from a fresh read.
var errStaleVote = errors.New("vote changed concurrently")

// Outcome is the result of one ledger transition.
type Outcome struct {
	Action models.VoteAction `json:"action"`
	// CounterDelta is what the target's vote_count must move by.
	CounterDelta int `json:"counter_delta"`
	// AuthorDelta is the reputation the target's author gains or loses.
	AuthorDelta int `json:"author_delta"`
	// Previous is the stored direction before the cast, zero if none.
	Previous models.Direction `json:"previous_direction"`
}

type Stats struct {
	Up   int `json:"up"`
	Down int `json:"down"`
}

func (s Stats) Net() int { return s.Up - s.Down }

// Ledger is the source of truth for who voted which way on what. It is the
// only component that writes vote rows.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Cast records voter's vote inside tx and reports the transition:
//
//	no vote        -> insert, created, delta = dir
//	same direction -> delete, removed, delta = -dir
//	opposite       -> flip,   changed, delta = 2*dir
//
// The delete and flip are conditional on the direction we read; if another
// writer got there first errStaleVote is returned. A concurrent insert
// surfaces as a unique violation on the primary key.
func (l *Ledger) Cast(tx *gorm.DB, voterID int, kind models.TargetKind, targetID int, dir models.Direction) (Outcome, error) {
	if !dir.Valid() {
		return Outcome{}, apperr.Validation("voting.Cast", "vote direction must be up or down")
	}
	if _, err := modelFor(kind); err != nil {
		return Outcome{}, err
	}

	var existing models.Vote
	err := tx.Where("voter_id = ? AND target_kind = ? AND target_id = ?", voterID, kind, targetID).
		Take(&existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		vote := models.Vote{
			VoterID:    voterID,
			TargetKind: kind,
			TargetID:   targetID,
			Direction:  dir,
		}
		if err := tx.Create(&vote).Error; err != nil {
			return Outcome{}, fmt.Errorf("error recording vote: %w", err)
		}
		return outcome(kind, models.VoteCreated, dir, 0), nil

	case err != nil:
		return Outcome{}, fmt.Errorf("error reading vote: %w", err)

	case existing.Direction == dir:
		res := tx.Where("voter_id = ? AND target_kind = ? AND target_id = ? AND direction = ?",
			voterID, kind, targetID, existing.Direction).Delete(&models.Vote{})
		if res.Error != nil {
			return Outcome{}, fmt.Errorf("error removing vote: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return Outcome{}, errStaleVote
		}
		return outcome(kind, models.VoteRemoved, dir, existing.Direction), nil

	default:
		res := tx.Model(&models.Vote{}).
			Where("voter_id = ? AND target_kind = ? AND target_id = ? AND direction = ?",
				voterID, kind, targetID, existing.Direction).
			Updates(map[string]any{"direction": dir, "updated_at": tx.NowFunc()})
		if res.Error != nil {
			return Outcome{}, fmt.Errorf("error changing vote: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return Outcome{}, errStaleVote
		}
		return outcome(kind, models.VoteChanged, dir, existing.Direction), nil
	}
}

func outcome(kind models.TargetKind, action models.VoteAction, dir, previous models.Direction) Outcome {
	var delta int
	switch action {
	case models.VoteCreated:
		delta = int(dir)
	case models.VoteRemoved:
		delta = -int(previous)
	case models.VoteChanged:
		delta = int(dir) - int(previous)
	}
	return Outcome{
		Action:       action,
		CounterDelta: delta,
		AuthorDelta:  reputation.VoteDelta(kind, action, dir, previous),
		Previous:     previous,
	}
}

// UserVote returns the voter's direction on the target, or false if none.
func (l *Ledger) UserVote(ctx context.Context, voterID int, kind models.TargetKind, targetID int) (models.Direction, bool, error) {
	var vote models.Vote
	err := l.db.WithContext(ctx).Select("direction").
		Where("voter_id = ? AND target_kind = ? AND target_id = ?", voterID, kind, targetID).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("error reading vote: %w", err)
	}
	return vote.Direction, true, nil
}

// VotesForTargets looks up the voter's votes on many targets in one query.
// Targets without a vote are absent from the result.
func (l *Ledger) VotesForTargets(ctx context.Context, voterID int, targets []TargetRef) (map[TargetRef]models.Direction, error) {
	result := make(map[TargetRef]models.Direction, len(targets))
	if len(targets) == 0 {
		return result, nil
	}

	byKind := make(map[models.TargetKind][]int)
	for _, t := range targets {
		byKind[t.Kind] = append(byKind[t.Kind], t.ID)
	}

	db := l.db.WithContext(ctx)
	anyTarget := db.Where("1 = 0")
	for kind, ids := range byKind {
		anyTarget = anyTarget.Or("target_kind = ? AND target_id IN ?", kind, ids)
	}

	var votes []models.Vote
	if err := db.Where("voter_id = ?", voterID).Where(anyTarget).Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("error reading votes: %w", err)
	}

	for _, v := range votes {
		result[TargetRef{Kind: v.TargetKind, ID: v.TargetID}] = v.Direction
	}
	return result, nil
}

// Stats counts up and down votes on a target straight from the ledger,
// independent of the stored counter.
func (l *Ledger) Stats(ctx context.Context, kind models.TargetKind, targetID int) (Stats, error) {
	var rows []struct {
		Direction models.Direction
		Count     int
	}
	err := l.db.WithContext(ctx).Model(&models.Vote{}).
		Select("direction, COUNT(*) AS count").
		Where("target_kind = ? AND target_id = ?", kind, targetID).
		Group("direction").
		Scan(&rows).Error
	if err != nil {
		return Stats{}, fmt.Errorf("error aggregating votes: %w", err)
	}

	var stats Stats
	for _, r := range rows {
		switch r.Direction {
		case models.Up:
			stats.Up = r.Count
		case models.Down:
			stats.Down = r.Count
		}
	}
	return stats, nil
}

// History returns the voter's votes, newest first. kind filters by target
// kind when non-empty.
func (l *Ledger) History(ctx context.Context, voterID int, kind models.TargetKind, page, limit int) ([]models.Vote, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filtered := func() *gorm.DB {
		query := l.db.WithContext(ctx).Model(&models.Vote{}).Where("voter_id = ?", voterID)
		if kind != "" {
			query = query.Where("target_kind = ?", kind)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting votes: %w", err)
	}

	var votes []models.Vote
	err := filtered().Order("created_at desc").Offset((page - 1) * limit).Limit(limit).Find(&votes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("error reading vote history: %w", err)
	}
	return votes, total, nil
}

// PurgeTarget deletes every vote on a hard-deleted target.
func (l *Ledger) PurgeTarget(tx *gorm.DB, kind models.TargetKind, targetID int) (int64, error) {
	res := tx.Where("target_kind = ? AND target_id = ?", kind, targetID).Delete(&models.Vote{})
	if res.Error != nil {
		return 0, fmt.Errorf("error purging votes: %w", res.Error)
	}
	return res.RowsAffected, nil
}
