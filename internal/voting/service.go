package voting

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qna-forum/backend/internal/apperr"
	"github.com/emilythestrangee/qna-forum/backend/internal/models"
	"github.com/emilythestrangee/qna-forum/backend/internal/notify"
	"github.com/emilythestrangee/qna-forum/backend/internal/reputation"
)

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mock_voting . Notifier

// Notifier delivers best-effort notifications about votes.
type Notifier interface {
	Create(ctx context.Context, p notify.Payload) (*models.Notification, error)
}

// MaxLookupTargets bounds GetVotesForTargets.
const MaxLookupTargets = 200

// Result is what a cast reports back to the caller.
type Result struct {
	Action            models.VoteAction `json:"action"`
	Direction         models.Direction  `json:"direction"`
	PreviousDirection models.Direction  `json:"previous_direction"`
	CounterDelta      int               `json:"counter_delta"`
	AuthorDelta       int               `json:"author_delta"`
	NewCounter        int               `json:"votes"`
	AuthorReputation  int               `json:"author_reputation"`
	AuthorRank        string            `json:"author_rank"`
}

type CounterCheck struct {
	Stats
	Counter int `json:"counter"`
	Drift   int `json:"drift"`
}

type Service struct {
	db          *gorm.DB
	ledger      *Ledger
	counter     CounterSync
	reputation  *reputation.Ledger
	notifier    Notifier
	logger      *zap.SugaredLogger
	maxAttempts int
}

func NewService(db *gorm.DB, rep *reputation.Ledger, notifier Notifier, logger *zap.SugaredLogger, maxAttempts int) *Service {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{
		db:          db,
		ledger:      NewLedger(db),
		reputation:  rep,
		notifier:    notifier,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

func (s *Service) Ledger() *Ledger { return s.ledger }

// CastVote applies voter's vote on the target. The ledger transition, the
// counter update and the author's reputation change commit together; a
// uniqueness race restarts the transaction from a fresh read.
func (s *Service) CastVote(ctx context.Context, voterID int, kind models.TargetKind, targetID int, dir models.Direction) (Result, error) {
	if !dir.Valid() {
		return Result{}, apperr.Validation("voting.CastVote", "vote direction must be up or down")
	}

	target, err := FetchTarget(ctx, s.db, kind, targetID)
	if err != nil {
		return Result{}, err
	}
	if target.Removed() {
		return Result{}, apperr.NotFound("voting.CastVote", "%s %d has been deleted", kind, targetID)
	}
	authorID := target.VoteAuthorID()
	if authorID == voterID {
		return Result{}, apperr.Validation("voting.CastVote", "you cannot vote on your own %s", kind)
	}

	var result Result
	err = withConflictRetry("voting.CastVote", s.maxAttempts, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			outcome, err := s.ledger.Cast(tx, voterID, kind, targetID, dir)
			if err != nil {
				return err
			}

			counter, err := s.counter.Apply(tx, kind, targetID, outcome.CounterDelta)
			if err != nil {
				return err
			}

			change, err := s.reputation.ApplyVote(tx, kind, outcome.Action, dir, outcome.Previous, authorID)
			if err != nil {
				return err
			}

			result = Result{
				Action:            outcome.Action,
				Direction:         dir,
				PreviousDirection: outcome.Previous,
				CounterDelta:      outcome.CounterDelta,
				AuthorDelta:       change.Delta,
				NewCounter:        counter,
				AuthorReputation:  change.Reputation,
				AuthorRank:        change.Rank,
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Warnw("vote failed",
			"voter_id", voterID, "kind", kind, "target_id", targetID, "direction", dir, "error", err)
		return Result{}, err
	}

	s.logger.Infow("vote cast",
		"voter_id", voterID, "kind", kind, "target_id", targetID,
		"action", result.Action, "counter", result.NewCounter, "author_delta", result.AuthorDelta)

	if result.Action != models.VoteRemoved {
		s.notifyVote(ctx, voterID, authorID, target, dir)
	}

	return result, nil
}

func (s *Service) notifyVote(ctx context.Context, voterID, authorID int, target models.VoteTarget, dir models.Direction) {
	if s.notifier == nil {
		return
	}

	question, answer, comment := related(target)
	_, err := s.notifier.Create(ctx, notify.Payload{
		SenderID:          voterID,
		RecipientID:       authorID,
		Type:              models.VotedNotification(target.VoteKind()),
		RelatedQuestionID: question,
		RelatedAnswerID:   answer,
		RelatedCommentID:  comment,
		Metadata:          map[string]string{"vote_type": dir.String()},
	})
	if err != nil {
		s.logger.Errorw("failed to create vote notification",
			"voter_id", voterID, "recipient_id", authorID,
			"kind", target.VoteKind(), "target_id", target.VoteTargetID(), "error", err)
	}
}

// GetUserVote returns the voter's direction on a target, or false.
func (s *Service) GetUserVote(ctx context.Context, voterID int, kind models.TargetKind, targetID int) (models.Direction, bool, error) {
	if _, err := modelFor(kind); err != nil {
		return 0, false, err
	}
	return s.ledger.UserVote(ctx, voterID, kind, targetID)
}

func (s *Service) GetVotesForTargets(ctx context.Context, voterID int, targets []TargetRef) (map[TargetRef]models.Direction, error) {
	if len(targets) > MaxLookupTargets {
		return nil, apperr.Validation("voting.GetVotesForTargets", "at most %d targets per lookup", MaxLookupTargets)
	}
	for _, t := range targets {
		if _, err := modelFor(t.Kind); err != nil {
			return nil, err
		}
	}
	return s.ledger.VotesForTargets(ctx, voterID, targets)
}

// VerifyCounter compares the stored counter with the ledger's aggregate.
func (s *Service) VerifyCounter(ctx context.Context, kind models.TargetKind, targetID int) (CounterCheck, error) {
	if _, err := modelFor(kind); err != nil {
		return CounterCheck{}, err
	}

	stats, err := s.ledger.Stats(ctx, kind, targetID)
	if err != nil {
		return CounterCheck{}, err
	}
	counter, err := s.counter.Value(s.db.WithContext(ctx), kind, targetID)
	if err != nil {
		return CounterCheck{}, err
	}

	check := CounterCheck{Stats: stats, Counter: counter, Drift: counter - stats.Net()}
	if check.Drift != 0 {
		s.logger.Warnw("vote counter drift detected", "kind", kind, "target_id", targetID,
			"counter", counter, "ledger_net", stats.Net())
	}
	return check, nil
}

// History lists the voter's votes, newest first.
func (s *Service) History(ctx context.Context, voterID int, kind models.TargetKind, page, limit int) ([]models.Vote, int64, error) {
	if kind != "" {
		if _, err := modelFor(kind); err != nil {
			return nil, 0, err
		}
	}
	votes, total, err := s.ledger.History(ctx, voterID, kind, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("error fetching vote history: %w", err)
	}
	return votes, total, nil
}
