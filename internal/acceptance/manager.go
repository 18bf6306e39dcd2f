// Package acceptance keeps the accepted-answer state of a question
// consistent: at most one live accepted answer, a has_accepted_answer flag
// that matches it, and an acceptance bonus that is granted and revoked
// exactly once. Every transition locks the question row first.
package acceptance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/qna-forum/backend/internal/apperr"
	"github.com/emilythestrangee/qna-forum/backend/internal/models"
	"github.com/emilythestrangee/qna-forum/backend/internal/notify"
	"github.com/emilythestrangee/qna-forum/backend/internal/reputation"
)

const deletedBody = "[deleted]"

type Notifier interface {
	Create(ctx context.Context, p notify.Payload) (*models.Notification, error)
}

// VotePurger removes every ledger row of a target. Implemented by
// *voting.Ledger.
type VotePurger interface {
	PurgeTarget(tx *gorm.DB, kind models.TargetKind, targetID int) (int64, error)
}

// State is the acceptance state of a question after a transition.
type State struct {
	QuestionID        int  `json:"question_id"`
	AcceptedAnswerID  *int `json:"accepted_answer_id"`
	HasAcceptedAnswer bool `json:"has_accepted_answer"`
	AnswersCount      int  `json:"answers_count"`
}

type Manager struct {
	db         *gorm.DB
	reputation *reputation.Ledger
	votes      VotePurger
	notifier   Notifier
	logger     *zap.SugaredLogger
	now        func() time.Time
}

func NewManager(db *gorm.DB, rep *reputation.Ledger, votes VotePurger, notifier Notifier, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		db:         db,
		reputation: rep,
		votes:      votes,
		notifier:   notifier,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Question loads a question for ownership checks.
func (m *Manager) Question(ctx context.Context, id int) (models.Question, error) {
	var question models.Question
	if err := m.db.WithContext(ctx).First(&question, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return question, apperr.NotFound("acceptance.Question", "question %d not found", id)
		}
		return question, fmt.Errorf("error fetching question: %w", err)
	}
	return question, nil
}

// Answer loads an answer for ownership checks.
func (m *Manager) Answer(ctx context.Context, id int) (models.Answer, error) {
	var answer models.Answer
	if err := m.db.WithContext(ctx).First(&answer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return answer, apperr.NotFound("acceptance.Answer", "answer %d not found", id)
		}
		return answer, fmt.Errorf("error fetching answer: %w", err)
	}
	return answer, nil
}

// Accept marks answerID as the accepted answer of questionID, clearing any
// previous holder first.
func (m *Manager) Accept(ctx context.Context, questionID, answerID int) (State, error) {
	const op = "acceptance.Accept"

	var (
		state    State
		question models.Question
		answer   models.Answer
	)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if question, err = lockLiveQuestion(tx, op, questionID); err != nil {
			return err
		}
		if answer, err = m.answerOf(tx, op, question, answerID); err != nil {
			return err
		}
		if answer.IsAccepted {
			return apperr.Invariant(op, "answer %d is already accepted", answerID)
		}

		var previous []models.Answer
		if err := tx.Where("question_id = ? AND id <> ? AND is_accepted = ? AND is_deleted = ?", questionID, answerID, true, false).
			Find(&previous).Error; err != nil {
			return fmt.Errorf("error scanning accepted answers: %w", err)
		}
		for i := range previous {
			if err := m.clear(tx, &previous[i]); err != nil {
				return err
			}
		}

		// A deleted answer still flagged accepted loses the flag but keeps
		// the bonus it earned.
		if err := tx.Model(&models.Answer{}).
			Where("question_id = ? AND is_accepted = ? AND is_deleted = ?", questionID, true, true).
			Updates(map[string]any{"is_accepted": false, "accepted_at": nil}).Error; err != nil {
			return fmt.Errorf("error clearing deleted answers: %w", err)
		}

		now := m.now()
		if err := tx.Model(&models.Answer{}).Where("id = ?", answerID).Updates(map[string]any{
			"is_accepted":      true,
			"accepted_at":      now,
			"acceptance_bonus": true,
		}).Error; err != nil {
			return fmt.Errorf("error accepting answer: %w", err)
		}
		if !answer.AcceptanceBonus {
			if _, err := m.reputation.GrantAcceptance(tx, answer.AuthorID); err != nil {
				return err
			}
		}

		state, err = syncFlag(tx, question)
		return err
	})
	if err != nil {
		return State{}, err
	}

	m.logger.Infow("answer accepted", "question_id", questionID, "answer_id", answerID, "author_id", answer.AuthorID)
	m.notifyAccepted(ctx, question, answer)
	return state, nil
}

// Unaccept clears the acceptance of answerID and revokes the bonus.
func (m *Manager) Unaccept(ctx context.Context, questionID, answerID int) (State, error) {
	const op = "acceptance.Unaccept"

	var state State
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		question, err := lockLiveQuestion(tx, op, questionID)
		if err != nil {
			return err
		}
		answer, err := m.answerOf(tx, op, question, answerID)
		if err != nil {
			return err
		}
		if !answer.IsAccepted {
			return apperr.Invariant(op, "answer %d is not accepted", answerID)
		}
		if err := m.clear(tx, &answer); err != nil {
			return err
		}

		state, err = syncFlag(tx, question)
		return err
	})
	if err != nil {
		return State{}, err
	}

	m.logger.Infow("answer unaccepted", "question_id", questionID, "answer_id", answerID)
	return state, nil
}

// OnAnswerDeleted repairs the question after an answer has been deleted
// inside tx. before is the answer as it was prior to the delete. The
// question flag is always recomputed from the live answers; the deleted
// answer's bonus is revoked only when permanent.
func (m *Manager) OnAnswerDeleted(tx *gorm.DB, before models.Answer, permanent bool) (State, error) {
	const op = "acceptance.OnAnswerDeleted"

	question, err := lockQuestion(tx, op, before.QuestionID)
	if err != nil {
		return State{}, err
	}

	if permanent {
		if before.AcceptanceBonus {
			if _, err := m.reputation.RevokeAcceptance(tx, before.AuthorID); err != nil {
				return State{}, err
			}
		}
	} else if err := tx.Model(&models.Answer{}).Where("id = ?", before.ID).Updates(map[string]any{
		"is_accepted": false,
		"accepted_at": nil,
	}).Error; err != nil {
		return State{}, fmt.Errorf("error clearing deleted answer: %w", err)
	}

	if !before.IsDeleted {
		if err := tx.Model(&models.Question{}).
			Where("id = ? AND answers_count > 0", question.ID).
			UpdateColumn("answers_count", gorm.Expr("answers_count - 1")).Error; err != nil {
			return State{}, fmt.Errorf("error updating answers count: %w", err)
		}
	}

	return syncFlag(tx, question)
}

// DeleteAnswer soft-deletes (body replaced, row kept) or permanently removes
// an answer along with its votes and comments, then repairs the question in
// the same transaction.
func (m *Manager) DeleteAnswer(ctx context.Context, answerID int, permanent bool) (State, error) {
	const op = "acceptance.DeleteAnswer"

	var state State
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var probe models.Answer
		if err := tx.Select("id", "question_id").First(&probe, answerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(op, "answer %d not found", answerID)
			}
			return fmt.Errorf("error fetching answer: %w", err)
		}
		if _, err := lockQuestion(tx, op, probe.QuestionID); err != nil {
			return err
		}

		var before models.Answer
		if err := tx.First(&before, answerID).Error; err != nil {
			return fmt.Errorf("error fetching answer: %w", err)
		}

		if permanent {
			if err := m.purge(tx, before.ID); err != nil {
				return err
			}
		} else {
			if before.IsDeleted {
				return apperr.Invariant(op, "answer %d is already deleted", answerID)
			}
			if err := tx.Model(&models.Answer{}).Where("id = ?", answerID).Updates(map[string]any{
				"is_deleted": true,
				"deleted_at": m.now(),
				"body":       deletedBody,
			}).Error; err != nil {
				return fmt.Errorf("error deleting answer: %w", err)
			}
		}

		var err error
		state, err = m.OnAnswerDeleted(tx, before, permanent)
		return err
	})
	if err != nil {
		return State{}, err
	}

	m.logger.Infow("answer deleted", "answer_id", answerID, "permanent", permanent,
		"question_id", state.QuestionID, "has_accepted_answer", state.HasAcceptedAnswer)
	return state, nil
}

func (m *Manager) purge(tx *gorm.DB, answerID int) error {
	var commentIDs []int
	if err := tx.Model(&models.Comment{}).Where("answer_id = ?", answerID).Pluck("id", &commentIDs).Error; err != nil {
		return fmt.Errorf("error listing answer comments: %w", err)
	}
	for _, id := range commentIDs {
		if _, err := m.votes.PurgeTarget(tx, models.KindComment, id); err != nil {
			return err
		}
	}
	if len(commentIDs) > 0 {
		if err := tx.Where("id IN ?", commentIDs).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("error deleting answer comments: %w", err)
		}
	}

	if _, err := m.votes.PurgeTarget(tx, models.KindAnswer, answerID); err != nil {
		return err
	}
	if err := tx.Delete(&models.Answer{}, answerID).Error; err != nil {
		return fmt.Errorf("error deleting answer: %w", err)
	}
	return nil
}

// clear drops the acceptance of answer, revoking its bonus when held.
func (m *Manager) clear(tx *gorm.DB, answer *models.Answer) error {
	updates := map[string]any{"is_accepted": false, "accepted_at": nil}
	held := answer.AcceptanceBonus
	if held {
		updates["acceptance_bonus"] = false
	}
	if err := tx.Model(&models.Answer{}).Where("id = ?", answer.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("error clearing accepted answer: %w", err)
	}
	if held {
		if _, err := m.reputation.RevokeAcceptance(tx, answer.AuthorID); err != nil {
			return err
		}
	}
	answer.IsAccepted = false
	answer.AcceptanceBonus = false
	return nil
}

func (m *Manager) answerOf(tx *gorm.DB, op string, question models.Question, answerID int) (models.Answer, error) {
	var answer models.Answer
	if err := tx.First(&answer, answerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return answer, apperr.Invariant(op, "answer %d does not exist", answerID)
		}
		return answer, fmt.Errorf("error fetching answer: %w", err)
	}
	if answer.QuestionID != question.ID {
		return answer, apperr.Invariant(op, "answer %d does not belong to question %d", answerID, question.ID)
	}
	if answer.IsDeleted {
		return answer, apperr.Invariant(op, "answer %d has been deleted", answerID)
	}
	return answer, nil
}

func (m *Manager) notifyAccepted(ctx context.Context, question models.Question, answer models.Answer) {
	if m.notifier == nil {
		return
	}
	_, err := m.notifier.Create(ctx, notify.Payload{
		SenderID:          question.AuthorID,
		RecipientID:       answer.AuthorID,
		Type:              models.NotificationAnswerAccepted,
		RelatedQuestionID: &question.ID,
		RelatedAnswerID:   &answer.ID,
	})
	if err != nil {
		m.logger.Errorw("failed to create acceptance notification",
			"question_id", question.ID, "answer_id", answer.ID, "error", err)
	}
}

// lockQuestion reads the question row FOR UPDATE, serializing acceptance
// transitions on it.
func lockQuestion(tx *gorm.DB, op string, id int) (models.Question, error) {
	var question models.Question
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&question, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return question, apperr.NotFound(op, "question %d not found", id)
	}
	if err != nil {
		return question, fmt.Errorf("error locking question: %w", err)
	}
	return question, nil
}

// lockLiveQuestion is lockQuestion for transitions that make no sense on a
// deleted question.
func lockLiveQuestion(tx *gorm.DB, op string, id int) (models.Question, error) {
	question, err := lockQuestion(tx, op, id)
	if err != nil {
		return question, err
	}
	if question.IsDeleted {
		return question, apperr.NotFound(op, "question %d has been deleted", id)
	}
	return question, nil
}

// syncFlag recomputes has_accepted_answer from the live answers rather than
// trusting the stored flag.
func syncFlag(tx *gorm.DB, question models.Question) (State, error) {
	var accepted []int
	if err := tx.Model(&models.Answer{}).
		Where("question_id = ? AND is_accepted = ? AND is_deleted = ?", question.ID, true, false).
		Order("accepted_at desc").
		Pluck("id", &accepted).Error; err != nil {
		return State{}, fmt.Errorf("error scanning accepted answers: %w", err)
	}

	has := len(accepted) > 0
	if err := tx.Model(&models.Question{}).Where("id = ?", question.ID).
		UpdateColumn("has_accepted_answer", has).Error; err != nil {
		return State{}, fmt.Errorf("error updating accepted flag: %w", err)
	}

	var count int
	if err := tx.Model(&models.Question{}).Where("id = ?", question.ID).
		Select("answers_count").Row().Scan(&count); err != nil {
		return State{}, fmt.Errorf("error reading answers count: %w", err)
	}

	state := State{QuestionID: question.ID, HasAcceptedAnswer: has, AnswersCount: count}
	if has {
		state.AcceptedAnswerID = &accepted[0]
	}
	return state, nil
}
