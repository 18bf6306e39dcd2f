package voting

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/emilythestrangee/qna-forum/backend/internal/apperr"
	"github.com/emilythestrangee/qna-forum/backend/internal/models"
)

// TargetRef identifies a votable entity.
type TargetRef struct {
	Kind models.TargetKind `json:"kind"`
	ID   int               `json:"id"`
}

func (r TargetRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// modelFor returns an empty model of the table backing kind.
func modelFor(kind models.TargetKind) (any, error) {
	switch kind {
	case models.KindQuestion:
		return &models.Question{}, nil
	case models.KindAnswer:
		return &models.Answer{}, nil
	case models.KindComment:
		return &models.Comment{}, nil
	}
	return nil, apperr.Validation("voting", "unknown target kind %q", kind)
}

// FetchTarget loads the question, answer or comment a vote points at.
func FetchTarget(ctx context.Context, db *gorm.DB, kind models.TargetKind, id int) (models.VoteTarget, error) {
	var target models.VoteTarget
	switch kind {
	case models.KindQuestion:
		target = &models.Question{}
	case models.KindAnswer:
		target = &models.Answer{}
	case models.KindComment:
		target = &models.Comment{}
	default:
		return nil, apperr.Validation("voting.FetchTarget", "unknown target kind %q", kind)
	}

	if err := db.WithContext(ctx).First(target, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("voting.FetchTarget", "%s %d not found", kind, id)
		}
		return nil, fmt.Errorf("error fetching %s %d: %w", kind, id, err)
	}
	return target, nil
}

// related returns the question, answer and comment ids a notification about
// target should carry.
func related(target models.VoteTarget) (question, answer, comment *int) {
	switch t := target.(type) {
	case *models.Question:
		return &t.ID, nil, nil
	case *models.Answer:
		return &t.QuestionID, &t.ID, nil
	case *models.Comment:
		return &t.QuestionID, t.AnswerID, &t.ID
	}
	return nil, nil, nil
}
