package voting

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qna-forum/backend/internal/apperr"
)

func TestWithConflictRetry_GivesUpAfterBudget(t *testing.T) {
	calls := 0
	err := withConflictRetry("test", 3, func() error {
		calls++
		return errStaleVote
	})

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.ErrorIs(t, err, errStaleVote)
}

func TestWithConflictRetry_RecoversFromDuplicateKey(t *testing.T) {
	calls := 0
	err := withConflictRetry("test", 3, func() error {
		calls++
		if calls == 1 {
			return fmt.Errorf("error recording vote: %w", gorm.ErrDuplicatedKey)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithConflictRetry_OtherErrorsNotRetried(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := withConflictRetry("test", 3, func() error {
		calls++
		return boom
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, apperr.ErrConflict)
}
