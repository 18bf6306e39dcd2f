package voting

import (
	"errors"

	"github.com/emilythestrangee/qna-forum/backend/internal/apperr"
	"github.com/emilythestrangee/qna-forum/backend/internal/database"
)

const DefaultMaxAttempts = 3

func isConflict(err error) bool {
	return errors.Is(err, errStaleVote) || database.IsUniqueViolation(err) || database.IsTransient(err)
}

// withConflictRetry runs fn up to attempts times while it fails with a
// conflict. fn must start from a fresh read each time.
func withConflictRetry(op string, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !isConflict(err) {
			return err
		}
	}
	return apperr.Conflict(op, err)
}
