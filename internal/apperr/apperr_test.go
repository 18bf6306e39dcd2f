package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesKind(t *testing.T) {
	err := fmt.Errorf("cast vote: %w", Validation("ParseDirection", "unknown direction %q", "sideways"))

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, `unknown direction "sideways"`, Message(err))
}

func TestConflict_WrapsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Conflict("CastVote", cause)

	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "CastVote")
}

func TestKindOf_PlainError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal server error", Message(err))
}
