package voting

import (
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/emilythestrangee/qna-forum/backend/internal/apperr"
	"github.com/emilythestrangee/qna-forum/backend/internal/models"
)

const counterColumn = "vote_count"

// CounterSync is the only writer of the denormalized vote_count column.
type CounterSync struct{}

// Apply adds delta to the target's counter with a single atomic UPDATE and
// returns the new value as seen inside tx.
func (CounterSync) Apply(tx *gorm.DB, kind models.TargetKind, id, delta int) (int, error) {
	model, err := modelFor(kind)
	if err != nil {
		return 0, err
	}

	if delta != 0 {
		res := tx.Model(model).Where("id = ?", id).
			UpdateColumn(counterColumn, gorm.Expr(counterColumn+" + ?", delta))
		if res.Error != nil {
			return 0, fmt.Errorf("error syncing %s %d counter: %w", kind, id, res.Error)
		}
		if res.RowsAffected == 0 {
			return 0, apperr.NotFound("voting.CounterSync", "%s %d not found", kind, id)
		}
	}

	return CounterSync{}.Value(tx, kind, id)
}

func (CounterSync) Value(db *gorm.DB, kind models.TargetKind, id int) (int, error) {
	model, err := modelFor(kind)
	if err != nil {
		return 0, err
	}

	var value int
	err = db.Model(model).Select(counterColumn).Where("id = ?", id).Row().Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound("voting.CounterSync", "%s %d not found", kind, id)
	}
	if err != nil {
		return 0, fmt.Errorf("error reading %s %d counter: %w", kind, id, err)
	}
	return value, nil
}
