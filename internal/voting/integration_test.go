//go:build integration

package voting_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qna-forum/backend/internal/acceptance"
	"github.com/emilythestrangee/qna-forum/backend/internal/database"
	"github.com/emilythestrangee/qna-forum/backend/internal/models"
	"github.com/emilythestrangee/qna-forum/backend/internal/reputation"
	"github.com/emilythestrangee/qna-forum/backend/internal/testutil"
	"github.com/emilythestrangee/qna-forum/backend/internal/voting"
)

func newPostgres(t *testing.T) *gorm.DB {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("qna"),
		tcpostgres.WithUsername("qna"),
		tcpostgres.WithPassword("qna"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// Concurrent voters against a real connection pool: counters and
// reputation must match the ledger exactly.
func TestPostgres_ConcurrentVotes(t *testing.T) {
	db := newPostgres(t)
	logger := zap.NewNop().Sugar()
	rep := reputation.NewLedger(db, logger)
	svc := voting.NewService(db, rep, nil, logger, 5)

	author := testutil.CreateUser(t, db, "author", 0)
	question := testutil.CreateQuestion(t, db, author)
	answer := testutil.CreateAnswer(t, db, question, author)

	const voters = 25
	ids := make([]int, voters)
	for i := range ids {
		ids[i] = testutil.CreateUser(t, db, fmt.Sprintf("voter%02d", i), 0).ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for _, dir := range []models.Direction{models.Up, models.Down, models.Up} {
			wg.Add(1)
			go func(id int, dir models.Direction) {
				defer wg.Done()
				_, err := svc.CastVote(context.Background(), id, models.KindAnswer, answer.ID, dir)
				assert.NoError(t, err)
			}(id, dir)
		}
	}
	wg.Wait()

	check, err := svc.VerifyCounter(context.Background(), models.KindAnswer, answer.ID)
	require.NoError(t, err)
	assert.Zero(t, check.Drift)

	want := check.Up*reputation.Magnitude(models.KindAnswer, models.Up) +
		check.Down*reputation.Magnitude(models.KindAnswer, models.Down)
	assert.Equal(t, want, testutil.ReloadUser(t, db, author.ID).Reputation)
}

// Concurrent accepts on one question serialize on the question row lock.
func TestPostgres_ConcurrentAccepts(t *testing.T) {
	db := newPostgres(t)
	logger := zap.NewNop().Sugar()
	rep := reputation.NewLedger(db, logger)
	mgr := acceptance.NewManager(db, rep, voting.NewLedger(db), nil, logger)

	asker := testutil.CreateUser(t, db, "asker", 0)
	question := testutil.CreateQuestion(t, db, asker)
	answers := make([]*models.Answer, 4)
	for i := range answers {
		answers[i] = testutil.CreateAnswer(t, db, question, testutil.CreateUser(t, db, fmt.Sprintf("author%d", i), 0))
	}

	var wg sync.WaitGroup
	for round := 0; round < 5; round++ {
		for _, a := range answers {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				_, _ = mgr.Accept(context.Background(), question.ID, id)
			}(a.ID)
		}
	}
	wg.Wait()

	var accepted int64
	require.NoError(t, db.Model(&models.Answer{}).
		Where("question_id = ? AND is_accepted = ?", question.ID, true).Count(&accepted).Error)
	assert.Equal(t, int64(1), accepted)

	var total int
	require.NoError(t, db.Model(&models.User{}).Select("COALESCE(SUM(reputation), 0)").Row().Scan(&total))
	assert.Equal(t, reputation.AcceptanceBonus, total)
	assert.True(t, testutil.ReloadQuestion(t, db, question.ID).HasAcceptedAnswer)
}
