package voting

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qna-forum/backend/internal/apperr"
	"github.com/emilythestrangee/qna-forum/backend/internal/models"
	"github.com/emilythestrangee/qna-forum/backend/internal/notify"
	"github.com/emilythestrangee/qna-forum/backend/internal/reputation"
	"github.com/emilythestrangee/qna-forum/backend/internal/testutil"
	mock_voting "github.com/emilythestrangee/qna-forum/backend/internal/voting/mocks"
)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	author   *models.User
	voter    *models.User
	question *models.Question
	answer   *models.Answer
	comment  *models.Comment
}

func newFixture(t *testing.T, notifier Notifier) fixture {
	db := testutil.NewDB(t)
	logger := zap.NewNop().Sugar()
	if notifier == nil {
		notifier = notify.NewService(db, logger, notify.DefaultDedupWindow)
	}

	author := testutil.CreateUser(t, db, "mallory", 100)
	voter := testutil.CreateUser(t, db, "victor", 0)
	question := testutil.CreateQuestion(t, db, author)

	return fixture{
		db:       db,
		svc:      NewService(db, reputation.NewLedger(db, logger), notifier, logger, 3),
		author:   author,
		voter:    voter,
		question: question,
		answer:   testutil.CreateAnswer(t, db, question, author),
		comment:  testutil.CreateComment(t, db, question, author),
	}
}

func (f fixture) counter(t *testing.T, kind models.TargetKind, id int) int {
	value, err := CounterSync{}.Value(f.db, kind, id)
	require.NoError(t, err)
	return value
}

func (f fixture) reputation(t *testing.T) int {
	return testutil.ReloadUser(t, f.db, f.author.ID).Reputation
}

func TestCastVote_AnswerScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.CastVote(ctx, f.voter.ID, models.KindAnswer, f.answer.ID, models.Up)
	require.NoError(t, err)
	assert.Equal(t, models.VoteCreated, res.Action)
	assert.Equal(t, 1, res.NewCounter)
	assert.Equal(t, 10, res.AuthorDelta)
	assert.Equal(t, 110, f.reputation(t))

	res, err = f.svc.CastVote(ctx, f.voter.ID, models.KindAnswer, f.answer.ID, models.Down)
	require.NoError(t, err)
	assert.Equal(t, models.VoteChanged, res.Action)
	assert.Equal(t, models.Up, res.PreviousDirection)
	assert.Equal(t, -1, res.NewCounter)
	assert.Equal(t, 98, f.reputation(t))

	res, err = f.svc.CastVote(ctx, f.voter.ID, models.KindAnswer, f.answer.ID, models.Down)
	require.NoError(t, err)
	assert.Equal(t, models.VoteRemoved, res.Action)
	assert.Equal(t, 0, res.NewCounter)
	assert.Equal(t, 100, f.reputation(t))
	assert.Equal(t, 100, res.AuthorReputation)
}

func TestCastVote_ToggleRestoresCounter(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, kind := range []models.TargetKind{models.KindQuestion, models.KindAnswer, models.KindComment} {
		id := map[models.TargetKind]int{
			models.KindQuestion: f.question.ID,
			models.KindAnswer:   f.answer.ID,
			models.KindComment:  f.comment.ID,
		}[kind]
		before := f.counter(t, kind, id)
		repBefore := f.reputation(t)

		_, err := f.svc.CastVote(ctx, f.voter.ID, kind, id, models.Up)
		require.NoError(t, err)
		res, err := f.svc.CastVote(ctx, f.voter.ID, kind, id, models.Up)
		require.NoError(t, err)

		assert.Equal(t, models.VoteRemoved, res.Action, kind)
		assert.Equal(t, before, f.counter(t, kind, id), kind)
		assert.Equal(t, repBefore, f.reputation(t), kind)
	}
}

func TestCastVote_DirectionFlip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, kind := range []models.TargetKind{models.KindQuestion, models.KindAnswer, models.KindComment} {
		id := map[models.TargetKind]int{
			models.KindQuestion: f.question.ID,
			models.KindAnswer:   f.answer.ID,
			models.KindComment:  f.comment.ID,
		}[kind]

		up, err := f.svc.CastVote(ctx, f.voter.ID, kind, id, models.Up)
		require.NoError(t, err)
		repUp := f.reputation(t)

		down, err := f.svc.CastVote(ctx, f.voter.ID, kind, id, models.Down)
		require.NoError(t, err)

		assert.Equal(t, models.VoteChanged, down.Action, kind)
		assert.Equal(t, up.NewCounter-2, down.NewCounter, kind)
		want := reputation.Magnitude(kind, models.Down) - reputation.Magnitude(kind, models.Up)
		assert.Equal(t, want, f.reputation(t)-repUp, kind)
	}
}

// Random sequences from one voter leave at most one vote whose direction is
// the last cast that did not remove it, and the counter matches the ledger.
func TestCastVote_SingleVotePerPair(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	var current models.Direction
	for i := 0; i < 40; i++ {
		dir := models.Up
		if rng.Intn(2) == 0 {
			dir = models.Down
		}

		res, err := f.svc.CastVote(ctx, f.voter.ID, models.KindQuestion, f.question.ID, dir)
		require.NoError(t, err)
		if res.Action == models.VoteRemoved {
			current = 0
		} else {
			current = dir
		}

		var votes []models.Vote
		require.NoError(t, f.db.Where("voter_id = ? AND target_kind = ? AND target_id = ?",
			f.voter.ID, models.KindQuestion, f.question.ID).Find(&votes).Error)
		require.LessOrEqual(t, len(votes), 1)
		if current == 0 {
			assert.Empty(t, votes)
		} else {
			require.Len(t, votes, 1)
			assert.Equal(t, current, votes[0].Direction)
		}
		assert.Equal(t, int(current), f.counter(t, models.KindQuestion, f.question.ID))
	}
}

func TestCastVote_CounterConservation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const voters = 12
	var wg sync.WaitGroup
	var up, down atomic.Int64
	errs := make(chan error, voters)

	for i := 0; i < voters; i++ {
		voter := testutil.CreateUser(t, f.db, "voter"+string(rune('a'+i)), 0)
		dir := models.Up
		if i%3 == 0 {
			dir = models.Down
		}

		wg.Add(1)
		go func(voterID int, dir models.Direction) {
			defer wg.Done()
			if _, err := f.svc.CastVote(ctx, voterID, models.KindAnswer, f.answer.ID, dir); err != nil {
				errs <- err
				return
			}
			if dir == models.Up {
				up.Add(1)
			} else {
				down.Add(1)
			}
		}(voter.ID, dir)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int(up.Load()-down.Load()), f.counter(t, models.KindAnswer, f.answer.ID))
	assert.Equal(t, 100+int(up.Load())*10-int(down.Load())*2, f.reputation(t))

	check, err := f.svc.VerifyCounter(ctx, models.KindAnswer, f.answer.ID)
	require.NoError(t, err)
	assert.Zero(t, check.Drift)
	assert.Equal(t, int(up.Load()), check.Up)
}

func TestCastVote_ConcurrentSamePair(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CastVote(ctx, f.voter.ID, models.KindComment, f.comment.ID, models.Up)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var votes []models.Vote
	require.NoError(t, f.db.Where("target_kind = ? AND target_id = ?", models.KindComment, f.comment.ID).Find(&votes).Error)
	assert.Len(t, votes, 1)
	assert.Equal(t, 1, f.counter(t, models.KindComment, f.comment.ID))
	assert.Equal(t, 102, f.reputation(t))
}

func TestCastVote_RetriesAfterUniqueViolation(t *testing.T) {
	f := newFixture(t, nil)

	var raced atomic.Bool
	err := f.db.Callback().Create().Before("gorm:create").Register("test:race", func(d *gorm.DB) {
		if d.Statement.Table == "votes" && raced.CompareAndSwap(false, true) {
			d.Session(&gorm.Session{NewDB: true}).Exec(
				"INSERT INTO votes (voter_id, target_kind, target_id, direction, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
				f.voter.ID, models.KindAnswer, f.answer.ID, models.Down, d.NowFunc(), d.NowFunc())
		}
	})
	require.NoError(t, err)

	res, err := f.svc.CastVote(context.Background(), f.voter.ID, models.KindAnswer, f.answer.ID, models.Up)
	require.NoError(t, err)
	assert.True(t, raced.Load())
	assert.Equal(t, models.VoteCreated, res.Action)
	assert.Equal(t, 1, f.counter(t, models.KindAnswer, f.answer.ID))
	assert.Equal(t, 110, f.reputation(t))
}

func TestCastVote_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CastVote(ctx, f.author.ID, models.KindAnswer, f.answer.ID, models.Up)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CastVote(ctx, f.voter.ID, models.KindAnswer, 9999, models.Up)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.CastVote(ctx, f.voter.ID, models.KindAnswer, f.answer.ID, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CastVote(ctx, f.voter.ID, "poll", 1, models.Up)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, f.db.Model(&models.Answer{}).Where("id = ?", f.answer.ID).Update("is_deleted", true).Error)
	_, err = f.svc.CastVote(ctx, f.voter.ID, models.KindAnswer, f.answer.ID, models.Up)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, 100, f.reputation(t))
}

func TestCastVote_NotificationFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mock_voting.NewMockNotifier(ctrl)
	f := newFixture(t, notifier)
	ctx := context.Background()

	notifier.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p notify.Payload) (*models.Notification, error) {
			assert.Equal(t, f.voter.ID, p.SenderID)
			assert.Equal(t, f.author.ID, p.RecipientID)
			assert.Equal(t, models.NotificationAnswerVoted, p.Type)
			assert.Equal(t, f.question.ID, *p.RelatedQuestionID)
			assert.Equal(t, f.answer.ID, *p.RelatedAnswerID)
			assert.Equal(t, "up", p.Metadata["vote_type"])
			return nil, errors.New("notifications unavailable")
		})

	res, err := f.svc.CastVote(ctx, f.voter.ID, models.KindAnswer, f.answer.ID, models.Up)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewCounter)
	assert.Equal(t, 110, f.reputation(t))

	// Removing a vote notifies nobody; an unexpected call would fail the test.
	res, err = f.svc.CastVote(ctx, f.voter.ID, models.KindAnswer, f.answer.ID, models.Up)
	require.NoError(t, err)
	assert.Equal(t, models.VoteRemoved, res.Action)
}

func TestCastVote_NotificationsDeduplicated(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.svc.CastVote(ctx, f.voter.ID, models.KindQuestion, f.question.ID, models.Up)
		require.NoError(t, err)
	}

	var n int64
	require.NoError(t, f.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", f.author.ID, models.NotificationQuestionVoted).
		Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestGetVotesForTargets(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CastVote(ctx, f.voter.ID, models.KindQuestion, f.question.ID, models.Up)
	require.NoError(t, err)
	_, err = f.svc.CastVote(ctx, f.voter.ID, models.KindComment, f.comment.ID, models.Down)
	require.NoError(t, err)

	votes, err := f.svc.GetVotesForTargets(ctx, f.voter.ID, []TargetRef{
		{Kind: models.KindQuestion, ID: f.question.ID},
		{Kind: models.KindAnswer, ID: f.answer.ID},
		{Kind: models.KindComment, ID: f.comment.ID},
	})
	require.NoError(t, err)
	assert.Len(t, votes, 2)
	assert.Equal(t, models.Down, votes[TargetRef{Kind: models.KindComment, ID: f.comment.ID}])

	dir, ok, err := f.svc.GetUserVote(ctx, f.voter.ID, models.KindQuestion, f.question.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.Up, dir)

	_, err = f.svc.GetVotesForTargets(ctx, f.voter.ID, []TargetRef{{Kind: "poll", ID: 1}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestVerifyCounter_ReportsDrift(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CastVote(ctx, f.voter.ID, models.KindQuestion, f.question.ID, models.Up)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Question{}).Where("id = ?", f.question.ID).
		UpdateColumn("vote_count", gorm.Expr("vote_count + 3")).Error)

	check, err := f.svc.VerifyCounter(ctx, models.KindQuestion, f.question.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, check.Up)
	assert.Equal(t, 4, check.Counter)
	assert.Equal(t, 3, check.Drift)
}
