// Package testutil provides fixtures shared by the package tests: an
// isolated in-memory database per test and seed helpers for the entities
// the engine reads.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qna-forum/backend/internal/database"
	"github.com/emilythestrangee/qna-forum/backend/internal/models"
)

var dbSeq atomic.Int64

// NewDatabase returns a migrated in-memory sqlite database private to t.
func NewDatabase(t *testing.T) database.Service {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, dbSeq.Add(1))

	svc, err := database.NewSQLite(dsn, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	return svc
}

func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	return NewDatabase(t).GetDB()
}

func CreateUser(t *testing.T, db *gorm.DB, username string, reputation int) *models.User {
	t.Helper()

	user := &models.User{
		Username:   username,
		Email:      username + "@example.com",
		Role:       models.RoleMember,
		Reputation: reputation,
		Rank:       "Beginner",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func CreateQuestion(t *testing.T, db *gorm.DB, author *models.User) *models.Question {
	t.Helper()

	question := &models.Question{
		Title:    "How do I keep a counter consistent?",
		Body:     "Details",
		AuthorID: author.ID,
	}
	require.NoError(t, db.Omit("Author").Create(question).Error)
	return question
}

// CreateAnswer inserts a live answer and bumps the question's answers_count
// the way the answer-posting flow does.
func CreateAnswer(t *testing.T, db *gorm.DB, question *models.Question, author *models.User) *models.Answer {
	t.Helper()

	answer := &models.Answer{
		QuestionID: question.ID,
		AuthorID:   author.ID,
		Body:       "Use an atomic increment.",
	}
	require.NoError(t, db.Omit("Author").Create(answer).Error)
	require.NoError(t, db.Model(&models.Question{}).Where("id = ?", question.ID).
		UpdateColumn("answers_count", gorm.Expr("answers_count + 1")).Error)
	return answer
}

func CreateComment(t *testing.T, db *gorm.DB, question *models.Question, author *models.User) *models.Comment {
	t.Helper()

	comment := &models.Comment{
		Body:       "Nice question",
		AuthorID:   author.ID,
		QuestionID: question.ID,
	}
	require.NoError(t, db.Omit("User").Create(comment).Error)
	return comment
}

func ReloadUser(t *testing.T, db *gorm.DB, id int) models.User {
	t.Helper()

	var user models.User
	require.NoError(t, db.First(&user, id).Error)
	return user
}

func ReloadQuestion(t *testing.T, db *gorm.DB, id int) models.Question {
	t.Helper()

	var question models.Question
	require.NoError(t, db.First(&question, id).Error)
	return question
}

func ReloadAnswer(t *testing.T, db *gorm.DB, id int) models.Answer {
	t.Helper()

	var answer models.Answer
	require.NoError(t, db.First(&answer, id).Error)
	return answer
}
