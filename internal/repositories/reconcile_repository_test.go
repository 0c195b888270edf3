package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, MigrateReconcile(db))
	return db
}

func TestReconcileRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLReconcileRepository(newLedgerDB(t))

	postID := primitive.NewObjectID()
	delta := models.Delta{
		Create: []models.Notification{{
			UserID:   primitive.NewObjectID(),
			ActionBy: primitive.NewObjectID(),
			Type:     models.NotificationLike,
			Post:     &postID,
		}},
		DeleteMany: []models.NotificationFilter{{Post: &postID}},
	}
	require.NoError(t, repo.Record(ctx, "post.like", delta, errors.New("mongo down")))

	count, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	rows, err := repo.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "post.like", rows[0].Operation)
	assert.Equal(t, "mongo down", rows[0].LastError)

	got := rows[0].Payload.Data()
	require.Len(t, got.Create, 1)
	assert.Equal(t, postID, *got.Create[0].Post)
	assert.Equal(t, postID, *got.DeleteMany[0].Post)

	require.NoError(t, repo.MarkFailed(ctx, rows[0].ID, errors.New("still down")))
	rows, err = repo.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, rows[0].Attempts)
	assert.Equal(t, "still down", rows[0].LastError)

	require.NoError(t, repo.MarkApplied(ctx, rows[0].ID))
	count, err = repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFilterToBSON(t *testing.T) {
	user := primitive.NewObjectID()
	comment := primitive.NewObjectID()

	m := filterToBSON(models.NotificationFilter{
		UserID:       &user,
		Type:         models.NotificationMention,
		Comment:      &comment,
		WithoutReply: true,
	})
	assert.Equal(t, user, m["userId"])
	assert.Equal(t, models.NotificationMention, m["type"])
	assert.Equal(t, comment, m["comment"])
	assert.Nil(t, m["replyId"])
	_, hasReply := m["replyId"]
	assert.True(t, hasReply)
	_, hasPost := m["post"]
	assert.False(t, hasPost)

	n := models.Notification{UserID: user, ActionBy: user, Type: models.NotificationFollow}
	exact := filterToBSON(n.Identity())
	for _, key := range []string{"post", "comment", "replyId"} {
		v, ok := exact[key]
		assert.True(t, ok, key)
		assert.Nil(t, v, key)
	}
}
