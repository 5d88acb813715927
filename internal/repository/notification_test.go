package repository

import (
	"context"
	"testing"
	"time"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createNotification(t *testing.T, repo NotificationRepository, recipient uint, typ models.NotificationType) *models.Notification {
	t.Helper()
	n := &models.Notification{Type: typ, Title: "t", Content: "c", RecipientID: recipient}
	require.NoError(t, repo.Create(context.Background(), n))
	return n
}

func TestNotificationRepository_ReadStateIsRecipientScoped(t *testing.T) {
	db := setupSQLite(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	n := createNotification(t, repo, 1, models.NotificationComment)
	assert.Equal(t, models.NotificationUnread, n.Status)

	ok, err := repo.MarkAsRead(ctx, n.ID, 2, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	first := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	ok, err = repo.MarkAsRead(ctx, n.ID, 1, first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkAsRead(ctx, n.ID, 1, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationRead, got.Status)
	require.NotNil(t, got.ReadAt)
	assert.True(t, got.ReadAt.Equal(first))

	deleted, err := repo.Delete(ctx, n.ID, 2)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.Delete(ctx, n.ID, 1)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestNotificationRepository_BulkOperations(t *testing.T) {
	db := setupSQLite(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		createNotification(t, repo, 1, models.NotificationLike)
	}
	createNotification(t, repo, 2, models.NotificationLike)

	count, err := repo.CountUnread(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	updated, err := repo.MarkAllAsRead(ctx, 1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)

	count, err = repo.CountUnread(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = repo.CountUnread(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	removed, err := repo.DeleteRead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	removed, err = repo.DeleteRead(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestNotificationRepository_ListFilters(t *testing.T) {
	db := setupSQLite(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	old := createNotification(t, repo, 1, models.NotificationComment)
	require.NoError(t, db.Model(old).Update("created_at", time.Now().Add(-48*time.Hour)).Error)
	createNotification(t, repo, 1, models.NotificationComment)
	reply := createNotification(t, repo, 1, models.NotificationReply)
	_, err := repo.MarkAsRead(ctx, reply.ID, 1, time.Now())
	require.NoError(t, err)

	all, err := repo.List(ctx, 1, models.NotificationFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	commentType := models.NotificationComment
	byType, err := repo.List(ctx, 1, models.NotificationFilter{Type: &commentType}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	recent, err := repo.List(ctx, 1, models.NotificationFilter{Type: &commentType, From: time.Now().Add(-time.Hour)}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	unread, err := repo.ListUnread(ctx, 1, 10, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	other, err := repo.List(ctx, 2, models.NotificationFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestNotificationRepository_DeleteOlderThan(t *testing.T) {
	db := setupSQLite(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	stale := createNotification(t, repo, 1, models.NotificationSystem)
	require.NoError(t, db.Model(stale).Update("created_at", time.Now().AddDate(0, 0, -40)).Error)
	createNotification(t, repo, 2, models.NotificationSystem)

	removed, err := repo.DeleteOlderThan(ctx, time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	var left int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&left).Error)
	assert.Equal(t, int64(1), left)
}
