package repository

import (
	"context"
	"testing"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRepository_CreateRejectsDuplicate(t *testing.T) {
	db := setupSQLite(t)
	f := seedFixture(t, db)
	repo := NewReportRepository(db)
	ctx := context.Background()

	first := &models.CommentReport{CommentID: f.comment.ID, ReporterID: f.reader.ID, Reason: models.ReasonSpam}
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, models.ReportPending, first.Status)

	exists, err := repo.Exists(ctx, f.comment.ID, f.reader.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	dup := &models.CommentReport{CommentID: f.comment.ID, ReporterID: f.reader.ID, Reason: models.ReasonOther}
	err = repo.Create(ctx, dup)
	assert.True(t, IsUniqueViolation(err))
}

func TestReportRepository_ResolveFlagsComment(t *testing.T) {
	db := setupSQLite(t)
	f := seedFixture(t, db)
	repo := NewReportRepository(db)
	ctx := context.Background()

	report := &models.CommentReport{CommentID: f.comment.ID, ReporterID: f.reader.ID, Reason: models.ReasonHarassment}
	require.NoError(t, repo.Create(ctx, report))

	res, err := repo.Resolve(ctx, report.ID, models.ReportResolved, f.author.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportPending, res.PreviousStatus)
	assert.True(t, res.CommentFlagged)
	assert.Equal(t, models.CommentActive, res.PreviousCommentStatus)
	assert.Equal(t, models.ReportResolved, res.Report.Status)
	require.NotNil(t, res.Report.HandledBy)
	assert.Equal(t, f.author.ID, *res.Report.HandledBy)
	assert.NotNil(t, res.Report.HandledAt)

	var comment models.Comment
	require.NoError(t, db.First(&comment, f.comment.ID).Error)
	assert.Equal(t, models.CommentReported, comment.Status)
}

func TestReportRepository_ResolveOverwritesDeletedComment(t *testing.T) {
	db := setupSQLite(t)
	f := seedFixture(t, db)
	repo := NewReportRepository(db)
	ctx := context.Background()

	report := &models.CommentReport{CommentID: f.comment.ID, ReporterID: f.reader.ID, Reason: models.ReasonSpam}
	require.NoError(t, repo.Create(ctx, report))
	require.NoError(t, db.Model(&models.Comment{}).Where("id = ?", f.comment.ID).Update("status", models.CommentDeleted).Error)

	res, err := repo.Resolve(ctx, report.ID, models.ReportResolved, f.author.ID)
	require.NoError(t, err)
	assert.True(t, res.CommentFlagged)
	assert.Equal(t, models.CommentDeleted, res.PreviousCommentStatus)

	var comment models.Comment
	require.NoError(t, db.First(&comment, f.comment.ID).Error)
	assert.Equal(t, models.CommentReported, comment.Status)
}

func TestReportRepository_RejectLeavesComment(t *testing.T) {
	db := setupSQLite(t)
	f := seedFixture(t, db)
	repo := NewReportRepository(db)
	ctx := context.Background()

	report := &models.CommentReport{CommentID: f.comment.ID, ReporterID: f.reader.ID, Reason: models.ReasonOther}
	require.NoError(t, repo.Create(ctx, report))

	res, err := repo.Resolve(ctx, report.ID, models.ReportRejected, f.author.ID)
	require.NoError(t, err)
	assert.False(t, res.CommentFlagged)

	var comment models.Comment
	require.NoError(t, db.First(&comment, f.comment.ID).Error)
	assert.Equal(t, models.CommentActive, comment.Status)

	pending := models.ReportPending
	list, err := repo.List(ctx, &pending, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = repo.List(ctx, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Comment)
	assert.Equal(t, f.comment.ID, list[0].Comment.ID)
}

func TestReportRepository_ResolveMissing(t *testing.T) {
	db := setupSQLite(t)
	repo := NewReportRepository(db)

	_, err := repo.Resolve(context.Background(), 42, models.ReportResolved, 1)
	assert.True(t, IsNotFound(err))
}
