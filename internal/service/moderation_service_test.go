package service

import (
	"context"
	"sync"
	"testing"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModerationService_ReportValidation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := e.user(t, "ava", false)
	post := e.post(t, a)
	comment, err := e.comments.CreateComment(ctx, CreateCommentInput{UserID: a.ID, PostID: post.ID, Content: "hi"})
	require.NoError(t, err)

	_, err = e.moderation.ReportComment(ctx, ReportCommentInput{CommentID: comment.ID, ReporterID: a.ID})
	assertValidationError(t, err)

	_, err = e.moderation.ReportComment(ctx, ReportCommentInput{CommentID: comment.ID, ReporterID: a.ID, Reason: "BORING"})
	assertValidationError(t, err)

	_, err = e.moderation.ReportComment(ctx, ReportCommentInput{CommentID: 999, ReporterID: a.ID, Reason: "SPAM"})
	assertNotFoundError(t, err)

	_, err = e.moderation.ReportComment(ctx, ReportCommentInput{CommentID: comment.ID, Reason: "SPAM"})
	assertUnauthorizedError(t, err)
}

// Report, duplicate report, then resolve: one row, a DUPLICATE_REPORT
// conflict, and the comment ends REPORTED.
func TestModerationService_ReportResolveScenario(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	author := e.user(t, "kim", false)
	reporter := e.user(t, "lee", false)
	mod := e.user(t, "max", true)
	post := e.post(t, author)
	comment, err := e.comments.CreateComment(ctx, CreateCommentInput{UserID: author.ID, PostID: post.ID, Content: "spammy"})
	require.NoError(t, err)

	desc := "buy now"
	report, err := e.moderation.ReportComment(ctx, ReportCommentInput{CommentID: comment.ID, ReporterID: reporter.ID, Reason: "spam", Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, models.ReportPending, report.Status)
	assert.Equal(t, models.ReasonSpam, report.Reason)

	_, err = e.moderation.ReportComment(ctx, ReportCommentInput{CommentID: comment.ID, ReporterID: reporter.ID, Reason: "OTHER"})
	assertAppError(t, err, models.CodeDuplicateReport)
	assert.Equal(t, 409, models.StatusFor(err))

	_, err = e.moderation.HandleReport(ctx, HandleReportInput{ReportID: report.ID, ModeratorID: reporter.ID, Status: "RESOLVED"})
	assertForbiddenError(t, err)

	_, err = e.moderation.HandleReport(ctx, HandleReportInput{ReportID: report.ID, ModeratorID: mod.ID, Status: "PENDING"})
	assertValidationError(t, err)

	_, err = e.moderation.HandleReport(ctx, HandleReportInput{ReportID: 999, ModeratorID: mod.ID, Status: "RESOLVED"})
	assertNotFoundError(t, err)

	handled, err := e.moderation.HandleReport(ctx, HandleReportInput{ReportID: report.ID, ModeratorID: mod.ID, Status: "RESOLVED"})
	require.NoError(t, err)
	assert.Equal(t, models.ReportResolved, handled.Status)
	require.NotNil(t, handled.HandledBy)
	assert.Equal(t, mod.ID, *handled.HandledBy)

	var stored models.Comment
	require.NoError(t, e.db.First(&stored, comment.ID).Error)
	assert.Equal(t, models.CommentReported, stored.Status)

	reported, err := e.moderation.ListReportedComments(ctx, mod.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, reported, 1)
	assert.Equal(t, comment.ID, reported[0].ID)

	all, err := e.moderation.ListReports(ctx, mod.ID, nil, 20, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = e.moderation.ListReports(ctx, reporter.ID, nil, 20, 0)
	assertForbiddenError(t, err)

	// Re-handling a terminal report overwrites it.
	again, err := e.moderation.HandleReport(ctx, HandleReportInput{ReportID: report.ID, ModeratorID: mod.ID, Status: "REJECTED"})
	require.NoError(t, err)
	assert.Equal(t, models.ReportRejected, again.Status)
}

func TestModerationService_ConcurrentDuplicateReports(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	author := e.user(t, "ned", false)
	reporter := e.user(t, "ola", false)
	post := e.post(t, author)
	comment, err := e.comments.CreateComment(ctx, CreateCommentInput{UserID: author.ID, PostID: post.ID, Content: "x"})
	require.NoError(t, err)

	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.moderation.ReportComment(ctx, ReportCommentInput{CommentID: comment.ID, ReporterID: reporter.ID, Reason: "SPAM"})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		if models.ErrorCode(err) == models.CodeDuplicateReport {
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)

	var rows int64
	require.NoError(t, e.db.Model(&models.CommentReport{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}
