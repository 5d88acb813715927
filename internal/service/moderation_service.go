package service

import (
	"context"
	"log/slog"
	"strings"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ModerationService handles comment reports and their resolution.
type ModerationService struct {
	reportRepo  repository.ReportRepository
	commentRepo repository.CommentRepository
	isAdmin     func(ctx context.Context, userID uint) (bool, error)
}

type ReportCommentInput struct {
	CommentID   uint
	ReporterID  uint
	Reason      string
	Description *string
}

type HandleReportInput struct {
	ReportID    uint
	ModeratorID uint
	Status      string
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	reportRepo repository.ReportRepository,
	commentRepo repository.CommentRepository,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *ModerationService {
	return &ModerationService{reportRepo: reportRepo, commentRepo: commentRepo, isAdmin: isAdmin}
}

func duplicateReport() error {
	return models.NewConflictError(models.CodeDuplicateReport, "You have already reported this comment")
}

// ReportComment files a PENDING report. A reporter may report a comment once;
// the unique index backs the pre-check when two reports race.
func (s *ModerationService) ReportComment(ctx context.Context, in ReportCommentInput) (*models.CommentReport, error) {
	if err := requireActor(in.ReporterID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, models.NewValidationError("Reason is required")
	}
	reason, ok := models.ParseReportReason(in.Reason)
	if !ok {
		return nil, models.NewValidationError("Reason must be one of SPAM, INAPPROPRIATE, HARASSMENT, OTHER")
	}

	if _, err := s.commentRepo.GetByID(ctx, in.CommentID); err != nil {
		return nil, storageError(err, "Comment", in.CommentID)
	}

	exists, err := s.reportRepo.Exists(ctx, in.CommentID, in.ReporterID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if exists {
		return nil, duplicateReport()
	}

	report := &models.CommentReport{
		CommentID:   in.CommentID,
		ReporterID:  in.ReporterID,
		Reason:      reason,
		Description: in.Description,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, duplicateReport()
		}
		return nil, models.NewInternalError(err)
	}

	observability.CommentReports.WithLabelValues(string(reason)).Inc()
	return report, nil
}

// HandleReport records a moderator decision. RESOLVED flags the comment
// REPORTED unless it was already deleted.
func (s *ModerationService) HandleReport(ctx context.Context, in HandleReportInput) (*models.CommentReport, error) {
	if err := requireActor(in.ModeratorID); err != nil {
		return nil, err
	}
	status, ok := models.ParseReportStatus(in.Status)
	if !ok || !status.Terminal() {
		return nil, models.NewValidationError("Status must be RESOLVED or REJECTED")
	}
	if err := s.requireModerator(ctx, in.ModeratorID); err != nil {
		return nil, err
	}

	span, ctx := observability.NewSpan(ctx, "ModerationService.HandleReport",
		attribute.Int("report.id", int(in.ReportID)),
		attribute.String("report.status", string(status)),
	)
	defer span.End()

	res, err := s.reportRepo.Resolve(ctx, in.ReportID, status, in.ModeratorID)
	if err != nil {
		span.SetError(err)
		return nil, storageError(err, "Report", in.ReportID)
	}
	if res.PreviousStatus.Terminal() {
		middleware.Logger.WarnContext(ctx, "report handled again",
			slog.Uint64("report_id", uint64(in.ReportID)),
			slog.String("previous_status", string(res.PreviousStatus)),
			slog.String("status", string(status)),
		)
	}
	if res.PreviousCommentStatus == models.CommentDeleted {
		middleware.Logger.WarnContext(ctx, "deleted comment flagged as reported",
			slog.Uint64("report_id", uint64(in.ReportID)),
			slog.Uint64("comment_id", uint64(res.Report.CommentID)),
		)
	}
	return res.Report, nil
}

func (s *ModerationService) ListReports(
	ctx context.Context, moderatorID uint, status *models.ReportStatus, limit, offset int,
) ([]models.CommentReport, error) {
	if err := s.requireModerator(ctx, moderatorID); err != nil {
		return nil, err
	}
	reports, err := s.reportRepo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return reports, nil
}

func (s *ModerationService) ListReportedComments(ctx context.Context, moderatorID uint, limit, offset int) ([]*models.Comment, error) {
	if err := s.requireModerator(ctx, moderatorID); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByStatus(ctx, models.CommentReported, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (s *ModerationService) requireModerator(ctx context.Context, userID uint) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	if s.isAdmin == nil {
		return models.NewForbiddenError("Moderator access required")
	}
	admin, err := s.isAdmin(ctx, userID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !admin {
		return models.NewForbiddenError("Moderator access required")
	}
	return nil
}
