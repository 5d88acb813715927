package repository

import (
	"context"
	"errors"
	"time"

	"quill/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResolveResult describes the outcome of handling a report.
type ResolveResult struct {
	Report         *models.CommentReport
	PreviousStatus models.ReportStatus
	// CommentFlagged is true when the comment moved to REPORTED.
	CommentFlagged bool
	// PreviousCommentStatus is the comment's status before a RESOLVED
	// decision flagged it. Empty for REJECTED.
	PreviousCommentStatus models.CommentStatus
}

// ReportRepository defines interface for comment report operations
type ReportRepository interface {
	Create(ctx context.Context, report *models.CommentReport) error
	Exists(ctx context.Context, commentID, reporterID uint) (bool, error)
	GetByID(ctx context.Context, id uint) (*models.CommentReport, error)
	Resolve(ctx context.Context, id uint, status models.ReportStatus, moderatorID uint) (*ResolveResult, error)
	List(ctx context.Context, status *models.ReportStatus, limit, offset int) ([]models.CommentReport, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

// Create inserts a PENDING report. A second report by the same reporter on
// the same comment fails with a unique violation.
func (r *reportRepository) Create(ctx context.Context, report *models.CommentReport) error {
	report.Status = models.ReportPending
	return r.db.WithContext(ctx).Omit("Comment").Create(report).Error
}

func (r *reportRepository) Exists(ctx context.Context, commentID, reporterID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CommentReport{}).
		Where("comment_id = ? AND reporter_id = ?", commentID, reporterID).
		Count(&count).Error
	return count > 0, err
}

func (r *reportRepository) GetByID(ctx context.Context, id uint) (*models.CommentReport, error) {
	var report models.CommentReport
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// Resolve records the moderator decision and, for RESOLVED, flags the comment
// REPORTED in the same transaction. A DELETED comment keeps its status.
func (r *reportRepository) Resolve(
	ctx context.Context, id uint, status models.ReportStatus, moderatorID uint,
) (*ResolveResult, error) {
	var result ResolveResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report models.CommentReport
		if err := tx.First(&report, id).Error; err != nil {
			return err
		}
		result.PreviousStatus = report.Status

		now := time.Now()
		if err := tx.Model(&report).Updates(map[string]interface{}{
			"status":     status,
			"handled_by": moderatorID,
			"handled_at": now,
		}).Error; err != nil {
			return err
		}
		report.Status = status
		report.HandledBy = &moderatorID
		report.HandledAt = &now

		// RESOLVED flags the comment whatever its status, DELETED included.
		if status == models.ReportResolved {
			var comment models.Comment
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id, status").Where("id = ?", report.CommentID).Take(&comment).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err == nil {
				result.PreviousCommentStatus = comment.Status
				if err := tx.Model(&models.Comment{}).Where("id = ?", comment.ID).
					UpdateColumns(map[string]interface{}{"status": models.CommentReported, "updated_at": now}).Error; err != nil {
					return err
				}
				result.CommentFlagged = true
			}
		}

		result.Report = &report
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *reportRepository) List(
	ctx context.Context, status *models.ReportStatus, limit, offset int,
) ([]models.CommentReport, error) {
	limit, offset = clampPage(limit, offset)
	q := r.db.WithContext(ctx).Preload("Comment")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var reports []models.CommentReport
	err := q.Order("created_at desc").Limit(limit).Offset(offset).Find(&reports).Error
	return reports, err
}
