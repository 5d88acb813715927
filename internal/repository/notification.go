package repository

import (
	"context"
	"time"

	"quill/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository defines interface for notification operations.
// Every recipient-scoped method matches on both id and recipient so one
// user can never touch another user's rows.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	List(ctx context.Context, recipientID uint, filter models.NotificationFilter, limit, offset int) ([]models.Notification, error)
	ListUnread(ctx context.Context, recipientID uint, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID uint) (int64, error)
	MarkAsRead(ctx context.Context, id, recipientID uint, at time.Time) (bool, error)
	MarkAllAsRead(ctx context.Context, recipientID uint, at time.Time) (int64, error)
	Delete(ctx context.Context, id, recipientID uint) (bool, error)
	DeleteRead(ctx context.Context, recipientID uint) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.Status == "" {
		n.Status = models.NotificationUnread
	}
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) List(
	ctx context.Context, recipientID uint, filter models.NotificationFilter, limit, offset int,
) ([]models.Notification, error) {
	limit, offset = clampPage(limit, offset)
	q := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if !filter.From.IsZero() {
		q = q.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("created_at <= ?", filter.To)
	}
	var out []models.Notification
	err := q.Order("created_at desc").Order("id desc").Limit(limit).Offset(offset).Find(&out).Error
	return out, err
}

func (r *notificationRepository) ListUnread(
	ctx context.Context, recipientID uint, limit, offset int,
) ([]models.Notification, error) {
	unread := models.NotificationUnread
	return r.List(ctx, recipientID, models.NotificationFilter{Status: &unread}, limit, offset)
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND status = ?", recipientID, models.NotificationUnread).
		Count(&count).Error
	return count, err
}

// MarkAsRead reports whether a row owned by recipientID matched. Marking an
// already read notification succeeds and keeps its original read_at.
func (r *notificationRepository) MarkAsRead(ctx context.Context, id, recipientID uint, at time.Time) (bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ? AND status = ?", id, recipientID, models.NotificationUnread).
		Updates(map[string]interface{}{"status": models.NotificationRead, "read_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var count int64
	err := db.Model(&models.Notification{}).Where("id = ? AND recipient_id = ?", id, recipientID).Count(&count).Error
	return count > 0, err
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, recipientID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND status = ?", recipientID, models.NotificationUnread).
		Updates(map[string]interface{}{"status": models.NotificationRead, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) Delete(ctx context.Context, id, recipientID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).Delete(&models.Notification{})
	return res.RowsAffected > 0, res.Error
}

func (r *notificationRepository) DeleteRead(ctx context.Context, recipientID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("recipient_id = ? AND status = ?", recipientID, models.NotificationRead).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

// DeleteOlderThan removes notifications of every recipient created before cutoff.
func (r *notificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
