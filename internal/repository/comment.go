package repository

import (
	"context"
	"time"

	"quill/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListTopLevel(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error)
	ListReplies(ctx context.Context, parentID uint) ([]*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Comment, error)
	ListByStatus(ctx context.Context, status models.CommentStatus, limit, offset int) ([]*models.Comment, error)
	UpdateContent(ctx context.Context, id uint, content string) error
	UpdateStatus(ctx context.Context, id uint, status models.CommentStatus) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.Status == "" {
		comment.Status = models.CommentActive
	}
	return r.db.WithContext(ctx).Omit("User").Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListTopLevel(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error) {
	limit, offset = clampPage(limit, offset)
	var comments []*models.Comment
	err := r.db.WithContext(ctx).Preload("User").
		Where("post_id = ? AND parent_id IS NULL", postID).
		Order("created_at desc").Order("id desc").
		Limit(limit).Offset(offset).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) ListReplies(ctx context.Context, parentID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).Preload("User").
		Where("parent_id = ?", parentID).
		Order("created_at asc").Order("id asc").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).Preload("User").
		Where("post_id = ?", postID).
		Order("created_at asc").Order("id asc").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Comment, error) {
	limit, offset = clampPage(limit, offset)
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		Limit(limit).Offset(offset).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) ListByStatus(
	ctx context.Context, status models.CommentStatus, limit, offset int,
) ([]*models.Comment, error) {
	limit, offset = clampPage(limit, offset)
	var comments []*models.Comment
	err := r.db.WithContext(ctx).Preload("User").
		Where("status = ?", status).
		Order("updated_at desc").
		Limit(limit).Offset(offset).
		Find(&comments).Error
	return comments, err
}

// UpdateContent rewrites content and updated_at only; status and counters
// are left untouched.
func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"content": content, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *commentRepository) UpdateStatus(ctx context.Context, id uint, status models.CommentStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
