package models

import "time"

// CommentStatus is the moderation status of a comment.
type CommentStatus string

const (
	CommentActive   CommentStatus = "ACTIVE"
	CommentDeleted  CommentStatus = "DELETED"
	CommentReported CommentStatus = "REPORTED"
)

// Comment is a post comment. ParentID links a reply to its parent; rows are
// never physically removed so replies keep a valid parent.
type Comment struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	PostID       uint          `gorm:"not null;index" json:"post_id"`
	UserID       uint          `gorm:"not null;index" json:"user_id"`
	User         *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ParentID     *uint         `gorm:"index" json:"parent_id,omitempty"`
	Content      string        `gorm:"type:text;not null" json:"content"`
	Status       CommentStatus `gorm:"size:16;not null;default:ACTIVE;index" json:"status"`
	LikeCount    int64         `gorm:"not null;default:0" json:"like_count"`
	DislikeCount int64         `gorm:"not null;default:0" json:"dislike_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`

	// Viewer-relative state, filled in by the service layer.
	Liked    bool       `gorm:"-" json:"is_liked"`
	Disliked bool       `gorm:"-" json:"is_disliked"`
	Replies  []*Comment `gorm:"-" json:"replies,omitempty"`
}

// IsReply reports whether the comment has a parent.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}
