package models

import "time"

// Post is a reaction target. Its CRUD lives outside the engine; only the
// denormalized reaction counters are written here.
type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	User         *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title        string    `gorm:"not null" json:"title"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	LikeCount    int64     `gorm:"not null;default:0" json:"like_count"`
	DislikeCount int64     `gorm:"not null;default:0" json:"dislike_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
