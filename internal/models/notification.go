package models

import (
	"strings"
	"time"
)

// NotificationType classifies what triggered a notification.
type NotificationType string

const (
	NotificationComment    NotificationType = "COMMENT"
	NotificationReply      NotificationType = "REPLY"
	NotificationLike       NotificationType = "LIKE"
	NotificationPostLike   NotificationType = "POST_LIKE"
	NotificationPostUpdate NotificationType = "POST_UPDATE"
	NotificationSystem     NotificationType = "SYSTEM"
)

// ParseNotificationType normalizes s and reports whether it is a known type.
func ParseNotificationType(s string) (NotificationType, bool) {
	t := NotificationType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case NotificationComment, NotificationReply, NotificationLike,
		NotificationPostLike, NotificationPostUpdate, NotificationSystem:
		return t, true
	}
	return t, false
}

// NotificationStatus is the read state of a notification.
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "UNREAD"
	NotificationRead   NotificationStatus = "READ"
)

// ParseNotificationStatus normalizes s and reports whether it is a known status.
func ParseNotificationStatus(s string) (NotificationStatus, bool) {
	st := NotificationStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st == NotificationUnread || st == NotificationRead
}

// Notification is owned by its recipient.
type Notification struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	Type        NotificationType   `gorm:"size:32;not null" json:"type"`
	Title       string             `gorm:"size:255;not null" json:"title"`
	Content     string             `gorm:"type:text;not null" json:"content"`
	RecipientID uint               `gorm:"not null;index:idx_notification_recipient_status,priority:1" json:"recipient_id"`
	SenderID    *uint              `json:"sender_id,omitempty"`
	PostID      *uint              `json:"post_id,omitempty"`
	CommentID   *uint              `json:"comment_id,omitempty"`
	Status      NotificationStatus `gorm:"size:16;not null;default:UNREAD;index:idx_notification_recipient_status,priority:2" json:"status"`
	ReadAt      *time.Time         `json:"read_at,omitempty"`
	CreatedAt   time.Time          `gorm:"index" json:"created_at"`
}

// NotificationFilter narrows a recipient's notification list. Set fields are
// combined with AND; a zero time bound is open.
type NotificationFilter struct {
	Type   *NotificationType
	Status *NotificationStatus
	From   time.Time
	To     time.Time
}
