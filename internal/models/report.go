package models

import (
	"strings"
	"time"
)

// ReportReason is why a comment was reported.
type ReportReason string

const (
	ReasonSpam          ReportReason = "SPAM"
	ReasonInappropriate ReportReason = "INAPPROPRIATE"
	ReasonHarassment    ReportReason = "HARASSMENT"
	ReasonOther         ReportReason = "OTHER"
)

// ParseReportReason normalizes s and reports whether it is a known reason.
func ParseReportReason(s string) (ReportReason, bool) {
	r := ReportReason(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case ReasonSpam, ReasonInappropriate, ReasonHarassment, ReasonOther:
		return r, true
	}
	return r, false
}

// ReportStatus is the moderation state of a report.
type ReportStatus string

const (
	ReportPending  ReportStatus = "PENDING"
	ReportResolved ReportStatus = "RESOLVED"
	ReportRejected ReportStatus = "REJECTED"
)

// Terminal reports whether no further transition is expected from s.
func (s ReportStatus) Terminal() bool {
	return s == ReportResolved || s == ReportRejected
}

// ParseReportStatus normalizes s and reports whether it is a known status.
func ParseReportStatus(s string) (ReportStatus, bool) {
	st := ReportStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case ReportPending, ReportResolved, ReportRejected:
		return st, true
	}
	return st, false
}

// CommentReport is a user's report against a comment. A reporter can report
// a given comment once.
type CommentReport struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	CommentID   uint         `gorm:"not null;uniqueIndex:idx_report_comment_reporter,priority:1" json:"comment_id"`
	Comment     *Comment     `gorm:"foreignKey:CommentID" json:"comment,omitempty"`
	ReporterID  uint         `gorm:"not null;uniqueIndex:idx_report_comment_reporter,priority:2;index" json:"reporter_id"`
	Reason      ReportReason `gorm:"size:32;not null" json:"reason"`
	Description *string      `gorm:"type:text" json:"description,omitempty"`
	Status      ReportStatus `gorm:"size:16;not null;default:PENDING;index" json:"status"`
	HandledBy   *uint        `json:"handled_by,omitempty"`
	HandledAt   *time.Time   `json:"handled_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
