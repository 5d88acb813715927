package models

import (
	"strings"
	"time"
)

// ReactionType is the closed set of reactions an actor can hold on a target.
type ReactionType string

const (
	ReactionLike    ReactionType = "LIKE"
	ReactionDislike ReactionType = "DISLIKE"
	// ReactionNone is only ever returned, never stored.
	ReactionNone ReactionType = "NONE"
)

// counterColumns maps each storable reaction type to the counter it drives
// on the target row.
var counterColumns = map[ReactionType]string{
	ReactionLike:    "like_count",
	ReactionDislike: "dislike_count",
}

// CounterColumn returns the target column counting reactions of type t.
func (t ReactionType) CounterColumn() (string, bool) {
	col, ok := counterColumns[t]
	return col, ok
}

// Valid reports whether t can be stored on a reaction row.
func (t ReactionType) Valid() bool {
	_, ok := counterColumns[t]
	return ok
}

// ParseReactionType accepts "like"/"LIKE"/"dislike"/"DISLIKE".
func ParseReactionType(s string) (ReactionType, bool) {
	t := ReactionType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

// TargetType names the kind of entity a reaction is attached to.
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
)

var targetTables = map[TargetType]string{
	TargetPost:    "posts",
	TargetComment: "comments",
}

// Table returns the table holding targets of this type and their counters.
func (t TargetType) Table() (string, bool) {
	table, ok := targetTables[t]
	return table, ok
}

// ParseTargetType accepts "post" and "comment" in any case.
func ParseTargetType(s string) (TargetType, bool) {
	t := TargetType(strings.ToLower(strings.TrimSpace(s)))
	_, ok := targetTables[t]
	return t, ok
}

// Target identifies one post or comment.
type Target struct {
	Type TargetType
	ID   uint
}

// Reaction is one actor's reaction on one target. The unique index allows
// at most one row per (target_type, target_id, user_id).
type Reaction struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	TargetType TargetType   `gorm:"size:16;not null;uniqueIndex:idx_reaction_target_actor,priority:1" json:"target_type"`
	TargetID   uint         `gorm:"not null;uniqueIndex:idx_reaction_target_actor,priority:2" json:"target_id"`
	UserID     uint         `gorm:"not null;uniqueIndex:idx_reaction_target_actor,priority:3;index" json:"user_id"`
	Type       ReactionType `gorm:"size:16;not null" json:"type"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// ReactionStats is the counter view of a target for one viewer.
type ReactionStats struct {
	TargetType   TargetType `json:"target_type"`
	TargetID     uint       `json:"target_id"`
	LikeCount    int64      `json:"like_count"`
	DislikeCount int64      `json:"dislike_count"`
	UserLiked    bool       `json:"user_liked"`
	UserDisliked bool       `json:"user_disliked"`
}
