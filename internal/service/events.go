// Package service holds the engine's business rules on top of the repositories.
package service

import (
	"context"

	"quill/internal/models"
)

// EventKind names a committed domain change the dispatcher may notify about.
type EventKind string

const (
	EventCommentCreated  EventKind = "comment.created"
	EventReplyCreated    EventKind = "reply.created"
	EventReactionAdded   EventKind = "reaction.added"
	EventReactionRemoved EventKind = "reaction.removed"
	EventReactionChanged EventKind = "reaction.changed"
	EventPostUpdated     EventKind = "post.updated"
)

// Event is emitted after the transaction that produced it has committed.
// RecipientID is the owner of the affected entity: the post author for
// comments and post reactions, the parent author for replies and the comment
// author for comment reactions.
type Event struct {
	Kind        EventKind
	ActorID     uint
	RecipientID uint
	PostID      uint
	CommentID   uint
	TargetType  models.TargetType
	Reaction    models.ReactionType
}

// EventSink receives domain events. Emit must not block on delivery.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev Event)

func (f EventSinkFunc) Emit(ctx context.Context, ev Event) {
	f(ctx, ev)
}

type discardSink struct{}

func (discardSink) Emit(context.Context, Event) {}

func sinkOrDiscard(s EventSink) EventSink {
	if s == nil {
		return discardSink{}
	}
	return s
}
