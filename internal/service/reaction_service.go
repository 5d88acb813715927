package service

import (
	"context"
	"errors"

	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ReactionService toggles like/dislike state on posts and comments.
type ReactionService struct {
	reactionRepo repository.ReactionRepository
	events       EventSink
}

type ToggleReactionInput struct {
	UserID     uint
	TargetType models.TargetType
	TargetID   uint
	Type       string
}

type RemoveReactionInput struct {
	UserID     uint
	TargetType models.TargetType
	TargetID   uint
}

func NewReactionService(reactionRepo repository.ReactionRepository, events EventSink) *ReactionService {
	return &ReactionService{reactionRepo: reactionRepo, events: sinkOrDiscard(events)}
}

// Toggle applies the actor's reaction: same type removes it, a different type
// switches it, no reaction adds it. Counters are returned as committed.
func (s *ReactionService) Toggle(ctx context.Context, in ToggleReactionInput) (*repository.ToggleResult, error) {
	if err := requireActor(in.UserID); err != nil {
		return nil, err
	}
	if _, ok := in.TargetType.Table(); !ok {
		return nil, models.NewValidationError("Unknown target type")
	}
	reaction, ok := models.ParseReactionType(in.Type)
	if !ok {
		return nil, models.NewValidationError("Reaction type must be LIKE or DISLIKE")
	}

	span, ctx := observability.NewSpan(ctx, "ReactionService.Toggle",
		attribute.String("target.type", string(in.TargetType)),
		attribute.Int("target.id", int(in.TargetID)),
	)
	defer span.End()

	target := models.Target{Type: in.TargetType, ID: in.TargetID}
	res, err := s.reactionRepo.Toggle(ctx, target, in.UserID, reaction)
	if err != nil {
		span.SetError(err)
		return nil, s.mapError(err, target)
	}
	span.AddAttributes(attribute.String("reaction.transition", string(res.Transition)))
	observability.ReactionToggles.WithLabelValues(string(in.TargetType), string(res.Transition)).Inc()

	s.emit(ctx, in.UserID, res)
	return res, nil
}

// Remove deletes the actor's reaction whatever its type. Removing a missing
// reaction succeeds with the current counters.
func (s *ReactionService) Remove(ctx context.Context, in RemoveReactionInput) (*repository.ToggleResult, error) {
	if err := requireActor(in.UserID); err != nil {
		return nil, err
	}
	if _, ok := in.TargetType.Table(); !ok {
		return nil, models.NewValidationError("Unknown target type")
	}

	target := models.Target{Type: in.TargetType, ID: in.TargetID}
	res, err := s.reactionRepo.Remove(ctx, target, in.UserID)
	if err != nil {
		return nil, s.mapError(err, target)
	}
	if res.Transition != repository.TransitionNone {
		observability.ReactionToggles.WithLabelValues(string(in.TargetType), string(res.Transition)).Inc()
		s.emit(ctx, in.UserID, res)
	}
	return res, nil
}

// Stats returns the target counters and, when viewerID is set, the viewer's reaction.
func (s *ReactionService) Stats(ctx context.Context, target models.Target, viewerID uint) (*models.ReactionStats, error) {
	if _, ok := target.Type.Table(); !ok {
		return nil, models.NewValidationError("Unknown target type")
	}
	stats, err := s.reactionRepo.Stats(ctx, target, viewerID)
	if err != nil {
		return nil, s.mapError(err, target)
	}
	return stats, nil
}

func (s *ReactionService) ListForTarget(ctx context.Context, target models.Target, limit, offset int) ([]models.Reaction, error) {
	if _, ok := target.Type.Table(); !ok {
		return nil, models.NewValidationError("Unknown target type")
	}
	reactions, err := s.reactionRepo.ListByTarget(ctx, target, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return reactions, nil
}

func (s *ReactionService) ListByUser(
	ctx context.Context, userID uint, targetType *models.TargetType, limit, offset int,
) ([]models.Reaction, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	reactions, err := s.reactionRepo.ListByUser(ctx, userID, targetType, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return reactions, nil
}

// ReactionsOf returns the viewer's reaction per target id; ids without a
// reaction are absent.
func (s *ReactionService) ReactionsOf(
	ctx context.Context, userID uint, targetType models.TargetType, ids []uint,
) (map[uint]models.ReactionType, error) {
	types, err := s.reactionRepo.TypesByUser(ctx, userID, targetType, ids)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return types, nil
}

func (s *ReactionService) mapError(err error, target models.Target) error {
	switch {
	case errors.Is(err, repository.ErrUnknownTarget):
		return models.NewValidationError("Unknown target type")
	case errors.Is(err, repository.ErrInvalidReactionType):
		return models.NewValidationError("Reaction type must be LIKE or DISLIKE")
	default:
		return storageError(err, targetResource(target.Type), target.ID)
	}
}

func (s *ReactionService) emit(ctx context.Context, actorID uint, res *repository.ToggleResult) {
	ev := Event{
		ActorID:     actorID,
		RecipientID: res.OwnerID,
		PostID:      res.PostID,
		TargetType:  res.Target.Type,
		Reaction:    res.Current,
	}
	if res.Target.Type == models.TargetComment {
		ev.CommentID = res.Target.ID
	}
	switch res.Transition {
	case repository.TransitionAdded:
		ev.Kind = EventReactionAdded
	case repository.TransitionChanged:
		ev.Kind = EventReactionChanged
	case repository.TransitionRemoved:
		ev.Kind = EventReactionRemoved
		ev.Reaction = res.Previous
	default:
		return
	}
	s.events.Emit(ctx, ev)
}
