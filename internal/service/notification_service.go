package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quill/internal/cache"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultRetentionDays is used by callers that have no configured retention.
const DefaultRetentionDays = 30

// PushEnqueuer accepts a push without waiting for delivery. It reports false
// when the push was dropped.
type PushEnqueuer interface {
	Enqueue(recipientID uint, payload []byte) bool
}

// NotificationService persists notifications, hands them to the push queue
// and manages the recipient's read state. It is the EventSink of the other
// services.
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	postRepo         repository.PostRepository
	rdb              *redis.Client
	push             PushEnqueuer
	unreadTTL        time.Duration
	now              func() time.Time
}

type CreateNotificationInput struct {
	Type        models.NotificationType
	Title       string
	Content     string
	RecipientID uint
	SenderID    *uint
	PostID      *uint
	CommentID   *uint
}

type SystemNotificationInput struct {
	RecipientID uint
	Title       string
	Content     string
}

func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	rdb *redis.Client,
	push PushEnqueuer,
	unreadTTL time.Duration,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		postRepo:         postRepo,
		rdb:              rdb,
		push:             push,
		unreadTTL:        unreadTTL,
		now:              time.Now,
	}
}

// Create stores an UNREAD notification and enqueues its push. It returns
// (nil, nil) when the sender is the recipient. Push failures never surface.
func (s *NotificationService) Create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error) {
	if in.RecipientID == 0 {
		return nil, models.NewValidationError("Recipient is required")
	}
	if _, ok := models.ParseNotificationType(string(in.Type)); !ok {
		return nil, models.NewValidationError("Unknown notification type")
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("Title and content are required")
	}
	if in.SenderID != nil && *in.SenderID == in.RecipientID {
		observability.NotificationsSuppressed.WithLabelValues(string(in.Type)).Inc()
		return nil, nil
	}

	n := &models.Notification{
		Type:        in.Type,
		Title:       in.Title,
		Content:     in.Content,
		RecipientID: in.RecipientID,
		SenderID:    in.SenderID,
		PostID:      in.PostID,
		CommentID:   in.CommentID,
		Status:      models.NotificationUnread,
	}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		observability.NotificationPersistFailures.WithLabelValues(string(in.Type)).Inc()
		return nil, models.NewInternalError(err)
	}
	observability.NotificationsCreated.WithLabelValues(string(in.Type)).Inc()

	s.invalidateUnread(ctx, n.RecipientID)
	s.enqueue(ctx, n)
	return n, nil
}

func (s *NotificationService) enqueue(ctx context.Context, n *models.Notification) {
	if s.push == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal notification push",
			slog.Uint64("notification_id", uint64(n.ID)), slog.String("error", err.Error()))
		return
	}
	if !s.push.Enqueue(n.RecipientID, payload) {
		middleware.Logger.WarnContext(ctx, "notification push dropped",
			slog.Uint64("notification_id", uint64(n.ID)),
			slog.Uint64("recipient_id", uint64(n.RecipientID)),
		)
	}
}

// Emit turns a committed domain event into a notification. Failures are
// logged; the triggering mutation has already succeeded.
func (s *NotificationService) Emit(ctx context.Context, ev Event) {
	in, ok := s.fromEvent(ctx, ev)
	if !ok {
		return
	}
	if _, err := s.Create(ctx, in); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to persist notification",
			slog.String("event", string(ev.Kind)),
			slog.Uint64("recipient_id", uint64(ev.RecipientID)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *NotificationService) fromEvent(ctx context.Context, ev Event) (CreateNotificationInput, bool) {
	if ev.RecipientID == 0 {
		return CreateNotificationInput{}, false
	}
	in := CreateNotificationInput{RecipientID: ev.RecipientID}
	if ev.ActorID != 0 {
		in.SenderID = uintPtr(ev.ActorID)
	}
	if ev.PostID != 0 {
		in.PostID = uintPtr(ev.PostID)
	}
	if ev.CommentID != 0 {
		in.CommentID = uintPtr(ev.CommentID)
	}

	switch ev.Kind {
	case EventCommentCreated:
		in.Type, in.Title = models.NotificationComment, "New comment"
	case EventReplyCreated:
		in.Type, in.Title = models.NotificationReply, "New reply"
	case EventReactionAdded, EventReactionChanged:
		switch {
		case ev.TargetType == models.TargetComment && ev.Kind == EventReactionAdded:
			in.Type, in.Title = models.NotificationLike, reactionTitle("New", ev.Reaction)
		case ev.TargetType == models.TargetPost && ev.Reaction == models.ReactionLike:
			// Post authors hear about likes only.
			in.Type, in.Title = models.NotificationPostLike, "New post like"
		default:
			return in, false
		}
	case EventPostUpdated:
		in.SenderID = nil
		in.Type, in.Title, in.Content = models.NotificationPostUpdate, "Post updated", "Your post was updated"
		return in, true
	default:
		return in, false
	}

	if ev.ActorID == ev.RecipientID {
		observability.NotificationsSuppressed.WithLabelValues(string(in.Type)).Inc()
		return in, false
	}

	actor := s.displayName(ctx, ev.ActorID)
	switch in.Type {
	case models.NotificationComment:
		in.Content = actor + " commented on your post"
	case models.NotificationReply:
		in.Content = actor + " replied to your comment"
	case models.NotificationLike:
		in.Content = fmt.Sprintf("%s %s your comment", actor, reactionVerb(ev.Reaction))
	case models.NotificationPostLike:
		in.Content = fmt.Sprintf("%s %s your post", actor, reactionVerb(ev.Reaction))
	}
	return in, true
}

func reactionTitle(prefix string, r models.ReactionType) string {
	if r == models.ReactionDislike {
		return prefix + " dislike"
	}
	return prefix + " like"
}

func reactionVerb(r models.ReactionType) string {
	if r == models.ReactionDislike {
		return "disliked"
	}
	return "liked"
}

func (s *NotificationService) displayName(ctx context.Context, userID uint) string {
	if s.userRepo != nil {
		if user, err := s.userRepo.GetByID(ctx, userID); err == nil && user.Username != "" {
			return user.Username
		}
	}
	return "Someone"
}

// NotifyPostUpdated tells the post author their post changed. It is the hook
// for the post CRUD that lives outside the engine.
func (s *NotificationService) NotifyPostUpdated(ctx context.Context, postID uint) (*models.Notification, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, storageError(err, "Post", postID)
	}
	in, _ := s.fromEvent(ctx, Event{Kind: EventPostUpdated, RecipientID: post.UserID, PostID: post.ID})
	return s.Create(ctx, in)
}

// SendSystem delivers an administrative notice to one user.
func (s *NotificationService) SendSystem(ctx context.Context, in SystemNotificationInput) (*models.Notification, error) {
	if in.RecipientID == 0 {
		return nil, models.NewValidationError("Recipient is required")
	}
	if _, err := s.userRepo.GetByID(ctx, in.RecipientID); err != nil {
		return nil, storageError(err, "User", in.RecipientID)
	}
	return s.Create(ctx, CreateNotificationInput{
		Type:        models.NotificationSystem,
		Title:       in.Title,
		Content:     in.Content,
		RecipientID: in.RecipientID,
	})
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	return s.ListFiltered(ctx, userID, models.NotificationFilter{}, limit, offset)
}

// ListFiltered returns the recipient's notifications matching every set filter field.
func (s *NotificationService) ListFiltered(
	ctx context.Context, userID uint, filter models.NotificationFilter, limit, offset int,
) ([]models.Notification, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, models.NewValidationError("from must not be after to")
	}
	out, err := s.notificationRepo.List(ctx, userID, filter, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (s *NotificationService) ListUnread(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	out, err := s.notificationRepo.ListUnread(ctx, userID, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

// UnreadCount reads through the Redis cache; any change to the recipient's
// rows invalidates it.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	if err := requireActor(userID); err != nil {
		return 0, err
	}
	var count int64
	err := cache.CacheAside(ctx, s.rdb, cache.UnreadCountKey(userID), &count, s.unreadTTL, func() error {
		var err error
		count, err = s.notificationRepo.CountUnread(ctx, userID)
		return err
	})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// MarkAsRead marks one of the actor's notifications read. Ids the actor does
// not own are ignored.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uint) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	if _, err := s.notificationRepo.MarkAsRead(ctx, id, userID, s.now()); err != nil {
		return models.NewInternalError(err)
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	if err := requireActor(userID); err != nil {
		return 0, err
	}
	n, err := s.notificationRepo.MarkAllAsRead(ctx, userID, s.now())
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	s.invalidateUnread(ctx, userID)
	return n, nil
}

// Delete removes one of the actor's notifications. Ids the actor does not
// own are ignored.
func (s *NotificationService) Delete(ctx context.Context, id, userID uint) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	if _, err := s.notificationRepo.Delete(ctx, id, userID); err != nil {
		return models.NewInternalError(err)
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

func (s *NotificationService) DeleteRead(ctx context.Context, userID uint) (int64, error) {
	if err := requireActor(userID); err != nil {
		return 0, err
	}
	n, err := s.notificationRepo.DeleteRead(ctx, userID)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// CleanupOld deletes every notification older than retentionDays regardless
// of read state.
func (s *NotificationService) CleanupOld(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, models.NewValidationError("retentionDays must be positive")
	}
	span, ctx := observability.NewSpan(ctx, "NotificationService.CleanupOld",
		attribute.Int("retention.days", retentionDays))
	defer span.End()

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	n, err := s.notificationRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		span.SetError(err)
		return 0, models.NewInternalError(err)
	}
	span.AddAttributes(attribute.Int64("notifications.deleted", n))
	observability.NotificationsCleanedUp.Add(float64(n))
	middleware.Logger.InfoContext(ctx, "old notifications cleaned up",
		slog.Int("retention_days", retentionDays),
		slog.Int64("deleted", n),
	)
	return n, nil
}

func (s *NotificationService) invalidateUnread(ctx context.Context, userID uint) {
	cache.Invalidate(ctx, s.rdb, cache.UnreadCountKey(userID))
}

func uintPtr(v uint) *uint {
	return &v
}
