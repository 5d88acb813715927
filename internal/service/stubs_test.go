package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/models"
	"quill/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// assertAppError asserts that err is an AppError carrying code.
func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeUnauthorized)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeForbidden)
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeNotFound)
}

// recordingSink captures emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// recordingQueue captures enqueued pushes; full makes every enqueue fail.
type recordingQueue struct {
	mu     sync.Mutex
	full   bool
	pushes map[uint][][]byte
}

func (q *recordingQueue) Enqueue(recipientID uint, payload []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	if q.pushes == nil {
		q.pushes = map[uint][][]byte{}
	}
	q.pushes[recipientID] = append(q.pushes[recipientID], payload)
	return true
}

func (q *recordingQueue) count(recipientID uint) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pushes[recipientID])
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn        func(context.Context, *models.Comment) error
	getByIDFn       func(context.Context, uint) (*models.Comment, error)
	updateContentFn func(context.Context, uint, string) error
	updateStatusFn  func(context.Context, uint, models.CommentStatus) error
	listFn          func() ([]*models.Comment, error)
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListTopLevel(context.Context, uint, int, int) ([]*models.Comment, error) {
	return s.listFn()
}
func (s *commentRepoStub) ListReplies(context.Context, uint) ([]*models.Comment, error) {
	return s.listFn()
}
func (s *commentRepoStub) ListByPost(context.Context, uint) ([]*models.Comment, error) {
	return s.listFn()
}
func (s *commentRepoStub) ListByUser(context.Context, uint, int, int) ([]*models.Comment, error) {
	return s.listFn()
}
func (s *commentRepoStub) ListByStatus(context.Context, models.CommentStatus, int, int) ([]*models.Comment, error) {
	return s.listFn()
}
func (s *commentRepoStub) UpdateContent(ctx context.Context, id uint, content string) error {
	return s.updateContentFn(ctx, id, content)
}
func (s *commentRepoStub) UpdateStatus(ctx context.Context, id uint, status models.CommentStatus) error {
	return s.updateStatusFn(ctx, id, status)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:        func(_ context.Context, _ *models.Comment) error { return nil },
		getByIDFn:       func(_ context.Context, id uint) (*models.Comment, error) { return &models.Comment{ID: id, PostID: 1}, nil },
		updateContentFn: func(_ context.Context, _ uint, _ string) error { return nil },
		updateStatusFn:  func(_ context.Context, _ uint, _ models.CommentStatus) error { return nil },
		listFn:          func() ([]*models.Comment, error) { return nil, nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	getByIDFn func(context.Context, uint) (*models.Post, error)
}

func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Create(context.Context, *models.Post) error { return nil }

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id, UserID: 100}, nil },
	}
}

func notFoundPostRepo() *postRepoStub {
	return &postRepoStub{
		getByIDFn: func(context.Context, uint) (*models.Post, error) { return nil, gorm.ErrRecordNotFound },
	}
}

// reactionRepoStub is a stub for repository.ReactionRepository.
type reactionRepoStub struct {
	toggleFn func(context.Context, models.Target, uint, models.ReactionType) (*repository.ToggleResult, error)
	removeFn func(context.Context, models.Target, uint) (*repository.ToggleResult, error)
	typesFn  func(context.Context, uint, models.TargetType, []uint) (map[uint]models.ReactionType, error)
}

func (s *reactionRepoStub) Toggle(ctx context.Context, target models.Target, userID uint, r models.ReactionType) (*repository.ToggleResult, error) {
	return s.toggleFn(ctx, target, userID, r)
}
func (s *reactionRepoStub) Remove(ctx context.Context, target models.Target, userID uint) (*repository.ToggleResult, error) {
	return s.removeFn(ctx, target, userID)
}
func (s *reactionRepoStub) Stats(_ context.Context, target models.Target, _ uint) (*models.ReactionStats, error) {
	return &models.ReactionStats{TargetType: target.Type, TargetID: target.ID}, nil
}
func (s *reactionRepoStub) ListByTarget(context.Context, models.Target, int, int) ([]models.Reaction, error) {
	return nil, nil
}
func (s *reactionRepoStub) ListByUser(context.Context, uint, *models.TargetType, int, int) ([]models.Reaction, error) {
	return nil, nil
}
func (s *reactionRepoStub) TypesByUser(ctx context.Context, userID uint, tt models.TargetType, ids []uint) (map[uint]models.ReactionType, error) {
	return s.typesFn(ctx, userID, tt, ids)
}

func noopReactionRepo() *reactionRepoStub {
	return &reactionRepoStub{
		toggleFn: func(_ context.Context, target models.Target, _ uint, r models.ReactionType) (*repository.ToggleResult, error) {
			return &repository.ToggleResult{Target: target, Current: r, Transition: repository.TransitionAdded}, nil
		},
		removeFn: func(_ context.Context, target models.Target, _ uint) (*repository.ToggleResult, error) {
			return &repository.ToggleResult{Target: target, Transition: repository.TransitionNone}, nil
		},
		typesFn: func(context.Context, uint, models.TargetType, []uint) (map[uint]models.ReactionType, error) {
			return map[uint]models.ReactionType{}, nil
		},
	}
}

func adminIf(ids ...uint) func(context.Context, uint) (bool, error) {
	return func(_ context.Context, userID uint) (bool, error) {
		for _, id := range ids {
			if id == userID {
				return true, nil
			}
		}
		return false, nil
	}
}

// engine wires the real repositories over an in-memory database.
type engine struct {
	db            *gorm.DB
	users         repository.UserRepository
	posts         repository.PostRepository
	notifications *NotificationService
	reactions     *ReactionService
	comments      *CommentService
	moderation    *ModerationService
	queue         *recordingQueue
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	db, err := database.Connect(&config.Config{Env: "test", DBDriver: "sqlite", SQLitePath: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	users := repository.NewUserRepository(db)
	posts := repository.NewPostRepository(db)
	comments := repository.NewCommentRepository(db)
	reactions := repository.NewReactionRepository(db)
	queue := &recordingQueue{}

	notifications := NewNotificationService(repository.NewNotificationRepository(db), users, posts, nil, queue, time.Minute)
	return &engine{
		db:            db,
		users:         users,
		posts:         posts,
		notifications: notifications,
		reactions:     NewReactionService(reactions, notifications),
		comments:      NewCommentService(comments, posts, reactions, users.IsAdmin, notifications),
		moderation:    NewModerationService(repository.NewReportRepository(db), comments, users.IsAdmin),
		queue:         queue,
	}
}

func (e *engine) user(t *testing.T, name string, admin bool) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", IsAdmin: admin}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *engine) post(t *testing.T, author *models.User) *models.Post {
	t.Helper()
	p := &models.Post{UserID: author.ID, Title: "A post", Content: "Body"}
	require.NoError(t, e.posts.Create(context.Background(), p))
	return p
}

func (e *engine) notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	list, err := e.notifications.List(context.Background(), userID, 100, 0)
	require.NoError(t, err)
	return list
}
