package service

import (
	"context"
	"strings"
	"testing"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCommentService_CreateComment_Validation(t *testing.T) {
	t.Parallel()

	svc := NewCommentService(noopCommentRepo(), noopPostRepo(), nil, nil, nil)
	ctx := context.Background()

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, CreateCommentInput{UserID: 1, PostID: 1, Content: "   "})
		assertValidationError(t, err)
	})

	t.Run("content too long", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, CreateCommentInput{
			UserID:  1,
			PostID:  1,
			Content: strings.Repeat("x", 10001),
		})
		assertValidationError(t, err)
	})

	t.Run("anonymous actor", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreateComment(ctx, CreateCommentInput{PostID: 1, Content: "hi"})
		assertUnauthorizedError(t, err)
	})

	t.Run("post not found", func(t *testing.T) {
		t.Parallel()
		svc2 := NewCommentService(noopCommentRepo(), notFoundPostRepo(), nil, nil, nil)
		_, err := svc2.CreateComment(ctx, CreateCommentInput{UserID: 1, PostID: 99, Content: "hi"})
		assertNotFoundError(t, err)
	})

	t.Run("parent not found", func(t *testing.T) {
		t.Parallel()
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(context.Context, uint) (*models.Comment, error) { return nil, gorm.ErrRecordNotFound }
		svc2 := NewCommentService(commentRepo, noopPostRepo(), nil, nil, nil)
		parent := uint(5)
		_, err := svc2.CreateComment(ctx, CreateCommentInput{UserID: 1, PostID: 1, Content: "hi", ParentID: &parent})
		assertNotFoundError(t, err)
	})

	t.Run("parent on another post", func(t *testing.T) {
		t.Parallel()
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id, PostID: 2}, nil
		}
		svc2 := NewCommentService(commentRepo, noopPostRepo(), nil, nil, nil)
		parent := uint(5)
		_, err := svc2.CreateComment(ctx, CreateCommentInput{UserID: 1, PostID: 1, Content: "hi", ParentID: &parent})
		assertValidationError(t, err)
	})
}

func TestCommentService_CreateComment_MentionAndEvents(t *testing.T) {
	t.Parallel()

	var stored *models.Comment
	commentRepo := noopCommentRepo()
	commentRepo.createFn = func(_ context.Context, c *models.Comment) error {
		c.ID = 42
		stored = c
		return nil
	}
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		if id == 42 {
			return stored, nil
		}
		return &models.Comment{ID: id, PostID: 1, UserID: 7}, nil
	}
	sink := &recordingSink{}
	svc := NewCommentService(commentRepo, noopPostRepo(), nil, nil, sink)

	comment, err := svc.CreateComment(context.Background(), CreateCommentInput{UserID: 1, PostID: 1, Content: "hello", MentionUsername: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "@bob hello", comment.Content)
	assert.Equal(t, models.CommentActive, comment.Status)

	parent := uint(3)
	_, err = svc.CreateComment(context.Background(), CreateCommentInput{UserID: 1, PostID: 1, Content: "reply", ParentID: &parent})
	require.NoError(t, err)

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventCommentCreated, events[0].Kind)
	assert.Equal(t, uint(100), events[0].RecipientID)
	assert.Equal(t, EventReplyCreated, events[1].Kind)
	assert.Equal(t, uint(7), events[1].RecipientID)
}

func TestCommentService_UpdateComment_Authorization(t *testing.T) {
	t.Parallel()

	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
		return &models.Comment{ID: id, UserID: 10, Content: "old"}, nil
	}

	t.Run("stranger is forbidden", func(t *testing.T) {
		t.Parallel()
		svc := NewCommentService(commentRepo, noopPostRepo(), nil, adminIf(99), nil)
		_, err := svc.UpdateComment(context.Background(), UpdateCommentInput{UserID: 1, CommentID: 1, Content: "new"})
		assertForbiddenError(t, err)
	})

	t.Run("moderator may edit", func(t *testing.T) {
		t.Parallel()
		svc := NewCommentService(commentRepo, noopPostRepo(), nil, adminIf(99), nil)
		_, err := svc.UpdateComment(context.Background(), UpdateCommentInput{UserID: 99, CommentID: 1, Content: "new"})
		require.NoError(t, err)
	})

	t.Run("owner with empty content", func(t *testing.T) {
		t.Parallel()
		svc := NewCommentService(commentRepo, noopPostRepo(), nil, nil, nil)
		_, err := svc.UpdateComment(context.Background(), UpdateCommentInput{UserID: 10, CommentID: 1, Content: ""})
		assertValidationError(t, err)
	})

	t.Run("missing comment", func(t *testing.T) {
		t.Parallel()
		missing := noopCommentRepo()
		missing.getByIDFn = func(context.Context, uint) (*models.Comment, error) { return nil, gorm.ErrRecordNotFound }
		svc := NewCommentService(missing, noopPostRepo(), nil, nil, nil)
		_, err := svc.UpdateComment(context.Background(), UpdateCommentInput{UserID: 10, CommentID: 1, Content: "x"})
		assertNotFoundError(t, err)
	})
}

func TestCommentService_DeleteComment(t *testing.T) {
	t.Parallel()

	t.Run("already deleted is a no-op", func(t *testing.T) {
		t.Parallel()
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id, UserID: 1, Status: models.CommentDeleted}, nil
		}
		commentRepo.updateStatusFn = func(context.Context, uint, models.CommentStatus) error {
			t.Fatal("status must not be rewritten")
			return nil
		}
		svc := NewCommentService(commentRepo, noopPostRepo(), nil, nil, nil)
		c, err := svc.DeleteComment(context.Background(), DeleteCommentInput{UserID: 1, CommentID: 4})
		require.NoError(t, err)
		assert.Equal(t, models.CommentDeleted, c.Status)
	})

	t.Run("non-owner without admin check", func(t *testing.T) {
		t.Parallel()
		commentRepo := noopCommentRepo()
		commentRepo.getByIDFn = func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id, UserID: 2}, nil
		}
		svc := NewCommentService(commentRepo, noopPostRepo(), nil, nil, nil)
		_, err := svc.DeleteComment(context.Background(), DeleteCommentInput{UserID: 1, CommentID: 4})
		assertForbiddenError(t, err)
	})
}

func TestCommentService_ListDecoratesViewer(t *testing.T) {
	t.Parallel()

	commentRepo := noopCommentRepo()
	commentRepo.listFn = func() ([]*models.Comment, error) {
		return []*models.Comment{{ID: 1}, {ID: 2}, {ID: 3}}, nil
	}
	reactionRepo := noopReactionRepo()
	reactionRepo.typesFn = func(_ context.Context, userID uint, tt models.TargetType, ids []uint) (map[uint]models.ReactionType, error) {
		assert.Equal(t, uint(8), userID)
		assert.Equal(t, models.TargetComment, tt)
		assert.Equal(t, []uint{1, 2, 3}, ids)
		return map[uint]models.ReactionType{1: models.ReactionLike, 3: models.ReactionDislike}, nil
	}
	svc := NewCommentService(commentRepo, noopPostRepo(), reactionRepo, nil, nil)

	comments, err := svc.ListComments(context.Background(), 1, 8, 20, 0)
	require.NoError(t, err)
	assert.True(t, comments[0].Liked)
	assert.False(t, comments[1].Liked || comments[1].Disliked)
	assert.True(t, comments[2].Disliked)
}

// B comments on A's post and A receives one COMMENT; A commenting on their
// own post produces nothing.
func TestCommentService_CommentNotificationScenario(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := e.user(t, "ann", false)
	b := e.user(t, "ben", false)
	post := e.post(t, a)

	created, err := e.comments.CreateComment(ctx, CreateCommentInput{UserID: b.ID, PostID: post.ID, Content: "Nice"})
	require.NoError(t, err)
	require.NotNil(t, created.User)
	assert.Equal(t, "ben", created.User.Username)

	list := e.notificationsFor(t, a.ID)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationComment, list[0].Type)
	assert.Equal(t, "New comment", list[0].Title)
	assert.Equal(t, "ben commented on your post", list[0].Content)
	require.NotNil(t, list[0].SenderID)
	assert.Equal(t, b.ID, *list[0].SenderID)
	require.NotNil(t, list[0].CommentID)
	assert.Equal(t, created.ID, *list[0].CommentID)

	_, err = e.comments.CreateComment(ctx, CreateCommentInput{UserID: a.ID, PostID: post.ID, Content: "Thanks"})
	require.NoError(t, err)
	assert.Len(t, e.notificationsFor(t, a.ID), 1)

	// A replies to B: B gets a REPLY.
	_, err = e.comments.CreateComment(ctx, CreateCommentInput{UserID: a.ID, PostID: post.ID, Content: "Reply", ParentID: &created.ID})
	require.NoError(t, err)
	replies := e.notificationsFor(t, b.ID)
	require.Len(t, replies, 1)
	assert.Equal(t, "ann replied to your comment", replies[0].Content)
}

func TestCommentService_ThreadAndSoftDelete(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := e.user(t, "amy", false)
	b := e.user(t, "bo", false)
	mod := e.user(t, "mod", true)
	post := e.post(t, a)

	root, err := e.comments.CreateComment(ctx, CreateCommentInput{UserID: a.ID, PostID: post.ID, Content: "root"})
	require.NoError(t, err)
	child, err := e.comments.CreateComment(ctx, CreateCommentInput{UserID: b.ID, PostID: post.ID, Content: "child", ParentID: &root.ID})
	require.NoError(t, err)
	_, err = e.comments.CreateComment(ctx, CreateCommentInput{UserID: a.ID, PostID: post.ID, Content: "grandchild", ParentID: &child.ID})
	require.NoError(t, err)

	_, err = e.reactions.Toggle(ctx, ToggleReactionInput{UserID: b.ID, TargetType: models.TargetComment, TargetID: root.ID, Type: "LIKE"})
	require.NoError(t, err)

	_, err = e.comments.DeleteComment(ctx, DeleteCommentInput{UserID: b.ID, CommentID: root.ID})
	assertForbiddenError(t, err)

	deleted, err := e.comments.DeleteComment(ctx, DeleteCommentInput{UserID: mod.ID, CommentID: root.ID})
	require.NoError(t, err)
	assert.Equal(t, models.CommentDeleted, deleted.Status)

	tree, err := e.comments.Thread(ctx, post.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, models.CommentDeleted, tree[0].Status)
	assert.True(t, tree[0].Liked)
	assert.Equal(t, int64(1), tree[0].LikeCount)
	require.Len(t, tree[0].Replies, 1)
	require.Len(t, tree[0].Replies[0].Replies, 1)
	assert.Equal(t, "grandchild", tree[0].Replies[0].Replies[0].Content)

	replies, err := e.comments.ListReplies(ctx, root.ID, 0)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, child.ID, replies[0].ID)

	updated, err := e.comments.UpdateComment(ctx, UpdateCommentInput{UserID: b.ID, CommentID: child.ID, Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
	assert.Equal(t, models.CommentActive, updated.Status)
}
