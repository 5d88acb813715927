package service

import (
	"context"
	"errors"
	"testing"

	"quill/internal/models"
	"quill/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestReactionService_Toggle_Validation(t *testing.T) {
	t.Parallel()

	svc := NewReactionService(noopReactionRepo(), nil)
	ctx := context.Background()

	t.Run("missing actor", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Toggle(ctx, ToggleReactionInput{TargetType: models.TargetPost, TargetID: 1, Type: "LIKE"})
		assertUnauthorizedError(t, err)
	})

	t.Run("unknown reaction type", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Toggle(ctx, ToggleReactionInput{UserID: 1, TargetType: models.TargetPost, TargetID: 1, Type: "LOVE"})
		assertValidationError(t, err)
	})

	t.Run("unknown target type", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Toggle(ctx, ToggleReactionInput{UserID: 1, TargetType: "video", TargetID: 1, Type: "LIKE"})
		assertValidationError(t, err)
	})

	t.Run("lowercase type is accepted", func(t *testing.T) {
		t.Parallel()
		res, err := svc.Toggle(ctx, ToggleReactionInput{UserID: 1, TargetType: models.TargetPost, TargetID: 1, Type: "dislike"})
		require.NoError(t, err)
		assert.Equal(t, models.ReactionDislike, res.Current)
	})
}

func TestReactionService_Toggle_MapsRepositoryErrors(t *testing.T) {
	t.Parallel()

	repo := noopReactionRepo()
	repo.toggleFn = func(context.Context, models.Target, uint, models.ReactionType) (*repository.ToggleResult, error) {
		return nil, gorm.ErrRecordNotFound
	}
	svc := NewReactionService(repo, nil)
	_, err := svc.Toggle(context.Background(), ToggleReactionInput{UserID: 1, TargetType: models.TargetComment, TargetID: 9, Type: "LIKE"})
	assertNotFoundError(t, err)

	repo.toggleFn = func(context.Context, models.Target, uint, models.ReactionType) (*repository.ToggleResult, error) {
		return nil, errors.New("connection reset")
	}
	_, err = svc.Toggle(context.Background(), ToggleReactionInput{UserID: 1, TargetType: models.TargetPost, TargetID: 9, Type: "LIKE"})
	assertAppError(t, err, models.CodeInternal)
}

func TestReactionService_Toggle_EmitsByTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		transition repository.Transition
		want       EventKind
		reaction   models.ReactionType
	}{
		{"added", repository.TransitionAdded, EventReactionAdded, models.ReactionLike},
		{"changed", repository.TransitionChanged, EventReactionChanged, models.ReactionLike},
		{"removed", repository.TransitionRemoved, EventReactionRemoved, models.ReactionLike},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := noopReactionRepo()
			repo.toggleFn = func(_ context.Context, target models.Target, _ uint, r models.ReactionType) (*repository.ToggleResult, error) {
				res := &repository.ToggleResult{Target: target, OwnerID: 5, PostID: 3, Transition: tc.transition, Current: r}
				if tc.transition == repository.TransitionRemoved {
					res.Previous, res.Current = r, models.ReactionNone
				}
				return res, nil
			}
			sink := &recordingSink{}
			svc := NewReactionService(repo, sink)

			_, err := svc.Toggle(context.Background(), ToggleReactionInput{UserID: 2, TargetType: models.TargetComment, TargetID: 8, Type: "like"})
			require.NoError(t, err)

			events := sink.Events()
			require.Len(t, events, 1)
			assert.Equal(t, tc.want, events[0].Kind)
			assert.Equal(t, uint(5), events[0].RecipientID)
			assert.Equal(t, uint(2), events[0].ActorID)
			assert.Equal(t, uint(8), events[0].CommentID)
			assert.Equal(t, uint(3), events[0].PostID)
			assert.Equal(t, tc.reaction, events[0].Reaction)
		})
	}
}

func TestReactionService_RemoveWithoutReactionEmitsNothing(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	svc := NewReactionService(noopReactionRepo(), sink)
	res, err := svc.Remove(context.Background(), RemoveReactionInput{UserID: 1, TargetType: models.TargetPost, TargetID: 1})
	require.NoError(t, err)
	assert.Equal(t, repository.TransitionNone, res.Transition)
	assert.Empty(t, sink.Events())
}

// Like, like again, then dislike: the counters end at (0, 1) and the post
// author receives exactly one POST_LIKE notification.
func TestReactionService_LikeLikeDislikeScenario(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	author := e.user(t, "alice", false)
	reader := e.user(t, "bob", false)
	post := e.post(t, author)
	in := ToggleReactionInput{UserID: reader.ID, TargetType: models.TargetPost, TargetID: post.ID, Type: "LIKE"}

	res, err := e.reactions.Toggle(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.LikeCount)
	assert.Equal(t, models.ReactionLike, res.Current)

	res, err = e.reactions.Toggle(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.LikeCount)
	assert.Equal(t, models.ReactionNone, res.Current)

	in.Type = "DISLIKE"
	res, err = e.reactions.Toggle(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.LikeCount)
	assert.Equal(t, int64(1), res.DislikeCount)
	assert.Equal(t, models.ReactionDislike, res.Current)

	// Only the like reaches the author; the later dislike is silent.
	list := e.notificationsFor(t, author.ID)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationPostLike, list[0].Type)
	assert.Equal(t, "New post like", list[0].Title)
	assert.Equal(t, "bob liked your post", list[0].Content)
	assert.Equal(t, 1, e.queue.count(author.ID))
}

func TestReactionService_PostDislikeIsNotNotified(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	author := e.user(t, "gus", false)
	reader := e.user(t, "hal", false)
	post := e.post(t, author)

	res, err := e.reactions.Toggle(ctx, ToggleReactionInput{UserID: reader.ID, TargetType: models.TargetPost, TargetID: post.ID, Type: "DISLIKE"})
	require.NoError(t, err)
	assert.Equal(t, repository.TransitionAdded, res.Transition)
	assert.Equal(t, int64(1), res.DislikeCount)

	assert.Empty(t, e.notificationsFor(t, author.ID))
	assert.Zero(t, e.queue.count(author.ID))
}

func TestReactionService_SelfReactionIsNotNotified(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	author := e.user(t, "carol", false)
	post := e.post(t, author)

	_, err := e.reactions.Toggle(ctx, ToggleReactionInput{UserID: author.ID, TargetType: models.TargetPost, TargetID: post.ID, Type: "LIKE"})
	require.NoError(t, err)
	assert.Empty(t, e.notificationsFor(t, author.ID))
	assert.Zero(t, e.queue.count(author.ID))
}

func TestReactionService_SwitchToLikeNotifiesPostAuthor(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	author := e.user(t, "dana", false)
	reader := e.user(t, "erin", false)
	post := e.post(t, author)
	in := ToggleReactionInput{UserID: reader.ID, TargetType: models.TargetPost, TargetID: post.ID, Type: "DISLIKE"}

	_, err := e.reactions.Toggle(ctx, in)
	require.NoError(t, err)
	in.Type = "LIKE"
	res, err := e.reactions.Toggle(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, repository.TransitionChanged, res.Transition)
	assert.Equal(t, int64(1), res.LikeCount)
	assert.Equal(t, int64(0), res.DislikeCount)

	// The initial dislike and switching back to dislike are not notified.
	in.Type = "DISLIKE"
	_, err = e.reactions.Toggle(ctx, in)
	require.NoError(t, err)

	list := e.notificationsFor(t, author.ID)
	require.Len(t, list, 1)
	assert.Equal(t, "New post like", list[0].Title)
}
