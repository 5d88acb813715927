package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"quill/internal/models"
	"quill/internal/repository"
)

const maxCommentLen = 10000

type CommentService struct {
	commentRepo  repository.CommentRepository
	postRepo     repository.PostRepository
	reactionRepo repository.ReactionRepository
	isAdmin      func(ctx context.Context, userID uint) (bool, error)
	events       EventSink
}

type CreateCommentInput struct {
	UserID          uint
	PostID          uint
	Content         string
	ParentID        *uint
	MentionUsername string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Content   string
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	reactionRepo repository.ReactionRepository,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
	events EventSink,
) *CommentService {
	return &CommentService{
		commentRepo:  commentRepo,
		postRepo:     postRepo,
		reactionRepo: reactionRepo,
		isAdmin:      isAdmin,
		events:       sinkOrDiscard(events),
	}
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return models.NewValidationError("Comment too long (max 10000 characters)")
	}
	return nil
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if err := requireActor(in.UserID); err != nil {
		return nil, err
	}
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, storageError(err, "Post", in.PostID)
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent, err = s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, storageError(err, "Comment", *in.ParentID)
		}
		if parent.PostID != post.ID {
			return nil, models.NewValidationError("Parent comment belongs to a different post")
		}
	}

	content := in.Content
	if mention := strings.TrimSpace(in.MentionUsername); mention != "" {
		content = "@" + mention + " " + content
	}

	comment := &models.Comment{
		Content:  content,
		UserID:   in.UserID,
		PostID:   post.ID,
		ParentID: in.ParentID,
		Status:   models.CommentActive,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, models.NewInternalError(err)
	}

	ev := Event{Kind: EventCommentCreated, ActorID: in.UserID, RecipientID: post.UserID, PostID: post.ID, CommentID: comment.ID}
	if parent != nil {
		ev.Kind = EventReplyCreated
		ev.RecipientID = parent.UserID
	}
	s.events.Emit(ctx, ev)

	created, err := s.commentRepo.GetByID(ctx, comment.ID)
	if err != nil {
		return comment, nil
	}
	return created, nil
}

// ListComments returns a page of the post's top-level comments, newest first.
func (s *CommentService) ListComments(ctx context.Context, postID, viewerID uint, limit, offset int) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, storageError(err, "Post", postID)
	}
	comments, err := s.commentRepo.ListTopLevel(ctx, postID, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.decorate(ctx, viewerID, comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// ListReplies returns the direct replies of a comment, oldest first.
func (s *CommentService) ListReplies(ctx context.Context, commentID, viewerID uint) ([]*models.Comment, error) {
	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return nil, storageError(err, "Comment", commentID)
	}
	replies, err := s.commentRepo.ListReplies(ctx, commentID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.decorate(ctx, viewerID, replies); err != nil {
		return nil, err
	}
	return replies, nil
}

// Thread returns every comment of the post assembled into reply trees.
func (s *CommentService) Thread(ctx context.Context, postID, viewerID uint) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, storageError(err, "Post", postID)
	}
	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.decorate(ctx, viewerID, comments); err != nil {
		return nil, err
	}
	return BuildThread(comments), nil
}

func (s *CommentService) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Comment, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.decorate(ctx, userID, comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.authorize(ctx, in.UserID, in.CommentID, "You can only update your own comments")
	if err != nil {
		return nil, err
	}
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}

	if err := s.commentRepo.UpdateContent(ctx, comment.ID, in.Content); err != nil {
		return nil, storageError(err, "Comment", comment.ID)
	}

	updated, err := s.commentRepo.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, storageError(err, "Comment", comment.ID)
	}
	return updated, nil
}

// DeleteComment soft-deletes the comment. Replies and reactions stay.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (*models.Comment, error) {
	comment, err := s.authorize(ctx, in.UserID, in.CommentID, "You can only delete your own comments")
	if err != nil {
		return nil, err
	}
	if comment.Status == models.CommentDeleted {
		return comment, nil
	}

	if err := s.commentRepo.UpdateStatus(ctx, comment.ID, models.CommentDeleted); err != nil {
		return nil, storageError(err, "Comment", comment.ID)
	}
	comment.Status = models.CommentDeleted
	return comment, nil
}

// authorize loads the comment and requires the actor to be its author or a moderator.
func (s *CommentService) authorize(ctx context.Context, userID, commentID uint, denied string) (*models.Comment, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, storageError(err, "Comment", commentID)
	}
	if comment.UserID == userID {
		return comment, nil
	}

	if s.isAdmin == nil {
		return nil, models.NewForbiddenError(denied)
	}
	admin, err := s.isAdmin(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !admin {
		return nil, models.NewForbiddenError(denied)
	}
	return comment, nil
}

// decorate fills the viewer's is_liked/is_disliked flags.
func (s *CommentService) decorate(ctx context.Context, viewerID uint, comments []*models.Comment) error {
	if viewerID == 0 || len(comments) == 0 || s.reactionRepo == nil {
		return nil
	}
	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	types, err := s.reactionRepo.TypesByUser(ctx, viewerID, models.TargetComment, ids)
	if err != nil {
		return models.NewInternalError(err)
	}
	for _, c := range comments {
		c.Liked = types[c.ID] == models.ReactionLike
		c.Disliked = types[c.ID] == models.ReactionDislike
	}
	return nil
}
