package server

import (
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateCommentRequest is the body of a new comment or reply.
type CreateCommentRequest struct {
	Content         string `json:"content"`
	ParentID        *uint  `json:"parentId,omitempty"`
	MentionUsername string `json:"mentionUsername,omitempty"`
}

// UpdateCommentRequest is the body of a comment edit.
type UpdateCommentRequest struct {
	Content string `json:"content"`
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Description A parentId makes the comment a reply; mentionUsername prefixes "@name ".
// @Tags comments
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body CreateCommentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	created, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:          actorID(c),
		PostID:          postID,
		Content:         req.Content,
		ParentID:        req.ParentID,
		MentionUsername: req.MentionUsername,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetComments handles GET /api/posts/:id/comments
// @Summary Top-level comments of a post
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} PageResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	p := parsePagination(c)
	comments, err := s.commentService.ListComments(c.UserContext(), postID, s.optionalUserID(c), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, p, comments)
}

// GetCommentThread handles GET /api/posts/:id/comments/tree
// @Summary Full comment thread of a post
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/tree [get]
func (s *Server) GetCommentThread(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	roots, err := s.commentService.Thread(c.UserContext(), postID, s.optionalUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(roots)
}

// GetReplies handles GET /api/comments/:id/replies
// @Summary Direct replies of a comment
// @Tags comments
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id}/replies [get]
func (s *Server) GetReplies(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	replies, err := s.commentService.ListReplies(c.UserContext(), commentID, s.optionalUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(replies)
}

// GetMyComments handles GET /api/comments/me
// @Summary The caller's comments
// @Tags comments
// @Produce json
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} PageResponse
// @Security BearerAuth
// @Router /comments/me [get]
func (s *Server) GetMyComments(c *fiber.Ctx) error {
	p := parsePagination(c)
	comments, err := s.commentService.ListByUser(c.UserContext(), actorID(c), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, p, comments)
}

// UpdateComment handles PUT /api/comments/:id
// @Summary Edit a comment
// @Description Only the author or a moderator may edit.
// @Tags comments
// @Accept json
// @Produce json
// @Param id path int true "Comment ID"
// @Param request body UpdateCommentRequest true "New content"
// @Success 200 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /comments/{id} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req UpdateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	updated, err := s.commentService.UpdateComment(c.UserContext(), service.UpdateCommentInput{
		UserID:    actorID(c),
		CommentID: commentID,
		Content:   req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// DeleteComment handles DELETE /api/comments/:id
// @Summary Soft-delete a comment
// @Description The row stays so replies keep their parent.
// @Tags comments
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {object} models.Comment
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	deleted, err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		UserID:    actorID(c),
		CommentID: commentID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(deleted)
}
