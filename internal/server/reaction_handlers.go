package server

import (
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ReactionRequest is the body of a toggle.
type ReactionRequest struct {
	Type string `json:"type" example:"LIKE"`
}

// ReactionResponse is the committed state after a toggle or removal.
type ReactionResponse struct {
	TargetType   models.TargetType   `json:"target_type"`
	TargetID     uint                `json:"target_id"`
	Reaction     models.ReactionType `json:"reaction"`
	Transition   string              `json:"transition"`
	LikeCount    int64               `json:"like_count"`
	DislikeCount int64               `json:"dislike_count"`
	UserLiked    bool                `json:"user_liked"`
	UserDisliked bool                `json:"user_disliked"`
}

func toReactionResponse(res *repository.ToggleResult) ReactionResponse {
	return ReactionResponse{
		TargetType:   res.Target.Type,
		TargetID:     res.Target.ID,
		Reaction:     res.Current,
		Transition:   string(res.Transition),
		LikeCount:    res.LikeCount,
		DislikeCount: res.DislikeCount,
		UserLiked:    res.Current == models.ReactionLike,
		UserDisliked: res.Current == models.ReactionDislike,
	}
}

// TogglePostReaction handles POST /api/posts/:id/reactions
// @Summary Toggle a post reaction
// @Description Same type removes the reaction, a different type switches it.
// @Tags reactions
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body ReactionRequest true "Reaction type"
// @Success 200 {object} ReactionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/reactions [post]
func (s *Server) TogglePostReaction(c *fiber.Ctx) error {
	return s.toggleReaction(c, models.TargetPost)
}

// ToggleCommentReaction handles POST /api/comments/:id/reactions
// @Summary Toggle a comment reaction
// @Tags reactions
// @Accept json
// @Produce json
// @Param id path int true "Comment ID"
// @Param request body ReactionRequest true "Reaction type"
// @Success 200 {object} ReactionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /comments/{id}/reactions [post]
func (s *Server) ToggleCommentReaction(c *fiber.Ctx) error {
	return s.toggleReaction(c, models.TargetComment)
}

func (s *Server) toggleReaction(c *fiber.Ctx, targetType models.TargetType) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req ReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	res, err := s.reactionService.Toggle(c.UserContext(), service.ToggleReactionInput{
		UserID:     actorID(c),
		TargetType: targetType,
		TargetID:   targetID,
		Type:       req.Type,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toReactionResponse(res))
}

// RemovePostReaction handles DELETE /api/posts/:id/reactions
// @Summary Remove own post reaction
// @Tags reactions
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} ReactionResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/reactions [delete]
func (s *Server) RemovePostReaction(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.reactionService.Remove(c.UserContext(), service.RemoveReactionInput{
		UserID:     actorID(c),
		TargetType: models.TargetPost,
		TargetID:   postID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toReactionResponse(res))
}

// GetPostReactionStats handles GET /api/posts/:id/reactions/stats
// @Summary Post reaction counters
// @Tags reactions
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.ReactionStats
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/reactions/stats [get]
func (s *Server) GetPostReactionStats(c *fiber.Ctx) error {
	return s.reactionStats(c, models.TargetPost)
}

// GetCommentReactionStats handles GET /api/comments/:id/reactions/stats
// @Summary Comment reaction counters
// @Tags reactions
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {object} models.ReactionStats
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id}/reactions/stats [get]
func (s *Server) GetCommentReactionStats(c *fiber.Ctx) error {
	return s.reactionStats(c, models.TargetComment)
}

func (s *Server) reactionStats(c *fiber.Ctx, targetType models.TargetType) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	stats, err := s.reactionService.Stats(c.UserContext(),
		models.Target{Type: targetType, ID: targetID}, s.optionalUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// ListPostReactions handles GET /api/posts/:id/reactions
// @Summary List reactions on a post
// @Tags reactions
// @Produce json
// @Param id path int true "Post ID"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} PageResponse
// @Router /posts/{id}/reactions [get]
func (s *Server) ListPostReactions(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	p := parsePagination(c)
	reactions, err := s.reactionService.ListForTarget(c.UserContext(),
		models.Target{Type: models.TargetPost, ID: postID}, p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, p, reactions)
}

// GetMyReactions handles GET /api/reactions/me
// @Summary List the caller's reactions
// @Tags reactions
// @Produce json
// @Param targetType query string false "post or comment"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} PageResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /reactions/me [get]
func (s *Server) GetMyReactions(c *fiber.Ctx) error {
	var targetType *models.TargetType
	if raw := c.Query("targetType"); raw != "" {
		t, ok := models.ParseTargetType(raw)
		if !ok {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("targetType must be post or comment"))
		}
		targetType = &t
	}

	p := parsePagination(c)
	reactions, err := s.reactionService.ListByUser(c.UserContext(), actorID(c), targetType, p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, p, reactions)
}
