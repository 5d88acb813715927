package server

import (
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ReportCommentRequest is the body of a comment report.
type ReportCommentRequest struct {
	Reason      string  `json:"reason" example:"SPAM"`
	Description *string `json:"description,omitempty"`
}

// HandleReportRequest is a moderator decision.
type HandleReportRequest struct {
	Status string `json:"status" example:"RESOLVED"`
}

// ReportComment handles POST /api/comments/:id/reports
// @Summary Report a comment
// @Description Each user may report a comment once.
// @Tags moderation
// @Accept json
// @Produce json
// @Param id path int true "Comment ID"
// @Param request body ReportCommentRequest true "Report"
// @Success 201 {object} models.CommentReport
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /comments/{id}/reports [post]
func (s *Server) ReportComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req ReportCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	report, err := s.moderationService.ReportComment(c.UserContext(), service.ReportCommentInput{
		CommentID:   commentID,
		ReporterID:  actorID(c),
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// GetReports handles GET /api/admin/reports
// @Summary List comment reports
// @Tags moderation
// @Produce json
// @Param status query string false "PENDING, RESOLVED or REJECTED"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} PageResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports [get]
func (s *Server) GetReports(c *fiber.Ctx) error {
	var status *models.ReportStatus
	if raw := c.Query("status"); raw != "" {
		st, ok := models.ParseReportStatus(raw)
		if !ok {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid report status"))
		}
		status = &st
	}

	p := parsePagination(c)
	reports, err := s.moderationService.ListReports(c.UserContext(), actorID(c), status, p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, p, reports)
}

// GetReportedComments handles GET /api/admin/comments/reported
// @Summary Comments flagged by a resolved report
// @Tags moderation
// @Produce json
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} PageResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/comments/reported [get]
func (s *Server) GetReportedComments(c *fiber.Ctx) error {
	p := parsePagination(c)
	comments, err := s.moderationService.ListReportedComments(c.UserContext(), actorID(c), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, p, comments)
}

// HandleReport handles PUT /api/admin/reports/:id
// @Summary Resolve or reject a report
// @Description RESOLVED flags the comment REPORTED unless it was deleted.
// @Tags moderation
// @Accept json
// @Produce json
// @Param id path int true "Report ID"
// @Param request body HandleReportRequest true "Decision"
// @Success 200 {object} models.CommentReport
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports/{id} [put]
func (s *Server) HandleReport(c *fiber.Ctx) error {
	reportID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req HandleReportRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	report, err := s.moderationService.HandleReport(c.UserContext(), service.HandleReportInput{
		ReportID:    reportID,
		ModeratorID: actorID(c),
		Status:      req.Status,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}
