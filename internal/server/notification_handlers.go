package server

import (
	"time"

	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SystemNotificationRequest is an administrative notice.
type SystemNotificationRequest struct {
	RecipientID uint   `json:"recipientId"`
	Title       string `json:"title"`
	Content     string `json:"content"`
}

// CountResponse carries the number of affected or matching rows.
type CountResponse struct {
	Count int64 `json:"count"`
}

// GetNotifications handles GET /api/notifications
// @Summary The caller's notifications, newest first
// @Tags notifications
// @Produce json
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} PageResponse
// @Security BearerAuth
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	p := parsePagination(c)
	items, err := s.notificationService.List(c.UserContext(), actorID(c), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, p, items)
}

// FilterNotifications handles GET /api/notifications/filter
// @Summary Filter the caller's notifications
// @Description Every given filter must match.
// @Tags notifications
// @Produce json
// @Param type query string false "Notification type"
// @Param status query string false "UNREAD or READ"
// @Param from query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Param to query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} PageResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/filter [get]
func (s *Server) FilterNotifications(c *fiber.Ctx) error {
	filter, err := parseNotificationFilter(c)
	if err != nil {
		return respondError(c, err)
	}

	p := parsePagination(c)
	items, err := s.notificationService.ListFiltered(c.UserContext(), actorID(c), filter, p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, p, items)
}

func parseNotificationFilter(c *fiber.Ctx) (models.NotificationFilter, error) {
	var filter models.NotificationFilter
	if raw := c.Query("type"); raw != "" {
		t, ok := models.ParseNotificationType(raw)
		if !ok {
			return filter, models.NewValidationError("Invalid notification type")
		}
		filter.Type = &t
	}
	if raw := c.Query("status"); raw != "" {
		st, ok := models.ParseNotificationStatus(raw)
		if !ok {
			return filter, models.NewValidationError("Invalid notification status")
		}
		filter.Status = &st
	}

	var err error
	if filter.From, err = parseTimeBound(c.Query("from"), false); err != nil {
		return filter, models.NewValidationError("Invalid from date")
	}
	if filter.To, err = parseTimeBound(c.Query("to"), true); err != nil {
		return filter, models.NewValidationError("Invalid to date")
	}
	return filter, nil
}

// parseTimeBound accepts RFC3339 or a bare date. A bare upper bound covers
// the whole day.
func parseTimeBound(raw string, upper bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}

// GetUnreadNotifications handles GET /api/notifications/unread
// @Summary The caller's unread notifications
// @Tags notifications
// @Produce json
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} PageResponse
// @Security BearerAuth
// @Router /notifications/unread [get]
func (s *Server) GetUnreadNotifications(c *fiber.Ctx) error {
	p := parsePagination(c)
	items, err := s.notificationService.ListUnread(c.UserContext(), actorID(c), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, p, items)
}

// GetUnreadCount handles GET /api/notifications/unread/count
// @Summary Number of unread notifications
// @Tags notifications
// @Produce json
// @Success 200 {object} CountResponse
// @Security BearerAuth
// @Router /notifications/unread/count [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	count, err := s.notificationService.UnreadCount(c.UserContext(), actorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(CountResponse{Count: count})
}

// MarkNotificationRead handles PUT /api/notifications/:id/read
// @Summary Mark one notification read
// @Description Notifications owned by someone else are left untouched.
// @Tags notifications
// @Param id path int true "Notification ID"
// @Success 204
// @Security BearerAuth
// @Router /notifications/{id}/read [put]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.notificationService.MarkAsRead(c.UserContext(), id, actorID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MarkAllNotificationsRead handles PUT /api/notifications/read-all
// @Summary Mark every notification read
// @Tags notifications
// @Produce json
// @Success 200 {object} CountResponse
// @Security BearerAuth
// @Router /notifications/read-all [put]
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := s.notificationService.MarkAllAsRead(c.UserContext(), actorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(CountResponse{Count: n})
}

// DeleteNotification handles DELETE /api/notifications/:id
// @Summary Delete one notification
// @Description Notifications owned by someone else are left untouched.
// @Tags notifications
// @Param id path int true "Notification ID"
// @Success 204
// @Security BearerAuth
// @Router /notifications/{id} [delete]
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.notificationService.Delete(c.UserContext(), id, actorID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteReadNotifications handles DELETE /api/notifications/read
// @Summary Delete every read notification
// @Tags notifications
// @Produce json
// @Success 200 {object} CountResponse
// @Security BearerAuth
// @Router /notifications/read [delete]
func (s *Server) DeleteReadNotifications(c *fiber.Ctx) error {
	n, err := s.notificationService.DeleteRead(c.UserContext(), actorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(CountResponse{Count: n})
}

// SendSystemNotification handles POST /api/admin/notifications/system
// @Summary Send a system notice to a user
// @Tags admin
// @Accept json
// @Produce json
// @Param request body SystemNotificationRequest true "Notice"
// @Success 201 {object} models.Notification
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/notifications/system [post]
func (s *Server) SendSystemNotification(c *fiber.Ctx) error {
	var req SystemNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	n, err := s.notificationService.SendSystem(c.UserContext(), service.SystemNotificationInput{
		RecipientID: req.RecipientID,
		Title:       req.Title,
		Content:     req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(n)
}

// CleanupNotifications handles DELETE /api/admin/notifications/cleanup
// @Summary Delete notifications past the retention window
// @Tags admin
// @Produce json
// @Param retentionDays query int false "Retention in days" default(30)
// @Success 200 {object} CountResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/notifications/cleanup [delete]
func (s *Server) CleanupNotifications(c *fiber.Ctx) error {
	days := c.QueryInt("retentionDays", service.DefaultRetentionDays)
	n, err := s.notificationService.CleanupOld(c.UserContext(), days)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(CountResponse{Count: n})
}

// NotifyPostUpdated handles POST /api/admin/posts/:id/updated
// @Summary Notify a post author that their post changed
// @Description Called by the post service after an edit.
// @Tags admin
// @Produce json
// @Param id path int true "Post ID"
// @Success 201 {object} models.Notification
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/posts/{id}/updated [post]
func (s *Server) NotifyPostUpdated(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	n, err := s.notificationService.NotifyPostUpdated(c.UserContext(), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(n)
}
