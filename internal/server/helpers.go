package server

import (
	"errors"

	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const (
	defaultPageLimit   = 20
	maxPaginationLimit = 100
)

// Pagination holds the parsed 1-based page and its limit/offset window.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// PageResponse wraps one page of results.
type PageResponse struct {
	Items any `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// parsePagination reads page and limit query parameters.
func parsePagination(c *fiber.Ctx) Pagination {
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

func respondPage(c *fiber.Ctx, p Pagination, items any) error {
	return c.JSON(PageResponse{Items: items, Page: p.Page, Limit: p.Limit})
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// respondError writes err with the status its AppError code maps to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}

func invalidBody(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
}

// actorID returns the authenticated user set by AuthRequired, or 0.
func actorID(c *fiber.Ctx) uint {
	userID, _ := c.Locals("userID").(uint)
	return userID
}
