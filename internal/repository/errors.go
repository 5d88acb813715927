// Package repository provides data access layer implementations for the engine.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// Errors returned by repositories in addition to gorm.ErrRecordNotFound.
var (
	ErrUnknownTarget       = errors.New("unknown reaction target type")
	ErrInvalidReactionType = errors.New("invalid reaction type")
)

// IsUniqueViolation reports whether err is a unique constraint violation,
// either translated by GORM or raw from the postgres driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// IsNotFound reports whether err signals a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
