package service

import (
	"quill/internal/models"
	"quill/internal/repository"
)

// storageError maps a repository failure to the AppError the API reports.
func storageError(err error, resource string, id uint) error {
	switch {
	case err == nil:
		return nil
	case repository.IsNotFound(err):
		return models.NewNotFoundError(resource, id)
	default:
		return models.NewInternalError(err)
	}
}

func requireActor(userID uint) error {
	if userID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	return nil
}

func targetResource(t models.TargetType) string {
	if t == models.TargetComment {
		return "Comment"
	}
	return "Post"
}
