package database

import "quill/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Reaction{},
		&models.CommentReport{},
		&models.Notification{},
	}
}
