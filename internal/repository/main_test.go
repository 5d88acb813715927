package repository

import (
	"testing"

	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// setupSQLite returns a migrated in-memory database private to the test.
func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(&config.Config{Env: "test", DBDriver: "sqlite", SQLitePath: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type fixture struct {
	author  *models.User
	reader  *models.User
	post    *models.Post
	comment *models.Comment
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	author := &models.User{Username: "author", Email: "author@example.com"}
	reader := &models.User{Username: "reader", Email: "reader@example.com"}
	require.NoError(t, db.Create(author).Error)
	require.NoError(t, db.Create(reader).Error)

	post := &models.Post{UserID: author.ID, Title: "Hello", Content: "First post"}
	require.NoError(t, db.Omit("User").Create(post).Error)

	comment := &models.Comment{PostID: post.ID, UserID: author.ID, Content: "Author comment", Status: models.CommentActive}
	require.NoError(t, db.Omit("User").Create(comment).Error)

	return fixture{author: author, reader: reader, post: post, comment: comment}
}
