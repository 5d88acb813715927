package service

import (
	"testing"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v uint) *uint { return &v }

func TestBuildThread(t *testing.T) {
	t.Parallel()

	comments := []*models.Comment{
		{ID: 1},
		{ID: 2, ParentID: ptr(1)},
		{ID: 3, ParentID: ptr(2)},
		{ID: 4, ParentID: ptr(3)},
		{ID: 5},
		{ID: 6, ParentID: ptr(1)},
		{ID: 7, ParentID: ptr(404)},
	}

	roots := BuildThread(comments)
	require.Len(t, roots, 3)
	assert.Equal(t, []uint{1, 5, 7}, []uint{roots[0].ID, roots[1].ID, roots[2].ID})

	first := roots[0]
	require.Len(t, first.Replies, 2)
	assert.Equal(t, uint(2), first.Replies[0].ID)
	assert.Equal(t, uint(6), first.Replies[1].ID)

	depth3 := first.Replies[0].Replies[0].Replies
	require.Len(t, depth3, 1)
	assert.Equal(t, uint(4), depth3[0].ID)
}

func TestBuildThread_ResetsPreviousReplies(t *testing.T) {
	t.Parallel()

	parent := &models.Comment{ID: 1, Replies: []*models.Comment{{ID: 99}}}
	roots := BuildThread([]*models.Comment{parent, {ID: 2, ParentID: ptr(1)}})
	require.Len(t, roots, 1)
	require.Len(t, roots[0].Replies, 1)
	assert.Equal(t, uint(2), roots[0].Replies[0].ID)
}

func TestBuildThread_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, BuildThread(nil))
}
