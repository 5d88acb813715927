package service

import "quill/internal/models"

// BuildThread links a post's comments into a forest in one pass over an
// id-indexed arena. Input order is kept among siblings. A comment whose
// parent is not in the input is returned as a root.
func BuildThread(comments []*models.Comment) []*models.Comment {
	byID := make(map[uint]*models.Comment, len(comments))
	for _, c := range comments {
		c.Replies = nil
		byID[c.ID] = c
	}

	roots := make([]*models.Comment, 0, len(comments))
	for _, c := range comments {
		if c.ParentID == nil || *c.ParentID == c.ID {
			roots = append(roots, c)
			continue
		}
		parent, ok := byID[*c.ParentID]
		if !ok {
			roots = append(roots, c)
			continue
		}
		parent.Replies = append(parent.Replies, c)
	}
	return roots
}
