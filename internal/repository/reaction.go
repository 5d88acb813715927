package repository

import (
	"context"
	"errors"
	"fmt"

	"quill/internal/models"
	"quill/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxToggleAttempts bounds retries after losing an insert race on the
// reaction unique index.
const maxToggleAttempts = 3

// Transition describes what a toggle did to the actor's reaction row.
type Transition string

const (
	TransitionAdded   Transition = "added"
	TransitionRemoved Transition = "removed"
	TransitionChanged Transition = "changed"
	// TransitionNone is returned by Remove when the actor had no reaction.
	TransitionNone Transition = "none"
)

// ToggleResult is the committed state after a toggle or removal.
type ToggleResult struct {
	Target       models.Target
	OwnerID      uint
	PostID       uint
	Previous     models.ReactionType
	Current      models.ReactionType
	Transition   Transition
	LikeCount    int64
	DislikeCount int64
}

// ReactionRepository owns reaction rows and the counters they drive.
type ReactionRepository interface {
	Toggle(ctx context.Context, target models.Target, userID uint, reaction models.ReactionType) (*ToggleResult, error)
	Remove(ctx context.Context, target models.Target, userID uint) (*ToggleResult, error)
	Stats(ctx context.Context, target models.Target, viewerID uint) (*models.ReactionStats, error)
	ListByTarget(ctx context.Context, target models.Target, limit, offset int) ([]models.Reaction, error)
	ListByUser(ctx context.Context, userID uint, targetType *models.TargetType, limit, offset int) ([]models.Reaction, error)
	TypesByUser(ctx context.Context, userID uint, targetType models.TargetType, targetIDs []uint) (map[uint]models.ReactionType, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository creates a new ReactionRepository
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

// targetRow is the slice of a post or comment row the toggle needs.
type targetRow struct {
	ID           uint
	UserID       uint
	PostID       uint
	LikeCount    int64
	DislikeCount int64
}

type counterDelta struct {
	column string
	up     bool
}

func increment(t models.ReactionType) counterDelta {
	col, _ := t.CounterColumn()
	return counterDelta{column: col, up: true}
}

func decrement(t models.ReactionType) counterDelta {
	col, _ := t.CounterColumn()
	return counterDelta{column: col}
}

func (d counterDelta) expr() clause.Expr {
	if d.up {
		return gorm.Expr(d.column + " + 1")
	}
	return gorm.Expr("CASE WHEN " + d.column + " > 0 THEN " + d.column + " - 1 ELSE 0 END")
}

func targetColumns(t models.TargetType) string {
	if t == models.TargetPost {
		return "id, user_id, id AS post_id, like_count, dislike_count"
	}
	return "id, user_id, post_id, like_count, dislike_count"
}

func loadTarget(tx *gorm.DB, target models.Target) (*targetRow, error) {
	table, ok := target.Type.Table()
	if !ok {
		return nil, ErrUnknownTarget
	}
	var row targetRow
	if err := tx.Table(table).Select(targetColumns(target.Type)).Where("id = ?", target.ID).Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func findReactionForUpdate(tx *gorm.DB, target models.Target, userID uint) (*models.Reaction, error) {
	var reaction models.Reaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("target_type = ? AND target_id = ? AND user_id = ?", target.Type, target.ID, userID).
		Take(&reaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

// applyCounters runs one UPDATE carrying every delta so a switch moves both
// counters atomically.
func applyCounters(tx *gorm.DB, target models.Target, deltas ...counterDelta) error {
	table, _ := target.Type.Table()
	updates := make(map[string]interface{}, len(deltas))
	for _, d := range deltas {
		updates[d.column] = d.expr()
	}
	res := tx.Table(table).Where("id = ?", target.ID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func readCounters(tx *gorm.DB, target models.Target, res *ToggleResult) error {
	table, _ := target.Type.Table()
	var counts struct {
		LikeCount    int64
		DislikeCount int64
	}
	if err := tx.Table(table).Select("like_count, dislike_count").Where("id = ?", target.ID).Take(&counts).Error; err != nil {
		return err
	}
	res.LikeCount = counts.LikeCount
	res.DislikeCount = counts.DislikeCount
	return nil
}

// inTx runs fn in a transaction, retrying the whole transaction when it
// lost a race on the reaction unique index. The retry re-reads the row the
// winner inserted and takes the update or delete branch instead.
func (r *reactionRepository) inTx(ctx context.Context, target models.Target, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(fn)
		if !IsUniqueViolation(err) {
			return err
		}
		observability.ReactionToggleRetries.WithLabelValues(string(target.Type)).Inc()
	}
	return fmt.Errorf("toggle reaction after %d attempts: %w", maxToggleAttempts, err)
}

func (r *reactionRepository) Toggle(
	ctx context.Context, target models.Target, userID uint, reaction models.ReactionType,
) (*ToggleResult, error) {
	if _, ok := target.Type.Table(); !ok {
		return nil, ErrUnknownTarget
	}
	if !reaction.Valid() {
		return nil, ErrInvalidReactionType
	}

	defer observability.TrackQuery("toggle", string(target.Type))()

	var result *ToggleResult
	err := r.inTx(ctx, target, func(tx *gorm.DB) error {
		row, err := loadTarget(tx, target)
		if err != nil {
			return err
		}
		existing, err := findReactionForUpdate(tx, target, userID)
		if err != nil {
			return err
		}

		res := &ToggleResult{Target: target, OwnerID: row.UserID, PostID: row.PostID}

		switch {
		case existing == nil:
			created := models.Reaction{TargetType: target.Type, TargetID: target.ID, UserID: userID, Type: reaction}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			if err := applyCounters(tx, target, increment(reaction)); err != nil {
				return err
			}
			res.Previous, res.Current, res.Transition = models.ReactionNone, reaction, TransitionAdded

		case existing.Type == reaction:
			if err := tx.Delete(existing).Error; err != nil {
				return err
			}
			if err := applyCounters(tx, target, decrement(reaction)); err != nil {
				return err
			}
			res.Previous, res.Current, res.Transition = reaction, models.ReactionNone, TransitionRemoved

		default:
			// Update writes the new type back into existing.
			previous := existing.Type
			if err := tx.Model(existing).Update("type", reaction).Error; err != nil {
				return err
			}
			if err := applyCounters(tx, target, decrement(previous), increment(reaction)); err != nil {
				return err
			}
			res.Previous, res.Current, res.Transition = previous, reaction, TransitionChanged
		}

		if err := readCounters(tx, target, res); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *reactionRepository) Remove(ctx context.Context, target models.Target, userID uint) (*ToggleResult, error) {
	if _, ok := target.Type.Table(); !ok {
		return nil, ErrUnknownTarget
	}

	var result *ToggleResult
	err := r.inTx(ctx, target, func(tx *gorm.DB) error {
		row, err := loadTarget(tx, target)
		if err != nil {
			return err
		}
		existing, err := findReactionForUpdate(tx, target, userID)
		if err != nil {
			return err
		}

		res := &ToggleResult{
			Target:     target,
			OwnerID:    row.UserID,
			PostID:     row.PostID,
			Previous:   models.ReactionNone,
			Current:    models.ReactionNone,
			Transition: TransitionNone,
		}
		if existing != nil {
			if err := tx.Delete(existing).Error; err != nil {
				return err
			}
			if err := applyCounters(tx, target, decrement(existing.Type)); err != nil {
				return err
			}
			res.Previous, res.Transition = existing.Type, TransitionRemoved
		}

		if err := readCounters(tx, target, res); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *reactionRepository) Stats(ctx context.Context, target models.Target, viewerID uint) (*models.ReactionStats, error) {
	db := r.db.WithContext(ctx)
	row, err := loadTarget(db, target)
	if err != nil {
		return nil, err
	}

	stats := &models.ReactionStats{
		TargetType:   target.Type,
		TargetID:     target.ID,
		LikeCount:    row.LikeCount,
		DislikeCount: row.DislikeCount,
	}
	if viewerID == 0 {
		return stats, nil
	}

	var reactions []models.Reaction
	if err := db.Where("target_type = ? AND target_id = ? AND user_id = ?", target.Type, target.ID, viewerID).
		Limit(1).Find(&reactions).Error; err != nil {
		return nil, err
	}
	if len(reactions) == 1 {
		stats.UserLiked = reactions[0].Type == models.ReactionLike
		stats.UserDisliked = reactions[0].Type == models.ReactionDislike
	}
	return stats, nil
}

func (r *reactionRepository) ListByTarget(ctx context.Context, target models.Target, limit, offset int) ([]models.Reaction, error) {
	limit, offset = clampPage(limit, offset)
	var reactions []models.Reaction
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", target.Type, target.ID).
		Order("created_at desc").Limit(limit).Offset(offset).
		Find(&reactions).Error
	return reactions, err
}

func (r *reactionRepository) ListByUser(
	ctx context.Context, userID uint, targetType *models.TargetType, limit, offset int,
) ([]models.Reaction, error) {
	limit, offset = clampPage(limit, offset)
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if targetType != nil {
		q = q.Where("target_type = ?", *targetType)
	}
	var reactions []models.Reaction
	err := q.Order("created_at desc").Limit(limit).Offset(offset).Find(&reactions).Error
	return reactions, err
}

func (r *reactionRepository) TypesByUser(
	ctx context.Context, userID uint, targetType models.TargetType, targetIDs []uint,
) (map[uint]models.ReactionType, error) {
	out := make(map[uint]models.ReactionType, len(targetIDs))
	if userID == 0 || len(targetIDs) == 0 {
		return out, nil
	}
	var reactions []models.Reaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id IN ?", userID, targetType, targetIDs).
		Find(&reactions).Error; err != nil {
		return nil, err
	}
	for _, reaction := range reactions {
		out[reaction.TargetID] = reaction.Type
	}
	return out, nil
}
