// Package seed creates demo data for development databases. Comments,
// reactions and reports go through the services so counters, moderation
// state and notifications are the same as production traffic would leave
// them.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options sizes a seeding run.
type Options struct {
	Users            int
	Moderators       int
	Posts            int
	CommentsPerPost  int
	ReactionsPerPost int
	// ReplyRatio is the percentage of comments posted as replies.
	ReplyRatio int
	// ReportRatio is the percentage of comments that get reported.
	ReportRatio int
	// Seed makes the run reproducible when non-zero.
	Seed int64
}

// DefaultOptions is a small but varied dataset.
func DefaultOptions() Options {
	return Options{
		Users:            20,
		Moderators:       2,
		Posts:            40,
		CommentsPerPost:  6,
		ReactionsPerPost: 10,
		ReplyRatio:       35,
		ReportRatio:      10,
	}
}

// Summary counts what a run created.
type Summary struct {
	Users     int
	Posts     int
	Comments  int
	Toggles   int
	Reports   int
	Resolved  int
	Duplicate int
}

// Seeder writes demo data into db.
type Seeder struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker

	userRepo repository.UserRepository
	postRepo repository.PostRepository

	comments   *service.CommentService
	reactions  *service.ReactionService
	moderation *service.ModerationService
}

// NewSeeder wires the engine's services on top of db without cache or push.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	reactionRepo := repository.NewReactionRepository(db)

	notifications := service.NewNotificationService(
		repository.NewNotificationRepository(db), userRepo, postRepo, nil, nil, 0,
	)

	return &Seeder{
		db:         db,
		opts:       opts,
		faker:      gofakeit.New(seed),
		userRepo:   userRepo,
		postRepo:   postRepo,
		comments:   service.NewCommentService(commentRepo, postRepo, reactionRepo, userRepo.IsAdmin, notifications),
		reactions:  service.NewReactionService(reactionRepo, notifications),
		moderation: service.NewModerationService(repository.NewReportRepository(db), commentRepo, userRepo.IsAdmin),
	}
}

// ClearAll removes every engine row, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tables := []interface{}{
		&models.Notification{},
		&models.CommentReport{},
		&models.Reaction{},
		&models.Comment{},
		&models.Post{},
		&models.User{},
	}
	db := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, t := range tables {
		if err := db.Delete(t).Error; err != nil {
			return fmt.Errorf("clear %T: %w", t, err)
		}
	}
	middleware.Logger.InfoContext(ctx, "seed: cleared engine tables")
	return nil
}

// Run creates users and posts, then drives comments, reactions and reports
// through the services.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	var sum Summary

	users, err := s.seedUsers(ctx)
	if err != nil {
		return nil, err
	}
	sum.Users = len(users)

	posts, err := s.seedPosts(ctx, users)
	if err != nil {
		return nil, err
	}
	sum.Posts = len(posts)

	var moderators []*models.User
	for _, u := range users {
		if u.IsAdmin {
			moderators = append(moderators, u)
		}
	}

	for _, post := range posts {
		comments, err := s.seedComments(ctx, post, users)
		if err != nil {
			return nil, err
		}
		sum.Comments += len(comments)

		toggles, err := s.seedReactions(ctx, post, comments, users)
		if err != nil {
			return nil, err
		}
		sum.Toggles += toggles

		if err := s.seedReports(ctx, comments, users, moderators, &sum); err != nil {
			return nil, err
		}
	}

	middleware.Logger.InfoContext(ctx, "seed: finished",
		slog.Int("users", sum.Users),
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
		slog.Int("toggles", sum.Toggles),
		slog.Int("reports", sum.Reports),
	)
	return &sum, nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		u := &models.User{
			Username: fmt.Sprintf("%s%d", s.faker.Username(), i),
			Email:    fmt.Sprintf("user%d@%s", i, s.faker.DomainName()),
			IsAdmin:  i < s.opts.Moderators,
		}
		if err := s.userRepo.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Seeder) seedPosts(ctx context.Context, users []*models.User) ([]*models.Post, error) {
	if len(users) == 0 {
		return nil, nil
	}
	posts := make([]*models.Post, 0, s.opts.Posts)
	for i := 0; i < s.opts.Posts; i++ {
		author := s.pick(users)
		p := &models.Post{
			UserID:  author.ID,
			Title:   s.faker.Sentence(5),
			Content: s.faker.Paragraph(1, 3, 8, "\n"),
		}
		if err := s.postRepo.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (s *Seeder) seedComments(ctx context.Context, post *models.Post, users []*models.User) ([]*models.Comment, error) {
	comments := make([]*models.Comment, 0, s.opts.CommentsPerPost)
	for i := 0; i < s.opts.CommentsPerPost; i++ {
		in := service.CreateCommentInput{
			UserID:  s.pick(users).ID,
			PostID:  post.ID,
			Content: s.faker.Sentence(s.faker.Number(4, 16)),
		}
		if len(comments) > 0 && s.chance(s.opts.ReplyRatio) {
			parent := comments[s.faker.Number(0, len(comments)-1)]
			in.ParentID = &parent.ID
			if parent.User != nil && s.faker.Bool() {
				in.MentionUsername = parent.User.Username
			}
		}
		c, err := s.comments.CreateComment(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("create comment on post %d: %w", post.ID, err)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// seedReactions toggles random reactions; some actors toggle twice so the
// remove and switch paths run too.
func (s *Seeder) seedReactions(
	ctx context.Context, post *models.Post, comments []*models.Comment, users []*models.User,
) (int, error) {
	toggles := 0
	for i := 0; i < s.opts.ReactionsPerPost; i++ {
		target := models.Target{Type: models.TargetPost, ID: post.ID}
		if len(comments) > 0 && s.faker.Bool() {
			target = models.Target{Type: models.TargetComment, ID: comments[s.faker.Number(0, len(comments)-1)].ID}
		}
		actor := s.pick(users)

		rounds := 1
		if s.chance(20) {
			rounds = 2
		}
		for r := 0; r < rounds; r++ {
			reaction := models.ReactionLike
			if s.chance(25) {
				reaction = models.ReactionDislike
			}
			if _, err := s.reactions.Toggle(ctx, service.ToggleReactionInput{
				UserID:     actor.ID,
				TargetType: target.Type,
				TargetID:   target.ID,
				Type:       string(reaction),
			}); err != nil {
				return toggles, fmt.Errorf("toggle %s %d: %w", target.Type, target.ID, err)
			}
			toggles++
		}
	}
	return toggles, nil
}

var reasons = []models.ReportReason{
	models.ReasonSpam, models.ReasonInappropriate, models.ReasonHarassment, models.ReasonOther,
}

func (s *Seeder) seedReports(
	ctx context.Context, comments []*models.Comment, users, moderators []*models.User, sum *Summary,
) error {
	for _, c := range comments {
		if !s.chance(s.opts.ReportRatio) {
			continue
		}
		in := service.ReportCommentInput{
			CommentID:  c.ID,
			ReporterID: s.pick(users).ID,
			Reason:     string(reasons[s.faker.Number(0, len(reasons)-1)]),
		}
		if in.Reason == string(models.ReasonOther) {
			desc := s.faker.Sentence(8)
			in.Description = &desc
		}

		report, err := s.moderation.ReportComment(ctx, in)
		if models.ErrorCode(err) == models.CodeDuplicateReport {
			sum.Duplicate++
			continue
		}
		if err != nil {
			return fmt.Errorf("report comment %d: %w", c.ID, err)
		}
		sum.Reports++

		if len(moderators) == 0 || !s.faker.Bool() {
			continue
		}
		decision := models.ReportRejected
		if s.faker.Bool() {
			decision = models.ReportResolved
		}
		if _, err := s.moderation.HandleReport(ctx, service.HandleReportInput{
			ReportID:    report.ID,
			ModeratorID: s.pick(moderators).ID,
			Status:      string(decision),
		}); err != nil {
			return fmt.Errorf("handle report %d: %w", report.ID, err)
		}
		sum.Resolved++
	}
	return nil
}

func (s *Seeder) pick(users []*models.User) *models.User {
	return users[s.faker.Number(0, len(users)-1)]
}

// chance reports true pct percent of the time.
func (s *Seeder) chance(pct int) bool {
	return s.faker.Number(1, 100) <= pct
}
