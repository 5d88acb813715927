// Command main runs the database seeder for Quill.
package main

import (
	"context"
	"flag"
	"log"

	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/middleware"
	"quill/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	numModerators := flag.Int("moderators", defaults.Moderators, "How many of the users are moderators")
	numPosts := flag.Int("posts", defaults.Posts, "Number of posts to create")
	comments := flag.Int("comments", defaults.CommentsPerPost, "Comments per post")
	reactions := flag.Int("reactions", defaults.ReactionsPerPost, "Reaction toggles per post")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	opts := defaults
	opts.Users = *numUsers
	opts.Moderators = *numModerators
	opts.Posts = *numPosts
	opts.CommentsPerPost = *comments
	opts.ReactionsPerPost = *reactions
	opts.Seed = *randSeed

	ctx := context.Background()
	s := seed.NewSeeder(db, opts)

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	sum, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d posts, %d comments, %d reaction toggles, %d reports (%d handled)",
		sum.Users, sum.Posts, sum.Comments, sum.Toggles, sum.Reports, sum.Resolved)
}
