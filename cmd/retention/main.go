// Command retention deletes notifications older than the retention window
// once and exits. It is meant for cron; the server runs the same cleanup on
// its own ticker.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/middleware"
	"quill/internal/repository"
	"quill/internal/service"
)

func main() {
	days := flag.Int("days", 0, "Retention window in days (defaults to RETENTION_DAYS)")
	timeout := flag.Duration("timeout", 5*time.Minute, "Maximum run time")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	retention := cfg.RetentionDays
	if *days > 0 {
		retention = *days
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	rdb := cache.InitRedis(cfg.RedisURL)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	notificationService := service.NewNotificationService(
		repository.NewNotificationRepository(db),
		repository.NewUserRepository(db),
		repository.NewPostRepository(db),
		rdb, nil, cfg.UnreadCacheTTL,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	deleted, err := notificationService.CleanupOld(ctx, retention)
	if err != nil {
		log.Fatalf("Retention failed: %v", err)
	}
	log.Printf("Deleted %d notifications older than %d days", deleted, retention)
}
