// Package main provides moderator management utilities for Quill.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/models"

	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin promote <user_id>     - Grant moderator privilege")
		fmt.Println("  go run ./cmd/admin demote <user_id>      - Revoke moderator privilege")
		fmt.Println("  go run ./cmd/admin list-moderators       - List all moderators")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin %s <user_id>\n", command)
			os.Exit(1)
		}
		if err := setModerator(db, os.Args[2], command == "promote"); err != nil {
			log.Fatal(err)
		}
	case "list-moderators":
		if err := listModerators(db); err != nil {
			log.Fatal(err)
		}
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func setModerator(db *gorm.DB, rawID string, moderator bool) error {
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid user ID %q", rawID)
	}

	var user models.User
	if err := db.First(&user, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %d not found", id)
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.IsAdmin == moderator {
		fmt.Printf("User %s (ID: %d) already has is_admin=%t\n", user.Username, user.ID, moderator)
		return nil
	}

	if err := db.Model(&user).Update("is_admin", moderator).Error; err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	fmt.Printf("User %s (ID: %d) is_admin=%t\n", user.Username, user.ID, moderator)
	return nil
}

func listModerators(db *gorm.DB) error {
	var users []models.User
	if err := db.Where("is_admin = ?", true).Order("id").Find(&users).Error; err != nil {
		return fmt.Errorf("list moderators: %w", err)
	}
	if len(users) == 0 {
		fmt.Println("No moderators found")
		return nil
	}
	fmt.Printf("Found %d moderator(s):\n", len(users))
	for _, u := range users {
		fmt.Printf("  - %s (ID: %d, Email: %s)\n", u.Username, u.ID, u.Email)
	}
	return nil
}
