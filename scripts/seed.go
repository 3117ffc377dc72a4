//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/database"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/pkg/config"
	"github.com/hugh/poolparty/pkg/util"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var defaultGroups = []string{"Party", "Yoga", "Mingling", "Business"}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, "seed")
	ctx := context.Background()

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")

	if email == "" {
		email = "admin@fridaypoolparty.com"
	}
	if password == "" {
		password = "admin123!"
	}
	if name == "" {
		name = "Admin"
	}

	if err := seedAdmin(ctx, db, auth.NormalizeEmail(email), password, name); err != nil {
		log.Fatalf("failed to create admin user: %v", err)
	}

	for _, g := range defaultGroups {
		group := models.Group{Name: g}
		res := db.WithContext(ctx).Where(models.Group{Name: g}).FirstOrCreate(&group)
		if res.Error != nil {
			log.Fatalf("failed to create group %s: %v", g, res.Error)
		}
		if res.RowsAffected > 0 {
			fmt.Printf("Group created: %s\n", g)
		}
	}
}

func seedAdmin(ctx context.Context, db *gorm.DB, email, password, name string) error {
	var existing models.User
	err := db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		fmt.Printf("Admin user already exists: %s\n", email)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := auth.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	now := time.Now()
	admin := models.User{
		Email:           email,
		PasswordHash:    &hash,
		Role:            models.RoleAdmin,
		Name:            name,
		EmailVerifiedAt: &now,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", admin.Email)
	return nil
}
