package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/validation"
	"gorm.io/gorm"
)

var ErrEventNotFound = errors.New("event not found")

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

type Filter struct {
	Category string
	EventID  *uuid.UUID
}

// List returns gallery items newest first.
func (s *Service) List(ctx context.Context, viewer *auth.Claims, f Filter) ([]models.GalleryItem, error) {
	if viewer == nil {
		return nil, auth.ErrUnauthenticated
	}

	q := s.db.WithContext(ctx).
		Preload("Event", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "short_code", "title", "category", "created_at", "updated_at")
		}).
		Preload("UploadedBy", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "image_url", "role", "created_at", "updated_at")
		}).
		Order("created_at DESC")

	if c := strings.TrimSpace(f.Category); c != "" && c != "all" {
		q = q.Where("category = ?", c)
	}
	if f.EventID != nil {
		q = q.Where("event_id = ?", *f.EventID)
	}

	var items []models.GalleryItem
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("listing gallery: %w", err)
	}
	return items, nil
}

type CreateInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ImageURL    string     `json:"image_url"`
	VideoURL    string     `json:"video_url"`
	Category    string     `json:"category"`
	EventID     *uuid.UUID `json:"event_id"`
}

func (in *CreateInput) Validate() error {
	errs := validation.Errors{}
	errs.Required("image_url", in.ImageURL)
	errs.OptionalURL("image_url", in.ImageURL)
	errs.OptionalURL("video_url", in.VideoURL)
	errs.MaxLen("title", in.Title, 200)
	errs.MaxLen("description", in.Description, 2000)
	return errs.Err()
}

func (s *Service) Create(ctx context.Context, uploader *auth.Claims, in CreateInput) (*models.GalleryItem, error) {
	if uploader == nil {
		return nil, auth.ErrUnauthenticated
	}
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.VideoURL = strings.TrimSpace(in.VideoURL)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if in.EventID != nil {
		var count int64
		if err := db.Model(&models.Event{}).Where("id = ?", *in.EventID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrEventNotFound
		}
	}

	item := models.GalleryItem{
		Title:        strings.TrimSpace(validation.SanitizeString(in.Title)),
		Description:  strings.TrimSpace(validation.SanitizeString(in.Description)),
		ImageURL:     in.ImageURL,
		VideoURL:     in.VideoURL,
		Category:     strings.TrimSpace(in.Category),
		EventID:      in.EventID,
		UploadedByID: uploader.UserID,
	}
	if err := db.Create(&item).Error; err != nil {
		return nil, fmt.Errorf("creating gallery item: %w", err)
	}

	s.logger.Info("gallery item added", "item_id", item.ID, "uploaded_by", uploader.UserID)
	return &item, nil
}
