package business

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/validation"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

type Filter struct {
	Category string
	Query    string
}

// List returns recommended businesses first, then the rest by name.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Business, error) {
	q := s.db.WithContext(ctx).
		Preload("Owner", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "image_url", "role", "created_at", "updated_at")
		}).
		Order("is_recommended DESC").
		Order("name ASC")

	if c := strings.TrimSpace(f.Category); c != "" && c != "all" {
		q = q.Where("category = ?", c)
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(category) LIKE ?", like, like, like)
	}

	var out []models.Business
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing businesses: %w", err)
	}
	return out, nil
}

type CreateInput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	ImageURL     string `json:"image_url"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Website      string `json:"website"`
	Address      string `json:"address"`
	City         string `json:"city"`
	InstagramURL string `json:"instagram_url"`
	LinkedinURL  string `json:"linkedin_url"`
}

func (in *CreateInput) Validate() error {
	errs := validation.Errors{}
	errs.Required("name", in.Name)
	errs.MaxLen("name", in.Name, 200)
	errs.Required("category", in.Category)
	errs.MaxLen("description", in.Description, 2000)
	if in.Email != "" {
		errs.Email("email", in.Email)
	}
	errs.OptionalURL("image_url", in.ImageURL)
	errs.OptionalURL("website", in.Website)
	errs.OptionalURL("instagram_url", in.InstagramURL)
	errs.OptionalURL("linkedin_url", in.LinkedinURL)
	return errs.Err()
}

// Create lists a business owned by the caller. New listings are never
// recommended; admins flag those separately.
func (s *Service) Create(ctx context.Context, owner *auth.Claims, in CreateInput) (*models.Business, error) {
	if owner == nil {
		return nil, auth.ErrUnauthenticated
	}
	trim := func(v string) string { return strings.TrimSpace(validation.SanitizeString(v)) }
	in.Name = trim(in.Name)
	in.Category = trim(in.Category)
	in.Description = trim(in.Description)
	in.Email = auth.NormalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	b := models.Business{
		Name:         in.Name,
		Description:  in.Description,
		Category:     in.Category,
		ImageURL:     in.ImageURL,
		Phone:        trim(in.Phone),
		Email:        in.Email,
		Website:      in.Website,
		Address:      trim(in.Address),
		City:         trim(in.City),
		InstagramURL: in.InstagramURL,
		LinkedinURL:  in.LinkedinURL,
		OwnerID:      owner.UserID,
	}
	if err := s.db.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, fmt.Errorf("creating business: %w", err)
	}

	s.logger.Info("business created", "business_id", b.ID, "owner_id", owner.UserID)
	return &b, nil
}
