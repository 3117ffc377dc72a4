package members

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/events"
	"github.com/hugh/poolparty/internal/validation"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("member not found")
	ErrEmailInUse = errors.New("email is already in use")
	ErrSelfDelete = errors.New("cannot delete your own account from the admin panel")
)

const maxSearchResults = 200

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Search lists members whose name, city or occupation contains query.
func (s *Service) Search(ctx context.Context, query string, viewer *auth.Claims) ([]Member, error) {
	q := s.db.WithContext(ctx).
		Where("role = ?", models.RoleMember).
		Order("name ASC").
		Limit(maxSearchResults)

	if query = strings.TrimSpace(query); query != "" {
		like := "%" + escapeLike(strings.ToLower(query)) + "%"
		q = q.Where(
			"LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(city) LIKE ? ESCAPE '\\' OR LOWER(occupation) LIKE ? ESCAPE '\\'",
			like, like, like,
		)
	}

	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("searching members: %w", err)
	}

	out := make([]Member, len(users))
	for i := range users {
		out[i] = Project(&users[i], viewer)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, viewer *auth.Claims) (*Member, error) {
	user, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	m := Project(user, viewer)
	return &m, nil
}

// Patch carries the profile fields to change; nil fields are left alone.
type Patch struct {
	Name         *string `json:"name"`
	Phone        *string `json:"phone"`
	City         *string `json:"city"`
	Occupation   *string `json:"occupation"`
	Description  *string `json:"description"`
	InstagramURL *string `json:"instagram_url"`
	LinkedinURL  *string `json:"linkedin_url"`
	ImageURL     *string `json:"image_url"`
}

func (p *Patch) Validate() error {
	errs := validation.Errors{}
	if p.Name != nil {
		errs.Required("name", *p.Name)
		errs.MaxLen("name", *p.Name, 200)
	}
	if p.Description != nil {
		errs.MaxLen("description", *p.Description, 2000)
	}
	if p.InstagramURL != nil {
		errs.OptionalURL("instagram_url", *p.InstagramURL)
	}
	if p.LinkedinURL != nil {
		errs.OptionalURL("linkedin_url", *p.LinkedinURL)
	}
	if p.ImageURL != nil {
		errs.OptionalURL("image_url", *p.ImageURL)
	}
	return errs.Err()
}

func (p *Patch) updates() map[string]interface{} {
	u := make(map[string]interface{})
	set := func(col string, v *string) {
		if v != nil {
			u[col] = strings.TrimSpace(validation.SanitizeString(*v))
		}
	}
	set("name", p.Name)
	set("phone", p.Phone)
	set("city", p.City)
	set("occupation", p.Occupation)
	set("description", p.Description)
	set("instagram_url", p.InstagramURL)
	set("linkedin_url", p.LinkedinURL)
	set("image_url", p.ImageURL)
	return u
}

// AdminPatch extends Patch with the fields only admins may change.
type AdminPatch struct {
	Patch
	Email *string      `json:"email"`
	Role  *models.Role `json:"role"`
}

func (p *AdminPatch) Validate() error {
	errs := validation.Errors{}
	if err := p.Patch.Validate(); err != nil {
		var fields validation.Errors
		if errors.As(err, &fields) {
			for f, msg := range fields {
				errs.Add(f, msg)
			}
		}
	}
	if p.Email != nil {
		errs.Email("email", auth.NormalizeEmail(*p.Email))
	}
	if p.Role != nil && !p.Role.Valid() {
		errs.Add("role", "must be ADMIN or MEMBER")
	}
	return errs.Err()
}

// Update applies an admin edit to any account.
func (s *Service) Update(ctx context.Context, caller *auth.Claims, id uuid.UUID, patch AdminPatch) (*Member, error) {
	if err := auth.RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	updates := patch.updates()
	if patch.Email != nil {
		updates["email"] = auth.NormalizeEmail(*patch.Email)
	}
	if patch.Role != nil {
		updates["role"] = *patch.Role
	}

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if user, err = s.load(tx, id); err != nil {
			return err
		}
		if email, ok := updates["email"].(string); ok && email != user.Email {
			var count int64
			if err := tx.Model(&models.User{}).
				Where("email = ? AND id <> ?", email, id).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrEmailInUse
			}
		}
		return s.apply(tx, user, updates)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("member updated", "user_id", id, "by", caller.UserID)
	m := Project(user, caller)
	return &m, nil
}

// Delete removes another user's account. Admins delete themselves through
// DeleteAccount.
func (s *Service) Delete(ctx context.Context, caller *auth.Claims, id uuid.UUID) error {
	if err := auth.RequireRole(caller, models.RoleAdmin); err != nil {
		return err
	}
	if caller.UserID == id {
		return ErrSelfDelete
	}
	if err := s.deleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("member deleted", "user_id", id, "by", caller.UserID)
	return nil
}

func (s *Service) GetProfile(ctx context.Context, caller *auth.Claims) (*Member, error) {
	if caller == nil {
		return nil, auth.ErrUnauthenticated
	}
	return s.Get(ctx, caller.UserID, caller)
}

func (s *Service) UpdateProfile(ctx context.Context, caller *auth.Claims, patch Patch) (*Member, error) {
	if caller == nil {
		return nil, auth.ErrUnauthenticated
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if user, err = s.load(tx, caller.UserID); err != nil {
			return err
		}
		return s.apply(tx, user, patch.updates())
	})
	if err != nil {
		return nil, err
	}
	m := Project(user, caller)
	return &m, nil
}

func (s *Service) DeleteAccount(ctx context.Context, caller *auth.Claims) error {
	if caller == nil {
		return auth.ErrUnauthenticated
	}
	if err := s.deleteUser(ctx, caller.UserID); err != nil {
		return err
	}
	s.logger.Info("account deleted", "user_id", caller.UserID)
	return nil
}

// CheckMember reports whether email belongs to an account.
func (s *Service) CheckMember(ctx context.Context, email string) (bool, error) {
	email = auth.NormalizeEmail(email)
	if !validation.IsValidEmail(email) {
		return false, validation.Errors{"email": "must be a valid email address"}
	}
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) deleteUser(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.load(tx, id)
		if err != nil {
			return err
		}

		var eventIDs []uuid.UUID
		if err := tx.Model(&models.Event{}).Where("created_by_id = ?", id).Pluck("id", &eventIDs).Error; err != nil {
			return err
		}
		if err := events.DeleteCascade(tx, eventIDs...); err != nil {
			return fmt.Errorf("deleting events: %w", err)
		}

		steps := []struct {
			model interface{}
			query string
		}{
			{&models.GroupMembership{}, "user_id = ?"},
			{&models.EventJoin{}, "user_id = ?"},
			{&models.Business{}, "owner_id = ?"},
			{&models.GalleryItem{}, "uploaded_by_id = ?"},
			{&models.Referral{}, "referrer_id = ?"},
		}
		for _, step := range steps {
			if err := tx.Where(step.query, id).Delete(step.model).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Referral{}).
			Where("reviewed_by_id = ?", id).
			Update("reviewed_by_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("identifier = ?", user.Email).Delete(&models.InvitationToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
}

func (s *Service) load(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) apply(tx *gorm.DB, user *models.User, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	if err := tx.Model(user).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailInUse
		}
		return fmt.Errorf("updating member: %w", err)
	}
	return tx.First(user, "id = ?", user.ID).Error
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
