package members

import (
	"time"

	"github.com/google/uuid"
	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/database/models"
)

// Member is the directory view of a user.
type Member struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Role         models.Role `json:"role"`
	Email        string      `json:"email,omitempty"`
	Phone        string      `json:"phone,omitempty"`
	City         string      `json:"city,omitempty"`
	Occupation   string      `json:"occupation,omitempty"`
	Description  string      `json:"description,omitempty"`
	InstagramURL string      `json:"instagram_url,omitempty"`
	LinkedinURL  string      `json:"linkedin_url,omitempty"`
	ImageURL     string      `json:"image_url,omitempty"`
	Activated    bool        `json:"activated"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Project returns what viewer may see of u. Anonymous viewers get no
// contact details.
func Project(u *models.User, viewer *auth.Claims) Member {
	m := Member{
		ID:          u.ID,
		Name:        u.Name,
		Role:        u.Role,
		City:        u.City,
		Occupation:  u.Occupation,
		Description: u.Description,
		ImageURL:    u.ImageURL,
		Activated:   u.Activated(),
		CreatedAt:   u.CreatedAt,
	}
	if viewer == nil {
		return m
	}
	m.Email = u.Email
	m.Phone = u.Phone
	m.InstagramURL = u.InstagramURL
	m.LinkedinURL = u.LinkedinURL
	return m
}
