package dto

import (
	"time"

	"github.com/hugh/poolparty/internal/database/models"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type UserDTO struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
	ImageURL string      `json:"image_url,omitempty"`
}

func NewUserDTO(u *models.User) UserDTO {
	return UserDTO{
		ID:       u.ID.String(),
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
		ImageURL: u.ImageURL,
	}
}

type CheckMemberRequest struct {
	Email string `json:"email"`
}

type CheckMemberResponse struct {
	Exists bool `json:"exists"`
}

type RedeemInviteRequest struct {
	Password string `json:"password"`
}

type InvitationResponse struct {
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	Expires time.Time `json:"expires"`
}
