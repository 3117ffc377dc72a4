package invites

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/notify"
	"github.com/hugh/poolparty/internal/validation"
	"gorm.io/gorm"
)

var ErrUserExists = errors.New("user with this email already exists")

// Service adds admin-initiated invitations on top of the token Store.
type Service struct {
	*Store
	delivery notify.InvitationDeliverer
	logger   *slog.Logger
}

func NewService(store *Store, delivery notify.InvitationDeliverer, logger *slog.Logger) *Service {
	return &Service{Store: store, delivery: delivery, logger: logger}
}

type InviteInput struct {
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Phone string      `json:"phone"`
	Role  models.Role `json:"role"`
}

func (in *InviteInput) Validate() error {
	errs := validation.Errors{}
	errs.Required("email", in.Email)
	errs.Email("email", in.Email)
	if in.Role != "" && !in.Role.Valid() {
		errs.Add("role", "must be ADMIN or MEMBER")
	}
	return errs.Err()
}

type InviteResult struct {
	User     *models.User  `json:"user"`
	Expires  time.Time     `json:"expires"`
	Delivery notify.Result `json:"delivery"`
}

// InviteMember creates an account without a password plus an invitation
// token, then tries to deliver the invitation. Delivery failures are
// reported in the result only.
func (s *Service) InviteMember(ctx context.Context, in InviteInput) (*InviteResult, error) {
	in.Email = auth.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = models.RoleMember
	}

	var (
		user   models.User
		issued *Issued
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUserExists
		}

		user = models.User{
			Email: in.Email,
			Name:  in.Name,
			Phone: strings.TrimSpace(in.Phone),
			Role:  in.Role,
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUserExists
			}
			return err
		}

		var err error
		issued, err = s.Store.WithTx(tx).Issue(ctx, in.Email, 0)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("member invited", "user_id", user.ID, "role", user.Role)

	delivery := s.delivery.Deliver(ctx, notify.Invitation{
		Email:   issued.Email,
		Name:    user.Name,
		Token:   issued.Token,
		Expires: issued.Expires,
	})

	return &InviteResult{
		User:     &user,
		Expires:  issued.Expires,
		Delivery: delivery,
	}, nil
}
