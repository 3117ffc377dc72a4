package referrals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/invites"
	"github.com/hugh/poolparty/internal/notify"
	"github.com/hugh/poolparty/internal/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound         = errors.New("referral not found")
	ErrAlreadyProcessed = errors.New("referral has already been processed")
	ErrUserExists       = errors.New("a user with this email already exists")
	ErrPendingExists    = errors.New("a pending referral for this email already exists")
)

var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "referral_decisions_total",
		Help: "Referral decisions by action and outcome.",
	},
	[]string{"action", "outcome"},
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

type Service struct {
	db       *gorm.DB
	invites  *invites.Store
	delivery notify.InvitationDeliverer
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(db *gorm.DB, store *invites.Store, delivery notify.InvitationDeliverer, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		invites:  store,
		delivery: delivery,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SubmitInput struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Age          *int   `json:"age"`
	City         string `json:"city"`
	Occupation   string `json:"occupation"`
	LinkedinURL  string `json:"linkedin_url"`
	InstagramURL string `json:"instagram_url"`
	Hobbies      string `json:"hobbies"`
	Interests    string `json:"interests"`
	Notes        string `json:"notes"`
	HowDoYouKnow string `json:"how_do_you_know"`
	HowLong      string `json:"how_long"`
}

func (in *SubmitInput) normalize() {
	in.Email = auth.NormalizeEmail(in.Email)
	for _, f := range []*string{
		&in.Name, &in.Phone, &in.City, &in.Occupation, &in.LinkedinURL, &in.InstagramURL,
		&in.Hobbies, &in.Interests, &in.Notes, &in.HowDoYouKnow, &in.HowLong,
	} {
		*f = validation.SanitizeString(strings.TrimSpace(*f))
	}
}

func (in *SubmitInput) Validate() error {
	errs := validation.Errors{}
	errs.Required("email", in.Email)
	errs.Email("email", in.Email)
	errs.Required("name", in.Name)
	errs.Required("how_do_you_know", in.HowDoYouKnow)
	errs.Required("how_long", in.HowLong)
	errs.OptionalURL("linkedin_url", in.LinkedinURL)
	errs.OptionalURL("instagram_url", in.InstagramURL)
	if in.Age != nil && (*in.Age < 0 || *in.Age > 120) {
		errs.Add("age", "must be between 0 and 120")
	}
	errs.MaxLen("notes", in.Notes, 2000)
	return errs.Err()
}

// Submit records a PENDING referral on behalf of a member.
func (s *Service) Submit(ctx context.Context, referrer *auth.Claims, in SubmitInput) (*models.Referral, error) {
	if err := auth.RequireRole(referrer, models.RoleMember); err != nil {
		return nil, err
	}

	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	if err := db.Model(&models.Referral{}).
		Where("email = ? AND status = ?", in.Email, models.ReferralStatusPending).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrPendingExists
	}

	ref := models.Referral{
		Email:        in.Email,
		Name:         in.Name,
		Phone:        in.Phone,
		Age:          in.Age,
		City:         in.City,
		Occupation:   in.Occupation,
		LinkedinURL:  in.LinkedinURL,
		InstagramURL: in.InstagramURL,
		Hobbies:      in.Hobbies,
		Interests:    in.Interests,
		Notes:        in.Notes,
		HowDoYouKnow: in.HowDoYouKnow,
		HowLong:      in.HowLong,
		Status:       models.ReferralStatusPending,
		ReferrerID:   referrer.UserID,
	}
	if err := db.Create(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrPendingExists
		}
		return nil, fmt.Errorf("creating referral: %w", err)
	}

	s.logger.Info("referral submitted", "referral_id", ref.ID, "referrer_id", referrer.UserID)
	return &ref, nil
}

type DecideInput struct {
	Action          Action `json:"action"`
	RejectionReason string `json:"rejection_reason"`
}

func (in *DecideInput) Validate() error {
	errs := validation.Errors{}
	if in.Action != ActionApprove && in.Action != ActionReject {
		errs.Add("action", "must be approve or reject")
	}
	errs.MaxLen("rejection_reason", in.RejectionReason, 1000)
	return errs.Err()
}

// Decision is the outcome of a successful Decide. User and Delivery are
// set on approval only.
type Decision struct {
	Referral *models.Referral `json:"referral"`
	User     *models.User     `json:"user,omitempty"`
	Delivery *notify.Result   `json:"delivery,omitempty"`
}

// Decide moves a PENDING referral to APPROVED or REJECTED exactly once.
// Approval creates the member account and an invitation token in the same
// transaction, then attempts delivery; a failed delivery does not undo it.
func (s *Service) Decide(ctx context.Context, reviewer *auth.Claims, id uuid.UUID, in DecideInput) (*Decision, error) {
	if err := auth.RequireRole(reviewer, models.RoleAdmin); err != nil {
		return nil, err
	}
	in.RejectionReason = strings.TrimSpace(in.RejectionReason)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var (
		ref    models.Referral
		user   *models.User
		issued *invites.Issued
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&ref).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if ref.Status != models.ReferralStatusPending {
			return ErrAlreadyProcessed
		}

		now := s.now()
		updates := map[string]interface{}{
			"reviewed_by_id": reviewer.UserID,
			"reviewed_at":    now,
			"updated_at":     now,
		}
		if in.Action == ActionApprove {
			updates["status"] = models.ReferralStatusApproved
		} else {
			updates["status"] = models.ReferralStatusRejected
			if in.RejectionReason != "" {
				updates["rejection_reason"] = in.RejectionReason
			}
		}

		res := tx.Model(&models.Referral{}).
			Where("id = ? AND status = ?", id, models.ReferralStatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}

		ref.Status = updates["status"].(models.ReferralStatus)
		ref.ReviewedByID = &reviewer.UserID
		ref.ReviewedAt = &now
		if in.RejectionReason != "" && in.Action == ActionReject {
			reason := in.RejectionReason
			ref.RejectionReason = &reason
		}

		if in.Action == ActionReject {
			return nil
		}

		var err error
		user, err = s.createMember(tx, &ref)
		if err != nil {
			return err
		}
		issued, err = s.invites.WithTx(tx).Issue(ctx, ref.Email, 0)
		return err
	})
	if err != nil {
		decisionsTotal.WithLabelValues(string(in.Action), outcome(err)).Inc()
		return nil, err
	}
	decisionsTotal.WithLabelValues(string(in.Action), "ok").Inc()

	s.logger.Info("referral decided",
		"referral_id", ref.ID,
		"action", in.Action,
		"reviewer_id", reviewer.UserID,
	)

	decision := &Decision{Referral: &ref, User: user}
	if issued != nil {
		res := s.delivery.Deliver(ctx, notify.Invitation{
			Email:   issued.Email,
			Name:    user.Name,
			Token:   issued.Token,
			Expires: issued.Expires,
		})
		if !res.Success {
			s.logger.Warn("invitation not delivered", "referral_id", ref.ID, "error", res.Error)
		}
		decision.Delivery = &res
	}

	return decision, nil
}

func (s *Service) createMember(tx *gorm.DB, ref *models.Referral) (*models.User, error) {
	var count int64
	if err := tx.Model(&models.User{}).Where("email = ?", ref.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	user := &models.User{
		Email:        ref.Email,
		Name:         ref.Name,
		Phone:        ref.Phone,
		City:         ref.City,
		Occupation:   ref.Occupation,
		InstagramURL: ref.InstagramURL,
		LinkedinURL:  ref.LinkedinURL,
		Description:  ref.Notes,
		Role:         models.RoleMember,
	}
	if err := tx.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating member: %w", err)
	}
	return user, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, ErrUserExists):
		return "user_exists"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// List returns referrals newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status models.ReferralStatus) ([]models.Referral, error) {
	q := s.db.WithContext(ctx).
		Preload("Referrer").
		Preload("ReviewedBy").
		Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var refs []models.Referral
	if err := q.Find(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Referral, error) {
	var ref models.Referral
	if err := s.db.WithContext(ctx).
		Preload("Referrer").
		Preload("ReviewedBy").
		Where("id = ?", id).
		First(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ref, nil
}
