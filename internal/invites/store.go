package invites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/pkg/crypto"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenBytes is the entropy of an invitation token; it is stored hex encoded.
const TokenBytes = 32

const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrInvalidToken     = errors.New("invalid or expired invitation token")
	ErrAlreadyActivated = errors.New("password already set, sign in instead")
	ErrUserNotFound     = errors.New("user not found")
)

// Store manages the invitation token lifecycle: issue, verify, redeem once.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		db:  db,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a Store bound to tx so tokens can be issued inside a
// caller's transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	cp := *s
	cp.db = tx
	return &cp
}

// Issued is a freshly minted or verified token.
type Issued struct {
	Email   string    `json:"email"`
	Token   string    `json:"-"`
	Expires time.Time `json:"expires"`
}

// Issue stores a new token for email valid for ttl (the store default when
// ttl is zero). Earlier tokens for the same email stay valid.
func (s *Store) Issue(ctx context.Context, email string, ttl time.Duration) (*Issued, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}

	token, err := crypto.RandomHex(TokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	row := models.InvitationToken{
		Token:      token,
		Identifier: auth.NormalizeEmail(email),
		Expires:    s.now().Add(ttl),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("storing token: %w", err)
	}

	return &Issued{Email: row.Identifier, Token: token, Expires: row.Expires}, nil
}

// Verify returns the email and expiry bound to token. An expired token is
// deleted on sight.
func (s *Store) Verify(ctx context.Context, token string) (*Issued, error) {
	row, err := s.load(s.db.WithContext(ctx), token)
	if err != nil {
		return nil, err
	}

	if row.Expired(s.now()) {
		if err := s.delete(s.db.WithContext(ctx), token); err != nil {
			return nil, err
		}
		return nil, ErrInvalidToken
	}

	return &Issued{Email: row.Identifier, Token: row.Token, Expires: row.Expires}, nil
}

// Invitation is what the password-setup page shows before redemption.
type Invitation struct {
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	Expires time.Time `json:"expires"`
}

// Inspect verifies token and resolves the invited user. A token whose user
// already has a password is superseded and deleted.
func (s *Store) Inspect(ctx context.Context, token string) (*Invitation, error) {
	issued, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", issued.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if user.Activated() {
		if err := s.delete(s.db.WithContext(ctx), token); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyActivated
	}

	return &Invitation{Email: user.Email, Name: user.Name, Expires: issued.Expires}, nil
}

// Redeem sets the invited user's password and consumes token. Exactly one
// concurrent redemption of a token can succeed; the rest get ErrInvalidToken.
func (s *Store) Redeem(ctx context.Context, token, password string) (*models.User, error) {
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	var (
		user models.User
		// set when the token must be deleted and the caller still refused
		refused error
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.load(tx.Clauses(clause.Locking{Strength: "UPDATE"}), token)
		if err != nil {
			return err
		}

		now := s.now()
		if row.Expired(now) {
			refused = ErrInvalidToken
			return s.delete(tx, token)
		}

		if err := tx.Where("email = ?", row.Identifier).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if user.Activated() {
			refused = ErrAlreadyActivated
			return s.delete(tx, token)
		}

		res := tx.Model(&models.User{}).
			Where("id = ? AND (password_hash IS NULL OR password_hash = '')", user.ID).
			Updates(map[string]interface{}{
				"password_hash":     hash,
				"email_verified_at": now,
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			refused = ErrAlreadyActivated
			return s.delete(tx, token)
		}

		res = tx.Where("token = ?", token).Delete(&models.InvitationToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrInvalidToken
		}

		user.PasswordHash = &hash
		user.EmailVerifiedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if refused != nil {
		return nil, refused
	}

	return &user, nil
}

// PurgeExpired deletes every token past its expiry and reports how many.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires <= ?", s.now()).
		Delete(&models.InvitationToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("purging tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) load(db *gorm.DB, token string) (*models.InvitationToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	var row models.InvitationToken
	if err := db.Where("token = ?", token).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &row, nil
}

func (s *Store) delete(db *gorm.DB, token string) error {
	return db.Where("token = ?", token).Delete(&models.InvitationToken{}).Error
}
