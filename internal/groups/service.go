package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/validation"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("group not found")
	ErrNameInUse  = errors.New("a group with this name already exists")
	ErrUnknownIDs = errors.New("one or more groups do not exist")
	ErrNoUser     = errors.New("user not found")
)

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

type Input struct {
	Name string  `json:"name"`
	WaID *string `json:"wa_id"`
}

func (in *Input) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	if in.WaID != nil {
		id := strings.TrimSpace(*in.WaID)
		if id == "" {
			in.WaID = nil
		} else {
			in.WaID = &id
		}
	}
}

func (in *Input) Validate() error {
	errs := validation.Errors{}
	errs.Required("name", in.Name)
	errs.MaxLen("name", in.Name, 100)
	return errs.Err()
}

// Summary is a group with how many members and events reference it.
type Summary struct {
	models.Group
	MemberCount int64 `json:"member_count"`
	EventCount  int64 `json:"event_count"`
}

func (s *Service) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := s.db.WithContext(ctx).
		Model(&models.Group{}).
		Select(`groups.*,
			(SELECT COUNT(*) FROM group_memberships gm WHERE gm.group_id = groups.id) AS member_count,
			(SELECT COUNT(*) FROM event_targets et WHERE et.group_id = groups.id) AS event_count`).
		Order("groups.name ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*models.Group, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	group := models.Group{Name: in.Name, WaID: in.WaID}
	if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrNameInUse
		}
		return nil, fmt.Errorf("creating group: %w", err)
	}

	s.logger.Info("group created", "group_id", group.ID, "name", group.Name)
	return &group, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*models.Group, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var group models.Group
	if err := db.First(&group, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	group.Name = in.Name
	group.WaID = in.WaID
	if err := db.Save(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrNameInUse
		}
		return nil, fmt.Errorf("updating group: %w", err)
	}
	return &group, nil
}

// Delete removes a group along with its event targets and memberships.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&models.EventTarget{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.GroupMembership{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Group{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetMemberGroups replaces the user's memberships with groupIDs.
func (s *Service) SetMemberGroups(ctx context.Context, userID uuid.UUID, groupIDs []uuid.UUID) ([]uuid.UUID, error) {
	ids := unique(groupIDs)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&users).Error; err != nil {
			return err
		}
		if users == 0 {
			return ErrNoUser
		}

		if len(ids) > 0 {
			var found int64
			if err := tx.Model(&models.Group{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
				return err
			}
			if int(found) != len(ids) {
				return ErrUnknownIDs
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.GroupMembership{}).Error; err != nil {
			return err
		}
		for _, gid := range ids {
			if err := tx.Create(&models.GroupMembership{GroupID: gid, UserID: userID}).Error; err != nil {
				return fmt.Errorf("adding membership: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MemberGroups returns the groups the user belongs to, by name.
func (s *Service) MemberGroups(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.WithContext(ctx).
		Joins("JOIN group_memberships gm ON gm.group_id = groups.id").
		Where("gm.user_id = ?", userID).
		Order("groups.name ASC").
		Find(&groups).Error
	return groups, err
}

func unique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
