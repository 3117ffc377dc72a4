package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/notify"
	"github.com/hugh/poolparty/internal/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("event not found")
	ErrNoTargets          = errors.New("event has no target groups")
	ErrAlreadyJoined      = errors.New("already joined this event")
	ErrShortCodeExhausted = errors.New("could not generate a unique short code")
)

// Enqueuer schedules an announcement for background delivery.
type Enqueuer interface {
	EnqueueEventBroadcast(ctx context.Context, eventID uuid.UUID) error
}

type Service struct {
	db       *gorm.DB
	notifier *notify.Notifier
	siteURL  string
	queue    Enqueuer
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(db *gorm.DB, notifier *notify.Notifier, siteURL string, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		notifier: notifier,
		siteURL:  strings.TrimRight(siteURL, "/"),
		logger:   logger,
		now:      time.Now,
	}
}

// WithQueue makes Create hand announcements to q instead of sending them
// inline. Inline sending is still used when enqueueing fails.
func (s *Service) WithQueue(q Enqueuer) *Service {
	s.queue = q
	return s
}

type CreateInput struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Category       string      `json:"category"`
	ImageURL       string      `json:"image_url"`
	Location       string      `json:"location"`
	StartsAt       *time.Time  `json:"starts_at"`
	EndsAt         *time.Time  `json:"ends_at"`
	TargetGroupIDs []uuid.UUID `json:"target_group_ids"`
}

func (in *CreateInput) Validate() error {
	errs := validation.Errors{}
	errs.Required("title", in.Title)
	errs.MaxLen("title", in.Title, 200)
	errs.Required("description", in.Description)
	errs.Required("category", in.Category)
	errs.OptionalURL("image_url", in.ImageURL)
	if in.StartsAt != nil && in.EndsAt != nil && !in.EndsAt.After(*in.StartsAt) {
		errs.Add("ends_at", "must be after starts_at")
	}
	return errs.Err()
}

// Announcement describes what happened to the announcement of a new event.
type Announcement struct {
	Queued  bool            `json:"queued"`
	Results []notify.Result `json:"results,omitempty"`
}

type CreateResult struct {
	Event        *models.Event `json:"event"`
	Announcement *Announcement `json:"announcement,omitempty"`
}

func (s *Service) Create(ctx context.Context, creator *auth.Claims, in CreateInput) (*CreateResult, error) {
	if err := auth.RequireRole(creator, models.RoleAdmin); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	groupIDs := dedupe(in.TargetGroupIDs)
	if err := s.checkGroups(ctx, groupIDs); err != nil {
		return nil, err
	}

	code, err := s.uniqueShortCode(ctx)
	if err != nil {
		return nil, err
	}

	event := models.Event{
		ShortCode:   code,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		ImageURL:    in.ImageURL,
		Location:    strings.TrimSpace(in.Location),
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		CreatedByID: creator.UserID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("creating event: %w", err)
		}
		for _, gid := range groupIDs {
			target := models.EventTarget{EventID: event.ID, GroupID: gid}
			if err := tx.Create(&target).Error; err != nil {
				return fmt.Errorf("creating target: %w", err)
			}
			event.Targets = append(event.Targets, target)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event created", "event_id", event.ID, "short_code", event.ShortCode, "targets", len(groupIDs))

	result := &CreateResult{Event: &event}
	if len(groupIDs) > 0 {
		result.Announcement = s.announce(ctx, event.ID)
	}
	return result, nil
}

func (s *Service) announce(ctx context.Context, eventID uuid.UUID) *Announcement {
	if s.queue != nil {
		err := s.queue.EnqueueEventBroadcast(ctx, eventID)
		if err == nil {
			return &Announcement{Queued: true}
		}
		s.logger.Warn("enqueue event broadcast failed, sending inline", "event_id", eventID, "error", err)
	}

	results, err := s.Broadcast(ctx, eventID)
	if err != nil {
		s.logger.Error("event broadcast failed", "event_id", eventID, "error", err)
	}
	return &Announcement{Results: results}
}

// Broadcast announces the event to each of its target groups and records
// the per-group outcome.
func (s *Service) Broadcast(ctx context.Context, eventID uuid.UUID) ([]notify.Result, error) {
	var event models.Event
	if err := s.db.WithContext(ctx).
		Preload("Targets.Group").
		Where("id = ?", eventID).
		First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(event.Targets) == 0 {
		return nil, ErrNoTargets
	}

	targets := make([]notify.Target, 0, len(event.Targets))
	for _, t := range event.Targets {
		if t.Group == nil {
			continue
		}
		target := notify.Target{Channel: notify.ChannelWhatsApp, Name: t.Group.Name, GroupID: &t.Group.ID}
		if t.Group.WaID != nil {
			target.Address = *t.Group.WaID
		}
		targets = append(targets, target)
	}

	results := s.notifier.Notify(ctx, targets, s.Message(&event))

	if err := s.logResults(ctx, event.ID, results); err != nil {
		s.logger.Warn("recording notification log failed", "event_id", event.ID, "error", err)
	}
	return results, nil
}

// Message renders the group announcement for an event.
func (s *Service) Message(e *models.Event) notify.Message {
	link := s.EventURL(e.ShortCode)
	return notify.Message{
		Subject:  "[Friday Pool Party] " + e.Title,
		Text:     fmt.Sprintf("[Friday Pool Party] %s - %s\n%s\nJoin: %s", e.Title, e.Category, e.Description, link),
		Link:     link,
		ImageURL: e.ImageURL,
	}
}

func (s *Service) EventURL(code string) string {
	return s.siteURL + "/events/" + code
}

func (s *Service) logResults(ctx context.Context, eventID uuid.UUID, results []notify.Result) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	ok, failed := notify.Summary(results)
	return s.db.WithContext(ctx).Create(&models.NotificationLog{
		Kind:      models.NotificationEventBroadcast,
		SubjectID: eventID,
		Succeeded: ok,
		Failed:    failed,
		Results:   datatypes.JSON(data),
	}).Error
}

// Notify re-sends the announcement of an existing event.
func (s *Service) Notify(ctx context.Context, caller *auth.Claims, code string) ([]notify.Result, error) {
	if err := auth.RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	event, err := s.byCode(s.db.WithContext(ctx), code)
	if err != nil {
		return nil, err
	}
	return s.Broadcast(ctx, event.ID)
}

// Summary is an event with its attendee count.
type Summary struct {
	models.Event
	AttendeeCount int64 `json:"attendee_count"`
}

// List returns events newest first, optionally limited to one category.
func (s *Service) List(ctx context.Context, category string) ([]Summary, error) {
	q := s.db.WithContext(ctx).
		Preload("CreatedBy", selectPublicUser).
		Order("created_at DESC")
	if category != "" && category != "all" {
		q = q.Where("category = ?", category)
	}

	var events []models.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}

	counts, err := s.attendeeCounts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, len(events))
	for i, e := range events {
		out[i] = Summary{Event: e, AttendeeCount: counts[e.ID]}
	}
	return out, nil
}

func (s *Service) attendeeCounts(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []struct {
		EventID uuid.UUID
		Count   int64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.EventJoin{}).
		Select("event_id, COUNT(*) AS count").
		Group("event_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		counts[r.EventID] = r.Count
	}
	return counts, nil
}

// Get loads an event with creator, targets and attendees. Ticket QR codes
// are only included for viewer's own join.
func (s *Service) Get(ctx context.Context, code string, viewer uuid.UUID) (*Summary, error) {
	if !ValidShortCode(code) {
		return nil, ErrNotFound
	}

	var event models.Event
	if err := s.db.WithContext(ctx).
		Preload("CreatedBy", selectPublicUser).
		Preload("Targets.Group").
		Preload("Joins.User", selectPublicUser).
		Where("short_code = ?", code).
		First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	for i := range event.Joins {
		if event.Joins[i].UserID != viewer {
			event.Joins[i].QRCode = ""
		}
	}

	return &Summary{Event: event, AttendeeCount: int64(len(event.Joins))}, nil
}

// Join registers the caller for an event and issues a QR ticket.
func (s *Service) Join(ctx context.Context, caller *auth.Claims, code string) (*models.EventJoin, error) {
	if err := auth.RequireRole(caller, models.RoleAdmin, models.RoleMember); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	event, err := s.byCode(db, code)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := db.Model(&models.EventJoin{}).
		Where("event_id = ? AND user_id = ?", event.ID, caller.UserID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrAlreadyJoined
	}

	qr, err := ticketQRCode(event.ID, caller.UserID, s.now())
	if err != nil {
		return nil, err
	}

	join := models.EventJoin{
		EventID: event.ID,
		UserID:  caller.UserID,
		QRCode:  qr,
	}
	if err := db.Create(&join).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyJoined
		}
		return nil, fmt.Errorf("creating join: %w", err)
	}

	s.logger.Info("event joined", "event_id", event.ID, "user_id", caller.UserID)
	return &join, nil
}

// Delete removes an event and everything hanging off it.
func (s *Service) Delete(ctx context.Context, caller *auth.Claims, code string) error {
	if err := auth.RequireRole(caller, models.RoleAdmin); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.byCode(tx, code)
		if err != nil {
			return err
		}
		return DeleteCascade(tx, event.ID)
	})
}

// DeleteCascade deletes events with their joins and targets inside tx.
// Gallery items survive with their event link cleared.
func DeleteCascade(tx *gorm.DB, eventIDs ...uuid.UUID) error {
	if len(eventIDs) == 0 {
		return nil
	}
	if err := tx.Where("event_id IN ?", eventIDs).Delete(&models.EventJoin{}).Error; err != nil {
		return err
	}
	if err := tx.Where("event_id IN ?", eventIDs).Delete(&models.EventTarget{}).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.GalleryItem{}).
		Where("event_id IN ?", eventIDs).
		Update("event_id", nil).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", eventIDs).Delete(&models.Event{}).Error
}

func (s *Service) byCode(db *gorm.DB, code string) (*models.Event, error) {
	if !ValidShortCode(code) {
		return nil, ErrNotFound
	}
	var event models.Event
	if err := db.Where("short_code = ?", code).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (s *Service) uniqueShortCode(ctx context.Context) (string, error) {
	for i := 0; i < maxShortCodeAttempts; i++ {
		code := generateShortCode()
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.Event{}).
			Where("short_code = ?", code).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", ErrShortCodeExhausted
}

func (s *Service) checkGroups(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id IN ?", ids).
		Count(&count).Error; err != nil {
		return err
	}
	if int(count) != len(ids) {
		return validation.Errors{"target_group_ids": "contains an unknown group"}
	}
	return nil
}

func selectPublicUser(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "image_url", "role", "created_at", "updated_at")
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
