package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/events"
	"github.com/hugh/poolparty/internal/invites"
	"github.com/hugh/poolparty/internal/notify"
	"github.com/hugh/poolparty/pkg/crypto"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Handler struct {
	db          *gorm.DB
	logger      *slog.Logger
	encryptor   *crypto.Encryptor
	invitations notify.InvitationDeliverer
	events      *events.Service
	tokens      *invites.Store
}

func NewHandler(
	db *gorm.DB,
	logger *slog.Logger,
	encryptor *crypto.Encryptor,
	invitations notify.InvitationDeliverer,
	eventService *events.Service,
	tokens *invites.Store,
) *Handler {
	return &Handler{
		db:          db,
		logger:      logger,
		encryptor:   encryptor,
		invitations: invitations,
		events:      eventService,
		tokens:      tokens,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeInvitation, h.HandleInvitation)
	mux.HandleFunc(TypeEventBroadcast, h.HandleEventBroadcast)
	mux.HandleFunc(TypeTokenPurge, h.HandleTokenPurge)
}

// HandleInvitation sends one invitation email. A failed send is returned so
// asynq retries it; a token that is gone by then is dropped.
func (h *Handler) HandleInvitation(ctx context.Context, t *asynq.Task) error {
	var inv notify.Invitation
	if err := h.encryptor.OpenJSON(t.Payload(), &inv); err != nil {
		return fmt.Errorf("open payload: %w: %w", err, asynq.SkipRetry)
	}

	if _, err := h.tokens.Verify(ctx, inv.Token); err != nil {
		if errors.Is(err, invites.ErrInvalidToken) {
			h.logger.Info("skipping invitation for spent token", "email", inv.Email)
			return nil
		}
		return fmt.Errorf("verify token: %w", err)
	}

	result := h.invitations.Deliver(ctx, inv)
	h.record(ctx, inv.Email, result)

	if !result.Success {
		return fmt.Errorf("delivering invitation to %s: %s", inv.Email, result.Error)
	}

	h.logger.Info("invitation delivered", "email", inv.Email)
	return nil
}

func (h *Handler) HandleEventBroadcast(ctx context.Context, t *asynq.Task) error {
	var payload EventBroadcastPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("starting event broadcast", "event_id", payload.EventID)

	results, err := h.events.Broadcast(ctx, payload.EventID)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) || errors.Is(err, events.ErrNoTargets) {
			return fmt.Errorf("broadcast %s: %w: %w", payload.EventID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("broadcast %s: %w", payload.EventID, err)
	}

	ok, failed := notify.Summary(results)
	h.logger.Info("completed event broadcast",
		"event_id", payload.EventID,
		"succeeded", ok,
		"failed", failed,
	)
	return nil
}

func (h *Handler) HandleTokenPurge(ctx context.Context, t *asynq.Task) error {
	n, err := h.tokens.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge expired tokens: %w", err)
	}
	h.logger.Info("purged expired invitation tokens", "count", n)
	return nil
}

func (h *Handler) record(ctx context.Context, email string, result notify.Result) {
	var user models.User
	if err := h.db.WithContext(ctx).Select("id").Where("email = ?", email).First(&user).Error; err != nil {
		return
	}

	data, err := json.Marshal([]notify.Result{result})
	if err != nil {
		return
	}
	ok, failed := notify.Summary([]notify.Result{result})
	if err := h.db.WithContext(ctx).Create(&models.NotificationLog{
		Kind:      models.NotificationInvitation,
		SubjectID: user.ID,
		Succeeded: ok,
		Failed:    failed,
		Results:   datatypes.JSON(data),
	}).Error; err != nil {
		h.logger.Warn("recording notification log failed", "email", email, "error", err)
	}
}
