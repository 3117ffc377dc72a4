package tasks

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/poolparty/internal/events"
	"github.com/hugh/poolparty/internal/notify"
	"github.com/hugh/poolparty/pkg/crypto"
)

var ErrNoQueue = errors.New("task queue not configured")

// Dispatcher moves notification work onto the asynq queue. Without a client,
// with an ephemeral encryptor the worker could not open, or when enqueueing
// fails, invitations go out inline through fallback.
type Dispatcher struct {
	client    *asynq.Client
	encryptor *crypto.Encryptor
	fallback  notify.InvitationDeliverer
	logger    *slog.Logger
}

func NewDispatcher(client *asynq.Client, encryptor *crypto.Encryptor, fallback notify.InvitationDeliverer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:    client,
		encryptor: encryptor,
		fallback:  fallback,
		logger:    logger,
	}
}

func (d *Dispatcher) Deliver(ctx context.Context, inv notify.Invitation) notify.Result {
	if d.client == nil || d.encryptor.Ephemeral() {
		return d.fallback.Deliver(ctx, inv)
	}

	task, err := NewInvitationTask(d.encryptor, inv)
	if err == nil {
		_, err = d.client.EnqueueContext(ctx, task)
	}
	if err != nil {
		d.logger.Warn("enqueue invitation failed, sending inline", "email", inv.Email, "error", err)
		return d.fallback.Deliver(ctx, inv)
	}

	return notify.Result{
		Target:  notify.Target{Channel: notify.ChannelEmail, Address: inv.Email, Name: inv.Name},
		Success: true,
		Queued:  true,
	}
}

func (d *Dispatcher) EnqueueEventBroadcast(ctx context.Context, eventID uuid.UUID) error {
	if d.client == nil {
		return ErrNoQueue
	}
	task, err := NewEventBroadcastTask(eventID)
	if err != nil {
		return err
	}
	_, err = d.client.EnqueueContext(ctx, task)
	return err
}

var (
	_ notify.InvitationDeliverer = (*Dispatcher)(nil)
	_ events.Enqueuer            = (*Dispatcher)(nil)
)
