package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/poolparty/internal/notify"
	"github.com/hugh/poolparty/pkg/crypto"
	"github.com/hugh/poolparty/pkg/queue"
)

// Task type names
const (
	TypeInvitation     = "notify:invitation"
	TypeEventBroadcast = "notify:event_broadcast"
	TypeTokenPurge     = "invites:purge_expired"
)

const (
	invitationMaxRetry = 5
	broadcastMaxRetry  = 3
)

// NewInvitationTask seals inv with enc; the token never reaches redis in
// clear text.
func NewInvitationTask(enc *crypto.Encryptor, inv notify.Invitation) (*asynq.Task, error) {
	sealed, err := enc.SealJSON(inv)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{
		asynq.Queue(queue.QueueCritical),
		asynq.MaxRetry(invitationMaxRetry),
	}
	if !inv.Expires.IsZero() {
		opts = append(opts, asynq.Deadline(inv.Expires))
	}
	return asynq.NewTask(TypeInvitation, sealed, opts...), nil
}

// EventBroadcastPayload contains the data for an event announcement task
type EventBroadcastPayload struct {
	EventID uuid.UUID `json:"event_id"`
}

func NewEventBroadcastTask(eventID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(EventBroadcastPayload{EventID: eventID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEventBroadcast, data,
		asynq.Queue(queue.QueueDefault),
		asynq.MaxRetry(broadcastMaxRetry),
		asynq.Timeout(2*time.Minute),
	), nil
}

// NewTokenPurgeTask has no payload; the handler purges every expired token.
func NewTokenPurgeTask() *asynq.Task {
	return asynq.NewTask(TypeTokenPurge, nil, asynq.Queue(queue.QueueLow))
}
