package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/events"
	"github.com/hugh/poolparty/internal/invites"
	"github.com/hugh/poolparty/internal/notify"
	"github.com/hugh/poolparty/internal/testutil"
	"github.com/hugh/poolparty/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDelivery struct {
	mu   sync.Mutex
	sent []notify.Invitation
	fail bool
}

func (f *fakeDelivery) Deliver(ctx context.Context, inv notify.Invitation) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, inv)
	res := notify.Result{Target: notify.Target{Channel: notify.ChannelEmail, Address: inv.Email}, Success: !f.fail}
	if f.fail {
		res.Error = "connection refused"
	}
	return res
}

type handlerFixture struct {
	tc        *testutil.TestSetup
	handler   *Handler
	delivery  *fakeDelivery
	store     *invites.Store
	encryptor *crypto.Encryptor
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	tc := testutil.NewTestContext(t)
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	delivery := &fakeDelivery{}
	store := invites.NewStore(tc.DB, invites.DefaultTTL)
	notifier := notify.New(tc.Logger, time.Second, notify.NewLogSender(notify.ChannelWhatsApp, tc.Logger))
	eventService := events.NewService(tc.DB, notifier, "https://pool.example.com", tc.Logger)

	return &handlerFixture{
		tc:        tc,
		handler:   NewHandler(tc.DB, tc.Logger, enc, delivery, eventService, store),
		delivery:  delivery,
		store:     store,
		encryptor: enc,
	}
}

func (f *handlerFixture) invitationTask(t *testing.T, email string) (*asynq.Task, *invites.Issued) {
	t.Helper()
	testutil.CreatePendingUser(t, f.tc.DB, email)
	issued, err := f.store.Issue(context.Background(), email, 0)
	require.NoError(t, err)

	task, err := NewInvitationTask(f.encryptor, notify.Invitation{
		Email: issued.Email, Name: "Pending Member", Token: issued.Token, Expires: issued.Expires,
	})
	require.NoError(t, err)
	return task, issued
}

func TestNewInvitationTask_SealsPayload(t *testing.T) {
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	task, err := NewInvitationTask(enc, notify.Invitation{Email: "a@example.com", Token: "secret-token"})
	require.NoError(t, err)
	assert.Equal(t, TypeInvitation, task.Type())
	assert.NotContains(t, string(task.Payload()), "secret-token")

	var inv notify.Invitation
	require.NoError(t, enc.OpenJSON(task.Payload(), &inv))
	assert.Equal(t, "secret-token", inv.Token)
}

func TestHandleInvitation(t *testing.T) {
	f := newHandlerFixture(t)
	task, issued := f.invitationTask(t, "new@example.com")

	require.NoError(t, f.handler.HandleInvitation(context.Background(), task))
	require.Len(t, f.delivery.sent, 1)
	assert.Equal(t, issued.Token, f.delivery.sent[0].Token)

	var logs []models.NotificationLog
	require.NoError(t, f.tc.DB.Where("kind = ?", models.NotificationInvitation).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, 1, logs[0].Succeeded)
}

func TestHandleInvitation_FailureRetries(t *testing.T) {
	f := newHandlerFixture(t)
	f.delivery.fail = true
	task, _ := f.invitationTask(t, "new@example.com")

	err := f.handler.HandleInvitation(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHandleInvitation_SpentToken(t *testing.T) {
	f := newHandlerFixture(t)
	task, issued := f.invitationTask(t, "new@example.com")

	_, err := f.store.Redeem(context.Background(), issued.Token, "a-good-password")
	require.NoError(t, err)

	require.NoError(t, f.handler.HandleInvitation(context.Background(), task))
	assert.Empty(t, f.delivery.sent)
}

func TestHandleInvitation_BadPayload(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.handler.HandleInvitation(context.Background(), asynq.NewTask(TypeInvitation, []byte("garbage")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleEventBroadcast(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	wa := "1@g.us"
	group := testutil.CreateTestGroup(t, f.tc.DB, "Party", &wa)
	event := models.Event{ShortCode: "abc234", Title: "Swim", Description: "d", Category: "party", CreatedByID: f.tc.Admin.ID}
	require.NoError(t, f.tc.DB.Create(&event).Error)
	require.NoError(t, f.tc.DB.Create(&models.EventTarget{EventID: event.ID, GroupID: group.ID}).Error)

	task, err := NewEventBroadcastTask(event.ID)
	require.NoError(t, err)
	require.NoError(t, f.handler.HandleEventBroadcast(ctx, task))

	var count int64
	f.tc.DB.Model(&models.NotificationLog{}).Where("subject_id = ?", event.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	missing, err := NewEventBroadcastTask(uuid.New())
	require.NoError(t, err)
	err = f.handler.HandleEventBroadcast(ctx, missing)
	assert.ErrorIs(t, err, events.ErrNotFound)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = f.handler.HandleEventBroadcast(ctx, asynq.NewTask(TypeEventBroadcast, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleTokenPurge(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.tc.DB.Create(&models.InvitationToken{
		Token: "expired", Identifier: "old@example.com", Expires: time.Now().Add(-time.Hour),
	}).Error)
	live, err := f.store.Issue(ctx, "live@example.com", time.Hour)
	require.NoError(t, err)

	require.NoError(t, f.handler.HandleTokenPurge(ctx, NewTokenPurgeTask()))

	var count int64
	f.tc.DB.Model(&models.InvitationToken{}).Count(&count)
	assert.Equal(t, int64(1), count)
	_, err = f.store.Verify(ctx, live.Token)
	assert.NoError(t, err)
}

func TestDispatcher_WithoutClient(t *testing.T) {
	f := newHandlerFixture(t)
	d := NewDispatcher(nil, f.encryptor, f.delivery, f.tc.Logger)

	res := d.Deliver(context.Background(), notify.Invitation{Email: "x@example.com", Token: "t"})
	assert.True(t, res.Success)
	assert.False(t, res.Queued)
	assert.Len(t, f.delivery.sent, 1)

	assert.ErrorIs(t, d.EnqueueEventBroadcast(context.Background(), uuid.New()), ErrNoQueue)
}

func TestDispatcher_EphemeralKeySendsInline(t *testing.T) {
	f := newHandlerFixture(t)
	require.True(t, f.encryptor.Ephemeral())

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	// The client is never dialed: a worker could not open payloads sealed
	// with an in-process identity.
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:1"})
	defer client.Close()

	d := NewDispatcher(client, f.encryptor, f.delivery, logger)
	res := d.Deliver(context.Background(), notify.Invitation{Email: "x@example.com", Token: "t"})

	assert.True(t, res.Success)
	assert.False(t, res.Queued)
	assert.Len(t, f.delivery.sent, 1)
	assert.NotContains(t, logs.String(), "enqueue invitation failed")
}

func TestEventBroadcastPayload(t *testing.T) {
	id := uuid.New()
	task, err := NewEventBroadcastTask(id)
	require.NoError(t, err)
	assert.Equal(t, TypeEventBroadcast, task.Type())

	var payload EventBroadcastPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, id, payload.EventID)
}
