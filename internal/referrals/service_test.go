package referrals_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/invites"
	"github.com/hugh/poolparty/internal/notify"
	"github.com/hugh/poolparty/internal/referrals"
	"github.com/hugh/poolparty/internal/testutil"
	"github.com/hugh/poolparty/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureDelivery struct {
	mu   sync.Mutex
	sent []notify.Invitation
	fail bool
}

func (c *captureDelivery) Deliver(ctx context.Context, inv notify.Invitation) notify.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, inv)
	res := notify.Result{Target: notify.Target{Channel: notify.ChannelEmail, Address: inv.Email}, Success: !c.fail}
	if c.fail {
		res.Error = "smtp unavailable"
	}
	return res
}

type fixture struct {
	tc       *testutil.TestSetup
	svc      *referrals.Service
	store    *invites.Store
	delivery *captureDelivery
	member   *auth.Claims
	admin    *auth.Claims
}

func newFixture(t *testing.T) *fixture {
	tc := testutil.NewTestContext(t)
	store := invites.NewStore(tc.DB, invites.DefaultTTL)
	delivery := &captureDelivery{}

	return &fixture{
		tc:       tc,
		svc:      referrals.NewService(tc.DB, store, delivery, tc.Logger),
		store:    store,
		delivery: delivery,
		member:   &auth.Claims{UserID: tc.Member.ID, Email: tc.Member.Email, Role: models.RoleMember},
		admin:    &auth.Claims{UserID: tc.Admin.ID, Email: tc.Admin.Email, Role: models.RoleAdmin},
	}
}

func validInput(email string) referrals.SubmitInput {
	age := 31
	return referrals.SubmitInput{
		Email:        email,
		Name:         "Dana Levi",
		Phone:        "050-0000000",
		Age:          &age,
		City:         "Haifa",
		Occupation:   "Architect",
		InstagramURL: "https://instagram.com/dana",
		Notes:        "Great swimmer",
		HowDoYouKnow: "University",
		HowLong:      "5 years",
	}
}

func TestService_Submit(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	ref, err := f.svc.Submit(ctx, f.member, validInput("  Dana@Example.com"))
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusPending, ref.Status)
	assert.Equal(t, "dana@example.com", ref.Email)
	assert.Equal(t, f.member.UserID, ref.ReferrerID)
	assert.Empty(t, f.delivery.sent)

	t.Run("duplicate pending referral", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, f.member, validInput("dana@example.com"))
		assert.ErrorIs(t, err, referrals.ErrPendingExists)
	})

	t.Run("existing user", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, f.member, validInput(f.tc.Admin.Email))
		assert.ErrorIs(t, err, referrals.ErrUserExists)
	})

	t.Run("admins cannot submit", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, f.admin, validInput("other@example.com"))
		assert.ErrorIs(t, err, auth.ErrForbidden)
	})

	t.Run("validation", func(t *testing.T) {
		in := validInput("not-an-email")
		in.HowLong = ""
		in.LinkedinURL = "linkedin"
		bad := 130
		in.Age = &bad

		_, err := f.svc.Submit(ctx, f.member, in)
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Contains(t, verrs, "email")
		assert.Contains(t, verrs, "how_long")
		assert.Contains(t, verrs, "linkedin_url")
		assert.Contains(t, verrs, "age")
	})
}

func TestService_ApproveRedeemAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	ref, err := f.svc.Submit(ctx, f.member, validInput("a@x.com"))
	require.NoError(t, err)

	decision, err := f.svc.Decide(ctx, f.admin, ref.ID, referrals.DecideInput{Action: referrals.ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusApproved, decision.Referral.Status)
	require.NotNil(t, decision.Referral.ReviewedByID)
	assert.Equal(t, f.admin.UserID, *decision.Referral.ReviewedByID)
	assert.NotNil(t, decision.Referral.ReviewedAt)

	require.NotNil(t, decision.User)
	assert.Equal(t, "a@x.com", decision.User.Email)
	assert.Equal(t, models.RoleMember, decision.User.Role)
	assert.False(t, decision.User.Activated())
	assert.Equal(t, "Haifa", decision.User.City)
	assert.Equal(t, "Great swimmer", decision.User.Description)
	require.NotNil(t, decision.Delivery)
	assert.True(t, decision.Delivery.Success)

	require.Len(t, f.delivery.sent, 1)
	token := f.delivery.sent[0].Token

	authSvc := auth.NewService(f.tc.DB, f.tc.JWTService)

	_, err = authSvc.Authenticate(ctx, "a@x.com", "secret123")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.store.Redeem(ctx, token, "secret123")
	require.NoError(t, err)

	resp, err := authSvc.Authenticate(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, decision.User.ID, resp.User.ID)

	_, err = f.store.Redeem(ctx, token, "secret123")
	assert.ErrorIs(t, err, invites.ErrInvalidToken)
}

func TestService_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	ref, err := f.svc.Submit(ctx, f.member, validInput("b@x.com"))
	require.NoError(t, err)

	decision, err := f.svc.Decide(ctx, f.admin, ref.ID, referrals.DecideInput{
		Action:          referrals.ActionReject,
		RejectionReason: "not a fit",
	})
	require.NoError(t, err)
	assert.Nil(t, decision.User)
	assert.Nil(t, decision.Delivery)

	stored, err := f.svc.Get(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, "not a fit", *stored.RejectionReason)
	require.NotNil(t, stored.ReviewedBy)
	assert.Equal(t, f.admin.UserID, stored.ReviewedBy.ID)

	var users int64
	require.NoError(t, f.tc.DB.Model(&models.User{}).Where("email = ?", "b@x.com").Count(&users).Error)
	assert.Zero(t, users)

	t.Run("a new referral can follow a rejection", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, f.member, validInput("b@x.com"))
		assert.NoError(t, err)
	})
}

func TestService_DecideTwice(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	ref, err := f.svc.Submit(ctx, f.member, validInput("c@x.com"))
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, f.admin, ref.ID, referrals.DecideInput{Action: referrals.ActionApprove})
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, f.admin, ref.ID, referrals.DecideInput{Action: referrals.ActionReject})
	assert.ErrorIs(t, err, referrals.ErrAlreadyProcessed)

	_, err = f.svc.Decide(ctx, f.admin, ref.ID, referrals.DecideInput{Action: referrals.ActionApprove})
	assert.ErrorIs(t, err, referrals.ErrAlreadyProcessed)

	var users int64
	require.NoError(t, f.tc.DB.Model(&models.User{}).Where("email = ?", "c@x.com").Count(&users).Error)
	assert.Equal(t, int64(1), users)
}

func TestService_ConcurrentDecide(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	ref, err := f.svc.Submit(ctx, f.member, validInput("race@x.com"))
	require.NoError(t, err)

	actions := []referrals.Action{
		referrals.ActionApprove, referrals.ActionApprove,
		referrals.ActionReject, referrals.ActionApprove,
	}
	errs := make([]error, len(actions))

	var wg sync.WaitGroup
	for i, action := range actions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Decide(ctx, f.admin, ref.ID, referrals.DecideInput{Action: action})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, referrals.ErrAlreadyProcessed)
	}
	assert.Equal(t, 1, succeeded)

	var users int64
	require.NoError(t, f.tc.DB.Model(&models.User{}).Where("email = ?", "race@x.com").Count(&users).Error)
	assert.LessOrEqual(t, users, int64(1))
}

func TestService_ApproveWhenUserAppeared(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	ref, err := f.svc.Submit(ctx, f.member, validInput("late@x.com"))
	require.NoError(t, err)

	// An admin invited the same person directly in the meantime.
	testutil.CreatePendingUser(t, f.tc.DB, "late@x.com")

	_, err = f.svc.Decide(ctx, f.admin, ref.ID, referrals.DecideInput{Action: referrals.ActionApprove})
	assert.ErrorIs(t, err, referrals.ErrUserExists)

	stored, err := f.svc.Get(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusPending, stored.Status)
	assert.Nil(t, stored.ReviewedByID)
}

func TestService_ApproveSurvivesDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.delivery.fail = true
	ctx := testutil.TestContext(t)

	ref, err := f.svc.Submit(ctx, f.member, validInput("offline@x.com"))
	require.NoError(t, err)

	decision, err := f.svc.Decide(ctx, f.admin, ref.ID, referrals.DecideInput{Action: referrals.ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusApproved, decision.Referral.Status)
	require.NotNil(t, decision.Delivery)
	assert.False(t, decision.Delivery.Success)
	assert.Equal(t, "smtp unavailable", decision.Delivery.Error)
}

func TestService_DecideGuards(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	ref, err := f.svc.Submit(ctx, f.member, validInput("d@x.com"))
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, f.member, ref.ID, referrals.DecideInput{Action: referrals.ActionApprove})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = f.svc.Decide(ctx, f.admin, uuid.New(), referrals.DecideInput{Action: referrals.ActionApprove})
	assert.ErrorIs(t, err, referrals.ErrNotFound)

	_, err = f.svc.Decide(ctx, f.admin, ref.ID, referrals.DecideInput{Action: "maybe"})
	var verrs validation.Errors
	assert.True(t, errors.As(err, &verrs))
}

func TestService_List(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	r1, err := f.svc.Submit(ctx, f.member, validInput("e1@x.com"))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.member, validInput("e2@x.com"))
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, f.admin, r1.ID, referrals.DecideInput{Action: referrals.ActionReject})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	require.NotNil(t, all[0].Referrer)
	assert.Equal(t, f.member.UserID, all[0].Referrer.ID)

	pending, err := f.svc.List(ctx, models.ReferralStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e2@x.com", pending[0].Email)
}
