package business_test

import (
	"context"
	"testing"

	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/business"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/testutil"
	"github.com/hugh/poolparty/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	tc := testutil.NewTestContext(t)
	svc := business.NewService(tc.DB, tc.Logger)
	ctx := context.Background()
	me := testutil.ClaimsFor(tc.Member)

	b, err := svc.Create(ctx, me, business.CreateInput{
		Name: " Falafel Stand ", Category: "food", Email: "Shop@Example.com",
		Website: "https://falafel.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Falafel Stand", b.Name)
	assert.Equal(t, "shop@example.com", b.Email)
	assert.Equal(t, tc.Member.ID, b.OwnerID)
	assert.False(t, b.IsRecommended)

	_, err = svc.Create(ctx, me, business.CreateInput{Website: "nope", Email: "bad"})
	var verr validation.Errors
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr, "name")
	assert.Contains(t, verr, "category")
	assert.Contains(t, verr, "website")
	assert.Contains(t, verr, "email")

	_, err = svc.Create(ctx, nil, business.CreateInput{Name: "x", Category: "y"})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestList(t *testing.T) {
	tc := testutil.NewTestContext(t)
	svc := business.NewService(tc.DB, tc.Logger)
	ctx := context.Background()

	for _, b := range []models.Business{
		{Name: "Bakery", Category: "food", OwnerID: tc.Member.ID},
		{Name: "Zumba", Category: "fitness", Description: "Dance classes", OwnerID: tc.Member.ID, IsRecommended: true},
		{Name: "Apps Inc", Category: "tech", Description: "We build apps", OwnerID: tc.Admin.ID},
	} {
		require.NoError(t, tc.DB.Create(&b).Error)
	}

	all, err := svc.List(ctx, business.Filter{Category: "all"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Zumba", all[0].Name)
	assert.Equal(t, "Apps Inc", all[1].Name)
	require.NotNil(t, all[0].Owner)
	assert.Empty(t, all[0].Owner.Email)

	food, err := svc.List(ctx, business.Filter{Category: "food"})
	require.NoError(t, err)
	require.Len(t, food, 1)

	dance, err := svc.List(ctx, business.Filter{Query: "DANCE"})
	require.NoError(t, err)
	require.Len(t, dance, 1)
	assert.Equal(t, "Zumba", dance[0].Name)
}
