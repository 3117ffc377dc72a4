package database_test

import (
	"context"
	"testing"

	"github.com/hugh/poolparty/internal/database"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func TestMigrate_OutsideSourceTree(t *testing.T) {
	// Binaries run from the repo root or a deploy directory, never from
	// the migrations package.
	t.Chdir(t.TempDir())

	db := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, database.Migrate(ctx, db))

	for _, model := range models.All() {
		assert.True(t, db.Migrator().HasTable(model), "missing table for %T", model)
	}

	// A second run finds nothing pending.
	require.NoError(t, database.Migrate(ctx, db))

	var applied int64
	require.NoError(t, db.Table("goose_db_version").Where("version_id = ?", 1).Count(&applied).Error)
	assert.Equal(t, int64(1), applied)
}

func TestMigrate_PendingReferralIndex(t *testing.T) {
	t.Chdir(t.TempDir())

	db := openSQLite(t)
	require.NoError(t, database.Migrate(context.Background(), db))

	referrer := models.User{Email: "member@example.com", Name: "Member", Role: models.RoleMember}
	require.NoError(t, db.Create(&referrer).Error)

	pending := func() *models.Referral {
		return &models.Referral{
			ReferrerID:   referrer.ID,
			Email:        "candidate@example.com",
			Name:         "Candidate",
			HowDoYouKnow: "Work",
			HowLong:      "2 years",
			Status:       models.ReferralStatusPending,
		}
	}

	require.NoError(t, db.Create(pending()).Error)
	err := db.Create(pending()).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestMigrate_NilDB(t *testing.T) {
	assert.Error(t, database.Migrate(context.Background(), nil))
}
