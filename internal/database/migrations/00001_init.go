package migrations

import (
	"context"
	"database/sql"

	"github.com/hugh/poolparty/internal/database/models"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

// openTx returns a gorm handle whose statements run inside tx. The handle
// passed through WithDB decides the dialect; postgres is the default.
func openTx(ctx context.Context, tx *sql.Tx) (*gorm.DB, error) {
	if db, ok := ctx.Value(dbKey{}).(*gorm.DB); ok {
		session := db.Session(&gorm.Session{
			NewDB:   true,
			Context: ctx,
			Logger:  logger.Default.LogMode(logger.Silent),
		})
		session.Statement.ConnPool = tx
		return session, nil
	}
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(ctx, tx)
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return err
	}

	// SQLite cannot add constraints to existing tables.
	if gormDB.Dialector.Name() != "postgres" {
		return nil
	}

	// Enum-like columns get CHECK constraints so a bad write fails in the store too.
	stmts := []string{
		`ALTER TABLE users ADD CONSTRAINT chk_users_role CHECK (role IN ('ADMIN', 'MEMBER'))`,
		`ALTER TABLE referrals ADD CONSTRAINT chk_referrals_status CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED'))`,
	}
	for _, stmt := range stmts {
		if err := gormDB.WithContext(ctx).Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(ctx, tx)
	if err != nil {
		return err
	}

	all := models.All()
	reversed := make([]interface{}, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		reversed = append(reversed, all[i])
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(reversed...)
}
