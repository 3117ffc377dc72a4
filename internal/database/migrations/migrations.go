package migrations

import (
	"context"
	"embed"

	"gorm.io/gorm"
)

// FS holds the migration sources so goose can discover them without the
// source tree on disk.
//
//go:embed *.go
var FS embed.FS

type dbKey struct{}

// WithDB makes migrations run through db's dialect, bound to goose's transaction.
func WithDB(ctx context.Context, db *gorm.DB) context.Context {
	return context.WithValue(ctx, dbKey{}, db)
}
