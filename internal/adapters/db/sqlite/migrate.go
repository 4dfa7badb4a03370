package sqlite

import (
	"context"
	"embed"
	"io/fs"
	"log"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies pending schema migrations and returns the resulting
// schema version.
func RunMigrations(ctx context.Context, db *gorm.DB) (int64, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return 0, err
	}
	dir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return 0, err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, dir)
	if err != nil {
		return 0, err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return 0, err
	}
	for _, res := range results {
		log.Printf("migration %d applied in %s", res.Source.Version, res.Duration)
	}
	return provider.GetDBVersion(ctx)
}
