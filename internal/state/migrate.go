package state

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

var errNotOpen = errors.New("database not opened")

// newProvider returns a goose provider over the embedded history schema.
func (s *SQLiteStore) newProvider() (*goose.Provider, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return p, nil
}

// Migrate applies pending history schema migrations.
func (s *SQLiteStore) Migrate() error {
	p, err := s.newProvider()
	if err != nil {
		return err
	}
	results, err := p.Up(context.Background())
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, res := range results {
		s.logger.Debug("applied migration",
			slog.Int64("version", res.Source.Version),
			slog.Duration("took", res.Duration))
	}
	return nil
}

// GetMigrationVersion returns the schema version recorded in the database.
func (s *SQLiteStore) GetMigrationVersion() (int64, error) {
	p, err := s.newProvider()
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(context.Background())
}
