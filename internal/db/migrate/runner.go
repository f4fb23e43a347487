// Package migrate applies the embedded schema migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"crm-auth-service/internal/db"

	gomigrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrNoChange reports that the schema is already at the requested version.
var ErrNoChange = gomigrate.ErrNoChange

// Up applies every pending migration. Returns ErrNoChange when the schema
// is already at the latest version.
func Up(dsn string) error {
	return run(dsn, func(m *gomigrate.Migrate) error { return m.Up() })
}

// Down rolls back every applied migration. Returns ErrNoChange when there
// is nothing to roll back.
func Down(dsn string) error {
	return run(dsn, func(m *gomigrate.Migrate) error { return m.Down() })
}

func run(dsn string, step func(*gomigrate.Migrate) error) error {
	if dsn == "" {
		return errors.New("migrate: DATABASE_URL is not set")
	}
	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate: embedded source: %w", err)
	}
	m, err := gomigrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	return step(m)
}
