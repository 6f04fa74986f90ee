package migration

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

const pgDriverName = "postgres"

//go:embed sql/*.sql
var migrations embed.FS

// Migrate applies every pending migration. Running it against an up to date
// schema is not an error.
func Migrate(dsn string) error {
	db, err := sql.Open(pgDriverName, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	source, err := iofs.New(migrations, "sql")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, pgDriverName, driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
