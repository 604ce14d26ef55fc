package sessionstore

import (
	"embed"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	zlog "github.com/rs/zerolog/log"
)

//go:embed migrations
var migrations embed.FS

// runMigrations applies the embedded migrations in dir to the database at url.
// url uses golang-migrate driver schemes (sqlite://, pgx5://).
func runMigrations(dir, url string) error {
	src, err := iofs.New(migrations, "migrations/"+dir)
	if err != nil {
		return errors.Wrap(err, "failed to open embedded migrations")
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return errors.Wrap(err, "failed to create migrator")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "failed to run migrations")
	}

	version, dirty, err := m.Version()
	if err == nil {
		zlog.Info().Msgf("session store schema ready: dialect=%s version=%d dirty=%t", dir, version, dirty)
	}
	return nil
}
