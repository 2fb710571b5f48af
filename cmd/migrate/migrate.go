package migrate

import (
	"io"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/mutual-network/escrow-indexer/internal/config"
)

const (
	escrowMigrationSource = "modules/escrow/database/postgresql/migrations"
	escrowMigrationTable  = "escrow_schema_migrations"
)

func cloneURLWithQuery(u *url.URL, newQuery url.Values) *url.URL {
	clone := *u
	query := clone.Query()
	for key, values := range newQuery {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	clone.RawQuery = query.Encode()
	return &clone
}

var supportedDrivers = map[string]struct{}{
	"postgres":   {},
	"postgresql": {},
}

// parseDatabaseURL falls back to the escrow postgres configuration when raw is empty.
func parseDatabaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		raw = config.Load().Modules.Escrow.Postgres.URLString()
	}
	databaseURL, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse database URL")
	}
	if _, ok := supportedDrivers[databaseURL.Scheme]; !ok {
		return nil, errors.Errorf("unsupported database driver: %s", databaseURL.Scheme)
	}
	return databaseURL, nil
}

// newMigrate opens the migration source of a module against its own migrations table.
func newMigrate(out io.Writer, module string, sourcePath string, databaseURL *url.URL, migrationTable string) (*migrate.Migrate, error) {
	newDatabaseURL := cloneURLWithQuery(databaseURL, url.Values{"x-migrations-table": {migrationTable}})
	m, err := migrate.New("file://"+sourcePath, newDatabaseURL.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Migrate instance")
	}
	m.Log = &moduleLogger{out: out, module: module}
	return m, nil
}
