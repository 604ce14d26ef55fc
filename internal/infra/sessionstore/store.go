// Package sessionstore opens the preference hand-off store named by a DSN.
package sessionstore

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/xflow/internal/app/preferences"
)

// Open returns the store for dsn:
//
//	memory                  process-local map
//	sqlite://path/to/file   SQLite file
//	postgres://...          PostgreSQL
func Open(ctx context.Context, dsn string, ttl time.Duration) (preferences.Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		zlog.Info().Msg("using in-memory session store")
		return preferences.NewMemoryStore(ttl), nil

	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return nil, errors.New("sqlite dsn requires a file path")
		}
		zlog.Info().Msgf("using sqlite session store: path=%s", path)
		return OpenSQLite(ctx, path, ttl)

	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		zlog.Info().Msg("using postgres session store")
		return OpenPostgres(ctx, dsn, ttl)

	default:
		return nil, errors.Newf("unsupported session dsn: %s", redact(dsn))
	}
}

func expiresAt(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now.Add(ttl).UnixMilli()
}

func isExpired(expiresAt int64, now time.Time) bool {
	return expiresAt > 0 && now.UnixMilli() >= expiresAt
}

// redact hides everything after the scheme.
func redact(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "..."
	}
	return "..."
}
