package sessionstore

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osa030/xflow/internal/app/preferences"
	"github.com/osa030/xflow/internal/domain/workout"
)

// PostgresStore keeps workout requests in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, ttl time.Duration) (*PostgresStore, error) {
	if err := runMigrations("postgres", migrateURL(dsn)); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return &PostgresStore{pool: pool, ttl: ttl, now: time.Now}, nil
}

// migrateURL maps a postgres DSN onto the pgx/v5 migration driver scheme.
func migrateURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

func (s *PostgresStore) Save(ctx context.Context, id string, req workout.Request) error {
	if id == "" {
		return errors.New("session id is required")
	}

	now := s.now()
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM workout_preferences WHERE expires_at > 0 AND expires_at <= $1`,
		now.UnixMilli(),
	); err != nil {
		return errors.Wrap(err, "failed to purge expired preferences")
	}

	genres := req.Genres
	if genres == nil {
		genres = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workout_preferences (id, age, total_minutes, distance, genres, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   age = EXCLUDED.age,
		   total_minutes = EXCLUDED.total_minutes,
		   distance = EXCLUDED.distance,
		   genres = EXCLUDED.genres,
		   expires_at = EXCLUDED.expires_at`,
		id, req.Age, req.TotalMinutes, req.Distance, genres, expiresAt(now, s.ttl),
	)
	if err != nil {
		return errors.Wrap(err, "failed to save preferences")
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (workout.Request, error) {
	var (
		req     workout.Request
		expires int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT age, total_minutes, distance, genres, expires_at FROM workout_preferences WHERE id = $1`,
		id,
	).Scan(&req.Age, &req.TotalMinutes, &req.Distance, &req.Genres, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return workout.Request{}, errors.Wrapf(preferences.ErrMissingSessionState, "session %q", id)
	}
	if err != nil {
		return workout.Request{}, errors.Wrap(err, "failed to load preferences")
	}
	if isExpired(expires, s.now()) {
		return workout.Request{}, errors.Wrapf(preferences.ErrMissingSessionState, "session %q expired", id)
	}
	return req, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM workout_preferences WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "failed to delete preferences")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
