package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"github.com/osa030/xflow/internal/app/preferences"
	"github.com/osa030/xflow/internal/domain/workout"
)

// SQLiteStore keeps workout requests in a SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string, ttl time.Duration) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	if err := runMigrations("sqlite", "sqlite://"+path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite database")
	}
	// One writer at a time avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping sqlite database")
	}

	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, id string, req workout.Request) error {
	if id == "" {
		return errors.New("session id is required")
	}
	genres, err := json.Marshal(req.Genres)
	if err != nil {
		return errors.Wrap(err, "failed to encode genres")
	}

	now := s.now()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM workout_preferences WHERE expires_at > 0 AND expires_at <= ?`,
		now.UnixMilli(),
	); err != nil {
		return errors.Wrap(err, "failed to purge expired preferences")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO workout_preferences (id, age, total_minutes, distance, genres, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, req.Age, req.TotalMinutes, req.Distance, string(genres), expiresAt(now, s.ttl),
	)
	if err != nil {
		return errors.Wrap(err, "failed to save preferences")
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (workout.Request, error) {
	var (
		req     workout.Request
		genres  string
		expires int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT age, total_minutes, distance, genres, expires_at FROM workout_preferences WHERE id = ?`,
		id,
	).Scan(&req.Age, &req.TotalMinutes, &req.Distance, &genres, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return workout.Request{}, errors.Wrapf(preferences.ErrMissingSessionState, "session %q", id)
	}
	if err != nil {
		return workout.Request{}, errors.Wrap(err, "failed to load preferences")
	}
	if isExpired(expires, s.now()) {
		return workout.Request{}, errors.Wrapf(preferences.ErrMissingSessionState, "session %q expired", id)
	}
	if err := json.Unmarshal([]byte(genres), &req.Genres); err != nil {
		return workout.Request{}, errors.Wrap(err, "failed to decode genres")
	}
	return req, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workout_preferences WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete preferences")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
