package dedupe

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS dedup (
	key   TEXT PRIMARY KEY,
	until INTEGER NOT NULL
)`

// SQLite keeps keys with an expiry in a local database file.
type SQLite struct {
	db     *sql.DB
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func OpenSQLite(path string, ttl time.Duration, logger *zap.Logger) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create dedupe dir")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	logger.Info("Dedupe store opened", zap.String("backend", BackendSQLite), zap.String("path", path))
	return &SQLite{db: db, ttl: ttl, logger: logger, now: time.Now}, nil
}

func (s *SQLite) Seen(ctx context.Context, key string) (bool, error) {
	now := s.now()
	// The upsert only touches a row that is missing or expired, so zero
	// affected rows means a live duplicate.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO dedup(key, until) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET until = excluded.until WHERE dedup.until <= ?`,
		key, now.Add(s.ttl).UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return false, errors.Wrap(err, "record key")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n == 0, nil
}

func (s *SQLite) Prune(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dedup WHERE until <= ?`, s.now().UnixMilli())
	if err != nil {
		return errors.Wrap(err, "prune")
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Debug("Pruned dedupe keys", zap.Int64("count", n))
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
