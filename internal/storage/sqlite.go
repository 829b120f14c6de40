// Package storage persists decoded throws in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/srg/dartlink/pkg/dartboard"
)

// SQLiteStore implements the throw save/read contract on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs the
// schema migration.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open throw db: %w", err)
	}

	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate throw db: %w", err)
	}

	logger.WithField("path", dbPath).Info("Throw database ready")
	return &SQLiteStore{db: db, logger: logger}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dart_throws (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      TEXT NOT NULL,
			segment_code   INTEGER NOT NULL,
			segment_name   TEXT NOT NULL,
			target         INTEGER,
			multiplier     INTEGER,
			score          INTEGER,
			device_address TEXT NOT NULL,
			device_name    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_throws_timestamp ON dart_throws(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_throws_device ON dart_throws(device_address)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveThrow inserts one throw and returns its row id.
func (s *SQLiteStore) SaveThrow(t *dartboard.Throw) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO dart_throws
			(timestamp, segment_code, segment_name, target, multiplier, score, device_address, device_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.At.UTC().Format(time.RFC3339Nano),
		int(t.Code), t.Name,
		nullableInt(t.Target), nullableInt(t.Multiplier), nullableInt(t.Score),
		t.DeviceAddress, t.DeviceName,
	)
	if err != nil {
		return 0, fmt.Errorf("insert throw: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("throw id: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"id":      id,
		"segment": t.Name,
	}).Debug("Throw persisted")
	return id, nil
}

// RecentThrows returns the newest throws, most recent first.
func (s *SQLiteStore) RecentThrows(limit int) ([]*dartboard.Throw, error) {
	return s.query(
		`SELECT id, timestamp, segment_code, segment_name, target, multiplier, score, device_address, device_name
		 FROM dart_throws ORDER BY id DESC LIMIT ?`, limit)
}

// ThrowsByDevice returns the newest throws for one device address.
func (s *SQLiteStore) ThrowsByDevice(address string, limit int) ([]*dartboard.Throw, error) {
	return s.query(
		`SELECT id, timestamp, segment_code, segment_name, target, multiplier, score, device_address, device_name
		 FROM dart_throws WHERE device_address = ? ORDER BY id DESC LIMIT ?`, address, limit)
}

func (s *SQLiteStore) query(q string, args ...any) ([]*dartboard.Throw, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query throws: %w", err)
	}
	defer rows.Close()

	var throws []*dartboard.Throw
	for rows.Next() {
		t, err := scanThrow(rows)
		if err != nil {
			return nil, err
		}
		throws = append(throws, t)
	}
	return throws, rows.Err()
}

func scanThrow(rows *sql.Rows) (*dartboard.Throw, error) {
	var (
		t                         dartboard.Throw
		ts                        string
		code                      int
		target, multiplier, score sql.NullInt64
	)
	if err := rows.Scan(&t.ID, &ts, &code, &t.Name, &target, &multiplier, &score,
		&t.DeviceAddress, &t.DeviceName); err != nil {
		return nil, fmt.Errorf("scan throw: %w", err)
	}

	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("parse throw timestamp %q: %w", ts, err)
	}

	t.At = at
	t.Code = byte(code)
	t.Target = intFromNull(target)
	t.Multiplier = intFromNull(multiplier)
	t.Score = intFromNull(score)
	return &t, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
