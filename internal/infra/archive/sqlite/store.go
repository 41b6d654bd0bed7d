// Package sqlite provides a tick archive persisted to an embedded SQLite
// database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cladecore/internal/core"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ core.Archive = (*Store)(nil)

// Store appends ticks to a single SQLite table, one row per tick with the
// tabular snapshots stored as JSON blobs.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the archive database at path.
// An empty path defaults to cladecore.db in the working directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "cladecore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ticks (
		seq INTEGER PRIMARY KEY,
		time REAL NOT NULL,
		record BLOB NOT NULL,
		species BLOB NOT NULL,
		zones BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create ticks table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// SaveTick appends one tick. Sequence numbers already present are rejected
// with core.ErrDuplicateTick.
func (s *Store) SaveTick(ctx context.Context, tick core.Tick) error {
	record, species, zones, err := encodeSnapshots(tick)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ticks(seq,time,record,species,zones) VALUES(?,?,?,?,?) ON CONFLICT(seq) DO NOTHING`,
		tick.Seq, tick.Time, record, species, zones)
	if err != nil {
		return fmt.Errorf("insert tick %d: %w", tick.Seq, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert tick %d: %w", tick.Seq, err)
	}
	if n == 0 {
		return fmt.Errorf("insert tick %d: %w", tick.Seq, core.ErrDuplicateTick)
	}
	return nil
}

// Ticks loads every archived tick ordered by sequence number.
func (s *Store) Ticks(ctx context.Context) ([]core.Tick, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, time, record, species, zones FROM ticks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("select ticks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []core.Tick
	for rows.Next() {
		var tick core.Tick
		var record, species, zones []byte
		if err := rows.Scan(&tick.Seq, &tick.Time, &record, &species, &zones); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		if err := decodeSnapshots(&tick, record, species, zones); err != nil {
			return nil, err
		}
		out = append(out, tick)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func encodeSnapshots(tick core.Tick) (record, species, zones []byte, err error) {
	if record, err = json.Marshal(tick.Record); err != nil {
		return nil, nil, nil, fmt.Errorf("encode record: %w", err)
	}
	if species, err = json.Marshal(tick.Species); err != nil {
		return nil, nil, nil, fmt.Errorf("encode species: %w", err)
	}
	if zones, err = json.Marshal(tick.Zones); err != nil {
		return nil, nil, nil, fmt.Errorf("encode zones: %w", err)
	}
	return record, species, zones, nil
}

func decodeSnapshots(tick *core.Tick, record, species, zones []byte) error {
	if err := json.Unmarshal(record, &tick.Record); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(species, &tick.Species); err != nil {
		return fmt.Errorf("decode species: %w", err)
	}
	if err := json.Unmarshal(zones, &tick.Zones); err != nil {
		return fmt.Errorf("decode zones: %w", err)
	}
	return nil
}
