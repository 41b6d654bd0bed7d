// Package postgres provides a tick archive backed by a PostgreSQL server,
// reached through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"cladecore/internal/core"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ core.Archive = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with the archive factory defaults while
	// allowing overrides via env.
	defaultDSN = "postgres://localhost/cladecore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store appends ticks to a Postgres table, one row per tick with the
// tabular snapshots stored as JSONB documents.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed archive using the provided DSN (falls
// back to defaultDSN), verifies connectivity and ensures the ticks table
// exists.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS ticks (
		seq BIGINT PRIMARY KEY,
		time DOUBLE PRECISION NOT NULL,
		record JSONB NOT NULL,
		species JSONB NOT NULL,
		zones JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure ticks table: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveTick appends one tick. Sequence numbers already present are rejected
// with core.ErrDuplicateTick.
func (s *Store) SaveTick(ctx context.Context, tick core.Tick) error {
	record, species, zones, err := encodeSnapshots(tick)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ticks(seq,time,record,species,zones) VALUES($1,$2,$3,$4,$5) ON CONFLICT(seq) DO NOTHING`,
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

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a
// restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
