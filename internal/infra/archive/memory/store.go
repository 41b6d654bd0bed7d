// Package memory provides an in-memory tick archive for tests and
// ephemeral simulation runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cladecore/internal/core"
)

var _ core.Archive = (*Store)(nil)

// Store keeps archived ticks in process memory. It is safe for concurrent
// use and hands out copies, so callers cannot mutate archived state.
type Store struct {
	mu    sync.RWMutex
	ticks map[int64]core.Tick
}

// NewStore constructs an empty in-memory archive.
func NewStore() *Store {
	return &Store{ticks: make(map[int64]core.Tick)}
}

// SaveTick records a tick, rejecting sequence numbers already present.
func (s *Store) SaveTick(_ context.Context, tick core.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ticks[tick.Seq]; ok {
		return fmt.Errorf("save tick %d: %w", tick.Seq, core.ErrDuplicateTick)
	}
	s.ticks[tick.Seq] = cloneTick(tick)
	return nil
}

// Ticks returns copies of all recorded ticks ordered by sequence number.
func (s *Store) Ticks(_ context.Context) ([]core.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Tick, 0, len(s.ticks))
	for _, tick := range s.ticks {
		out = append(out, cloneTick(tick))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Close is a no-op for the in-memory archive.
func (s *Store) Close() error { return nil }

func cloneTick(t core.Tick) core.Tick {
	t.Record = cloneTable(t.Record)
	t.Species = cloneTable(t.Species)
	t.Zones = cloneTable(t.Zones)
	return t
}

func cloneTable(t core.Table) core.Table {
	out := core.Table{
		Columns: append([]core.Column(nil), t.Columns...),
		Rows:    make([]map[string]any, len(t.Rows)),
	}
	for i, row := range t.Rows {
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = v
		}
		out.Rows[i] = m
	}
	return out
}
