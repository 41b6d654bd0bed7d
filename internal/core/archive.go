package core

import (
	"context"
	"errors"
)

// Tick is one archived simulation step: the sequence number and simulation
// time it closed at, plus the tabular snapshots taken once the step's
// reconciliation finished.
type Tick struct {
	Seq     int64   `json:"seq"`
	Time    float64 `json:"time"`
	Record  Table   `json:"record"`
	Species Table   `json:"species"`
	Zones   Table   `json:"zones"`
}

// ErrDuplicateTick reports an attempt to archive a sequence number that was
// already recorded.
var ErrDuplicateTick = errors.New("archive: tick already recorded")

// Archive stores per-tick snapshots of a running simulation. Ticks are
// immutable once written: SaveTick fails with ErrDuplicateTick when the
// sequence number is already present, and Ticks returns everything recorded
// so far ordered by sequence number.
type Archive interface {
	SaveTick(ctx context.Context, tick Tick) error
	Ticks(ctx context.Context) ([]Tick, error)
	Close() error
}
