package core

import (
	"math"
	"sort"
)

// timeColumn is the mandatory axis column of every record.
const timeColumn = "time"

// Record is the append-only sparse time series of per-tick scalar
// diagnostics. The time column strictly increases and defines the row
// count; every other column is kept exactly as long as time, with NaN as
// the missing-value sentinel, so late-appearing or omitted contributions
// can never desynchronize the table from the time axis.
type Record struct {
	times []float64
	order []string
	cols  map[string][]float64
}

// NewRecord returns a record whose time column holds the single value
// initialTime.
func NewRecord(initialTime float64) *Record {
	return &Record{
		times: []float64{initialTime},
		cols:  make(map[string][]float64),
	}
}

// LatestTime returns the most recent recorded time.
func (r *Record) LatestTime() float64 {
	return r.times[len(r.times)-1]
}

// PriorTime returns the time before the latest, or NaN when fewer than two
// ticks exist. Ledger queries at NaN match nothing, which is what makes
// the first tick's "previously extant" sets empty.
func (r *Record) PriorTime() float64 {
	if len(r.times) < 2 {
		return math.NaN()
	}
	return r.times[len(r.times)-2]
}

// Advance appends time to the time column and pads every existing metric
// column with NaN for the new tick. time must strictly exceed the latest
// recorded time, otherwise a TimeOrderError is returned and nothing
// changes; NaN never satisfies the comparison.
func (r *Record) Advance(time float64) error {
	latest := r.LatestTime()
	if !(time > latest) {
		return TimeOrderError{Time: time, Latest: latest}
	}
	r.times = append(r.times, time)
	for _, name := range r.order {
		r.cols[name] = append(r.cols[name], math.NaN())
	}
	return nil
}

// Merge folds one tick's contributions into the latest tick. A new column
// is backfilled with NaN for every prior tick before its first value
// lands; an existing column's current cell is set if still NaN and summed
// otherwise, so several merges within one tick accumulate. All names are
// validated before anything mutates: empty names and "time" are rejected
// with a ReservedColumnError. New columns are introduced in sorted name
// order to keep the table layout deterministic.
func (r *Record) Merge(contributions map[string]float64) error {
	if err := r.ValidateNames(contributions); err != nil {
		return err
	}
	names := make([]string, 0, len(contributions))
	for name := range contributions {
		names = append(names, name)
	}
	sort.Strings(names)
	cur := len(r.times) - 1
	for _, name := range names {
		col, ok := r.cols[name]
		if !ok {
			col = make([]float64, len(r.times))
			for i := range col {
				col[i] = math.NaN()
			}
			col[cur] = contributions[name]
			r.cols[name] = col
			r.order = append(r.order, name)
			continue
		}
		if math.IsNaN(col[cur]) {
			col[cur] = contributions[name]
		} else {
			col[cur] += contributions[name]
		}
	}
	return nil
}

// ValidateNames reports the error Merge would return for these
// contributions without mutating anything. The service uses it to keep a
// reconcile-then-merge pair all-or-nothing.
func (r *Record) ValidateNames(contributions map[string]float64) error {
	for name := range contributions {
		if name == "" || name == timeColumn {
			return ReservedColumnError{Name: name}
		}
	}
	return nil
}

// Len returns the number of recorded ticks.
func (r *Record) Len() int {
	return len(r.times)
}

// Columns returns the metric column names in introduction order, without
// the time column.
func (r *Record) Columns() []string {
	return append([]string(nil), r.order...)
}

// Value returns the named column's cell at tick index i.
func (r *Record) Value(name string, i int) (float64, bool) {
	if name == timeColumn {
		if i < 0 || i >= len(r.times) {
			return 0, false
		}
		return r.times[i], true
	}
	col, ok := r.cols[name]
	if !ok || i < 0 || i >= len(col) {
		return 0, false
	}
	return col[i], true
}

// Table returns a read-only tabular snapshot: the time column first, then
// every metric column in introduction order, one row per tick.
func (r *Record) Table() Table {
	cols := make([]Column, 0, 1+len(r.order))
	cols = append(cols, Column{Name: timeColumn, Kind: ColumnFloat})
	for _, name := range r.order {
		cols = append(cols, Column{Name: name, Kind: ColumnFloat})
	}
	rows := make([]map[string]any, len(r.times))
	for i, t := range r.times {
		row := make(map[string]any, 1+len(r.order))
		row[timeColumn] = t
		for _, name := range r.order {
			row[name] = r.cols[name][i]
		}
		rows[i] = row
	}
	return Table{Columns: cols, Rows: rows}
}
