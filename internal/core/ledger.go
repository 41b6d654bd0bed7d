package core

// Ledger tracks the existence interval of one entity kind. Every tracked
// object owns at most one row, keyed by identity; rows are appended or
// updated, never removed. Storage is columnar (parallel slices) so an
// extant-at-time query is a single batched scan over two float columns
// rather than a per-row structure walk.
type Ledger[T comparable] struct {
	appeared []float64
	latest   []float64
	objects  []T
	index    map[T]int
}

// NewLedger returns an empty ledger.
func NewLedger[T comparable]() *Ledger[T] {
	return &Ledger[T]{index: make(map[T]int)}
}

// Reconcile records that exactly the given entities are extant at time.
// Already-tracked entities have their latest extant time set to time,
// idempotently; unseen entities gain a row appearing at time. Tracked
// entities absent from the input are left untouched, which ends their
// extant interval at its prior value. Duplicate input entries collapse to
// their first occurrence. Callers must not move reconcile times backward;
// the service's time policy guarantees that.
func (l *Ledger[T]) Reconcile(time float64, entities []T) {
	for _, e := range entities {
		if i, ok := l.index[e]; ok {
			l.latest[i] = time
			continue
		}
		l.index[e] = len(l.objects)
		l.appeared = append(l.appeared, time)
		l.latest = append(l.latest, time)
		l.objects = append(l.objects, e)
	}
}

// At returns the entities whose extant interval covers time, in insertion
// order. A NaN time matches nothing.
func (l *Ledger[T]) At(time float64) []T {
	var out []T
	for i := range l.objects {
		if l.appeared[i] <= time && time <= l.latest[i] {
			out = append(out, l.objects[i])
		}
	}
	return out
}

// Len returns the number of tracked entities.
func (l *Ledger[T]) Len() int {
	return len(l.objects)
}

// Contains reports whether the entity is tracked.
func (l *Ledger[T]) Contains(e T) bool {
	_, ok := l.index[e]
	return ok
}

// Span returns the entity's appearance and latest extant times.
func (l *Ledger[T]) Span(e T) (appeared, latest float64, ok bool) {
	i, ok := l.index[e]
	if !ok {
		return 0, 0, false
	}
	return l.appeared[i], l.latest[i], true
}

// Entry is one ledger row.
type Entry[T comparable] struct {
	Appeared float64
	Latest   float64
	Entity   T
}

// Entries returns a copy of all rows in insertion order.
func (l *Ledger[T]) Entries() []Entry[T] {
	out := make([]Entry[T], len(l.objects))
	for i := range l.objects {
		out[i] = Entry[T]{Appeared: l.appeared[i], Latest: l.latest[i], Entity: l.objects[i]}
	}
	return out
}
