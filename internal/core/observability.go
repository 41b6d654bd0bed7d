package core

import (
	"sync"
	"time"
)

// Logger is the minimal structured logging surface the service emits
// through. The call shape matches log/slog, so an *slog.Logger satisfies
// it directly; the default is a no-op.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder receives one observation per completed service
// operation. Implementations must be safe for use from a single service
// goroutine; the service never calls concurrently.
type MetricsRecorder interface {
	Observe(operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(string, bool, time.Duration) {}

// Tracer starts one span per service operation.
type Tracer interface {
	Start(operation string) TraceSpan
}

// TraceSpan finishes a started span with the operation's outcome.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(string) TraceSpan { return noopSpan{} }

type noopSpan struct{}

func (noopSpan) End(error) {}

// Audit outcome labels.
const (
	AuditStatusSuccess = "success"
	AuditStatusError   = "error"
)

// AuditEntry describes one completed service operation for audit trails.
type AuditEntry struct {
	Operation string         `json:"operation"`
	Status    string         `json:"status"`
	SimTime   float64        `json:"sim_time"`
	Detail    map[string]any `json:"detail,omitempty"`
	At        time.Time      `json:"at"`
}

// AuditRecorder receives an entry per completed service operation.
type AuditRecorder interface {
	Record(entry AuditEntry)
}

type noopAudit struct{}

func (noopAudit) Record(AuditEntry) {}

// MemoryAuditRecorder retains audit entries in memory for inspection.
type MemoryAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewMemoryAuditRecorder returns an empty in-memory audit recorder.
func NewMemoryAuditRecorder() *MemoryAuditRecorder {
	return &MemoryAuditRecorder{}
}

// Record implements AuditRecorder.
func (r *MemoryAuditRecorder) Record(entry AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// Entries returns a copy of all recorded entries in order.
func (r *MemoryAuditRecorder) Entries() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
