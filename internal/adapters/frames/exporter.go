package frames

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"cladecore/internal/blob"
	"cladecore/internal/core"
)

// ExportStatus describes the lifecycle stage of an export job.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

const exportOperation = "export_frames"

// Snapshot pairs a table with the name its documents are exported under.
type Snapshot struct {
	Name  string
	Table core.Table
}

// ExportRequest asks the worker to render a set of snapshots.
type ExportRequest struct {
	Name        string  // groups the artifacts under one key prefix
	SimTime     float64 // simulation time the snapshots were taken at
	Snapshots   []Snapshot
	Formats     []Format // defaults to DefaultFormats
	RequestedBy string
	Reason      string
}

// Artifact describes one rendered document stored in the blob store.
type Artifact struct {
	Key         string    `json:"key"`
	Snapshot    string    `json:"snapshot"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportJob tracks an export request and its resulting artifacts.
type ExportJob struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	SimTime     float64      `json:"sim_time"`
	Formats     []Format     `json:"formats"`
	Status      ExportStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	Artifacts   []Artifact   `json:"artifacts,omitempty"`
	RequestedBy string       `json:"requested_by,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Worker renders snapshot exports asynchronously, storing every document
// through the blob store and auditing terminal outcomes.
type Worker struct {
	store blob.Store
	audit core.AuditRecorder

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id  string
	req ExportRequest
}

// NewWorker constructs an export worker. The audit recorder may be nil.
func NewWorker(store blob.Store, audit core.AuditRecorder) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		store:  store,
		audit:  audit,
		queue:  make(chan exportTask, 32),
		jobs:   make(map[string]*ExportJob),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// Enqueue schedules an export job and returns the queued record.
func (w *Worker) Enqueue(req ExportRequest) (ExportJob, error) {
	if w.store == nil {
		return ExportJob{}, fmt.Errorf("export store not configured")
	}
	if strings.TrimSpace(req.Name) == "" {
		return ExportJob{}, fmt.Errorf("export name required")
	}
	if len(req.Snapshots) == 0 {
		return ExportJob{}, fmt.Errorf("export needs at least one snapshot")
	}
	for _, snap := range req.Snapshots {
		if strings.TrimSpace(snap.Name) == "" {
			return ExportJob{}, fmt.Errorf("snapshot name required")
		}
	}

	formats := req.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, format := range formats {
		if _, dup := seen[format]; dup {
			continue
		}
		if _, err := extensionFor(format); err != nil {
			return ExportJob{}, err
		}
		uniq = append(uniq, format)
		seen[format] = struct{}{}
	}
	req.Formats = uniq

	id := newID()
	now := time.Now().UTC()
	job := ExportJob{
		ID:          id,
		Name:        req.Name,
		SimTime:     req.SimTime,
		Formats:     uniq,
		Status:      ExportStatusQueued,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &job
	queued := job.copy()
	w.mu.Unlock()

	w.recordAudit(core.AuditStatusSuccess, req.SimTime, map[string]any{
		"stage": string(ExportStatusQueued),
		"job":   id,
		"name":  req.Name,
	})

	select {
	case w.queue <- exportTask{id: id, req: req}:
	default:
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return ExportJob{}, fmt.Errorf("export queue full")
	}
	return queued, nil
}

// Job returns a snapshot of the export job.
func (w *Worker) Job(id string) (ExportJob, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	job, ok := w.jobs[id]
	if !ok {
		return ExportJob{}, false
	}
	return job.copy(), true
}

func (w *Worker) process(task exportTask) {
	w.setStatus(task.id, ExportStatusRunning)
	artifacts := make([]Artifact, 0, len(task.req.Formats)*len(task.req.Snapshots))
	for _, format := range task.req.Formats {
		ext, err := extensionFor(format)
		if err != nil {
			w.fail(task.id, task.req, err.Error())
			return
		}
		for _, snap := range task.req.Snapshots {
			payload, contentType, err := render(format, snap.Name, snap.Table)
			if err != nil {
				w.fail(task.id, task.req, fmt.Sprintf("render %s as %s: %v", snap.Name, format, err))
				return
			}
			key := fmt.Sprintf("%s/%s/%s.%s", task.req.Name, task.id, snap.Name, ext)
			info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
				ContentType: contentType,
				Metadata: map[string]string{
					"snapshot": snap.Name,
					"format":   string(format),
				},
			})
			if err != nil {
				w.fail(task.id, task.req, fmt.Sprintf("store %s: %v", key, err))
				return
			}
			artifacts = append(artifacts, Artifact{
				Key:         info.Key,
				Snapshot:    snap.Name,
				Format:      format,
				ContentType: contentType,
				SizeBytes:   info.Size,
				URL:         info.URL,
				CreatedAt:   info.LastModified,
			})
		}
	}
	w.complete(task.id, task.req, artifacts)
}

func (w *Worker) setStatus(id string, status ExportStatus) {
	now := time.Now().UTC()
	w.mu.Lock()
	if job, ok := w.jobs[id]; ok {
		job.Status = status
		job.UpdatedAt = now
	}
	w.mu.Unlock()
}

func (w *Worker) complete(id string, req ExportRequest, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if job, ok := w.jobs[id]; ok {
		job.Status = ExportStatusSucceeded
		job.Error = ""
		job.Artifacts = artifacts
		job.UpdatedAt = now
		job.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(core.AuditStatusSuccess, req.SimTime, map[string]any{
		"stage":     string(ExportStatusSucceeded),
		"job":       id,
		"name":      req.Name,
		"artifacts": len(artifacts),
	})
}

func (w *Worker) fail(id string, req ExportRequest, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if job, ok := w.jobs[id]; ok {
		job.Status = ExportStatusFailed
		job.Error = reason
		job.UpdatedAt = now
		job.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(core.AuditStatusError, req.SimTime, map[string]any{
		"stage": string(ExportStatusFailed),
		"job":   id,
		"name":  req.Name,
		"error": reason,
	})
}

func (w *Worker) recordAudit(status string, simTime float64, detail map[string]any) {
	if w.audit == nil {
		return
	}
	w.audit.Record(core.AuditEntry{
		Operation: exportOperation,
		Status:    status,
		SimTime:   simTime,
		Detail:    detail,
		At:        time.Now().UTC(),
	})
}

func (j ExportJob) copy() ExportJob {
	dup := j
	dup.Formats = append([]Format(nil), j.Formats...)
	if len(j.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), j.Artifacts...)
	}
	return dup
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}
