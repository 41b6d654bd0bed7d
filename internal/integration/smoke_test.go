package integration

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cladecore/internal/adapters/frames"
	"cladecore/internal/blob"
	"cladecore/internal/core"
	archivemem "cladecore/internal/infra/archive/memory"
	archivesqlite "cladecore/internal/infra/archive/sqlite"
	blobfs "cladecore/internal/infra/blob/fs"
	blobmem "cladecore/internal/infra/blob/memory"
	blobs3 "cladecore/internal/infra/blob/s3"
	"cladecore/pkg/biota"
	"cladecore/plugins/allopatry"
)

// TestIntegrationSmoke exercises a minimal end-to-end simulation against
// each supported archive driver, and the export pipeline against each blob
// adapter. It intentionally keeps scope tiny so it can act as a fast CI
// health check.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()

	archiveVariants := []struct {
		name string
		open func(t *testing.T) core.Archive
	}{
		{
			name: "memory-archive",
			open: func(*testing.T) core.Archive { return archivemem.NewStore() },
		},
		{
			name: "sqlite-archive",
			open: func(t *testing.T) core.Archive {
				s, err := archivesqlite.NewStore(filepath.Join(t.TempDir(), "ticks.db"))
				if err != nil {
					t.Skipf("sqlite unavailable: %v", err)
				}
				return s
			},
		},
	}

	for _, av := range archiveVariants {
		t.Run(av.name, func(t *testing.T) {
			ticks := av.open(t)
			defer func() {
				if err := ticks.Close(); err != nil {
					t.Fatalf("close archive: %v", err)
				}
			}()

			// The basin splits, holds one tick, then merges back.
			provider, err := allopatry.NewProvider("relief",
				[]string{"basin"},
				[]string{"basin.north", "basin.south"},
				[]string{"basin.north", "basin.south"},
				[]string{"basin"},
			)
			if err != nil {
				t.Fatalf("new provider: %v", err)
			}
			metricsRecorder := core.NewExpvarMetricsRecorder("")
			var traceBuffer bytes.Buffer
			tracer := core.NewJSONTracer(&traceBuffer)
			audit := core.NewMemoryAuditRecorder()
			svc, err := core.NewService(0, []biota.ZoneProvider{provider},
				core.WithMetricsRecorder(metricsRecorder),
				core.WithTracer(tracer),
				core.WithAuditRecorder(audit),
			)
			if err != nil {
				t.Fatalf("new service: %v", err)
			}
			if err := svc.IntroduceSpecies(allopatry.NewSpecies(svc.ZonesAt(0)...)); err != nil {
				t.Fatalf("introduce species: %v", err)
			}

			save := func(seq int64) {
				t.Helper()
				err := ticks.SaveTick(ctx, core.Tick{
					Seq:     seq,
					Time:    svc.LatestTime(),
					Record:  svc.RecordTable(),
					Species: svc.SpeciesTable(),
					Zones:   svc.ZonesTable(),
				})
				if err != nil {
					t.Fatalf("save tick %d: %v", seq, err)
				}
			}
			save(0)
			for i := 1; i <= 3; i++ {
				if err := svc.RunOneStep(1); err != nil {
					t.Fatalf("step %d: %v", i, err)
				}
				save(int64(i))
			}

			// Ticks are write-once; replaying a sequence number is refused.
			err = ticks.SaveTick(ctx, core.Tick{Seq: 0, Time: svc.LatestTime()})
			if !errors.Is(err, core.ErrDuplicateTick) {
				t.Fatalf("duplicate seq error = %v, want ErrDuplicateTick", err)
			}

			stored, err := ticks.Ticks(ctx)
			if err != nil {
				t.Fatalf("read ticks: %v", err)
			}
			if len(stored) != 4 {
				t.Fatalf("stored ticks = %d, want 4", len(stored))
			}
			final := stored[3]
			if final.Time != 3 || len(final.Record.Rows) != 4 {
				t.Fatalf("final tick: time %v, record rows %d", final.Time, len(final.Record.Rows))
			}
			// The quiet tick survives storage as a missing value, not a zero.
			quiet := final.Record.Rows[2]["speciation_count"]
			if v, ok := quiet.(float64); !ok || !math.IsNaN(v) {
				t.Fatalf("quiet tick speciation_count = %v, want NaN", quiet)
			}
			if len(final.Species.Rows) != 2 {
				t.Fatalf("species rows = %d, want founder and child", len(final.Species.Rows))
			}

			clade, err := svc.SpeciesWithIdentifier("A")
			if err != nil {
				t.Fatalf("species by clade: %v", err)
			}
			if len(clade) != 2 {
				t.Fatalf("clade A species = %d, want 2", len(clade))
			}

			snapshot := metricsRecorder.Snapshot()
			if snapshot.Results["run_one_step"]["success"] != 3 {
				t.Fatalf("run_one_step successes missing: %+v", snapshot.Results)
			}
			if snapshot.Results["introduce_species"]["success"] != 1 {
				t.Fatalf("introduce_species successes missing: %+v", snapshot.Results)
			}
			if traceBuffer.Len() == 0 {
				t.Fatal("trace exporter should emit spans")
			}
			if entries := audit.Entries(); len(entries) != 4 {
				t.Fatalf("audit entries = %d, want 4", len(entries))
			}
		})
	}

	blobVariants := []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{
			name: "memory-blob",
			open: func(*testing.T) blob.Store { return blobmem.New() },
		},
		{
			name: "filesystem-blob",
			open: func(t *testing.T) blob.Store {
				s, err := blobfs.New(t.TempDir())
				if err != nil {
					t.Fatalf("new filesystem blob: %v", err)
				}
				return s
			},
		},
		{
			name: "mock-s3-blob",
			open: func(*testing.T) blob.Store { return blobs3.NewMockForTests() },
		},
	}

	table := core.Table{
		Columns: []core.Column{
			{Name: "time", Kind: core.ColumnFloat},
			{Name: "zones_created", Kind: core.ColumnFloat},
		},
		Rows: []map[string]any{
			{"time": 0.0, "zones_created": math.NaN()},
			{"time": 1.0, "zones_created": 2.0},
		},
	}
	wantCSV, err := frames.RenderCSV(table)
	if err != nil {
		t.Fatalf("render reference document: %v", err)
	}

	for _, bv := range blobVariants {
		t.Run(bv.name, func(t *testing.T) {
			store := bv.open(t)
			worker := frames.NewWorker(store, nil)
			worker.Start()
			defer func() {
				if err := worker.Stop(ctx); err != nil {
					t.Fatalf("stop worker: %v", err)
				}
			}()

			job, err := worker.Enqueue(frames.ExportRequest{
				Name:      "smoke",
				SimTime:   1,
				Snapshots: []frames.Snapshot{{Name: "record", Table: table}},
				Formats:   []frames.Format{frames.FormatCSV},
			})
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			job = awaitJob(t, worker, job.ID)
			if len(job.Artifacts) != 1 {
				t.Fatalf("artifacts = %+v, want exactly one", job.Artifacts)
			}
			artifact := job.Artifacts[0]
			if artifact.SizeBytes <= 0 {
				t.Fatalf("artifact size = %d, want positive", artifact.SizeBytes)
			}
			_, rc, err := store.Get(ctx, artifact.Key)
			if err != nil {
				t.Fatalf("get artifact: %v", err)
			}
			payload, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read artifact: %v", err)
			}
			if err := rc.Close(); err != nil {
				t.Fatalf("close artifact reader: %v", err)
			}
			if !bytes.Equal(payload, wantCSV) {
				t.Fatalf("artifact payload = %q, want %q", payload, wantCSV)
			}
			if ok, err := store.Delete(ctx, artifact.Key); err != nil || !ok {
				t.Fatalf("delete artifact: ok=%v err=%v", ok, err)
			}
		})
	}

	// Guard against env leakage from variant helpers.
	if os.Getenv("CLADECORE_BLOB_DRIVER") != "" || os.Getenv("CLADECORE_ARCHIVE_DRIVER") != "" {
		t.Fatal("smoke test must not mutate driver environment variables")
	}
}

func awaitJob(t *testing.T, worker *frames.Worker, id string) frames.ExportJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := worker.Job(id)
		if !ok {
			t.Fatalf("job %s vanished", id)
		}
		switch job.Status {
		case frames.ExportStatusSucceeded:
			return job
		case frames.ExportStatusFailed:
			t.Fatalf("export failed: %s", job.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return frames.ExportJob{}
}
