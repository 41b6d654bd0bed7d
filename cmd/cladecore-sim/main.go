// Command cladecore-sim runs a scripted habitat simulation end to end: it
// seeds zones from a staged timeline, introduces founder species, advances
// the engine tick by tick while archiving every snapshot, exports the final
// tables through the frames worker, and prints the temporal record as CSV
// on stdout.
//
// The blob store and tick archive are selected through the CLADECORE_BLOB_*
// and CLADECORE_ARCHIVE_* environment variables documented on their
// factories.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cladecore/internal/adapters/frames"
	"cladecore/internal/archive"
	"cladecore/internal/blob"
	"cladecore/internal/core"
	"cladecore/internal/telemetry"
	"cladecore/pkg/biota"
	"cladecore/plugins/allopatry"
)

// defaultStages scripts a small but complete scenario: the basin splits in
// two, holds one tick, then merges back.
const defaultStages = "basin;basin.north,basin.south;basin.north,basin.south;basin"

const exportDeadline = 10 * time.Second

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	steps       int
	dt          float64
	time0       float64
	stages      string
	introduce   int
	formats     string
	metricsAddr string
	tracePath   string
	verbose     bool
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cladecore-sim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.IntVar(&opts.steps, "steps", 10, "simulation steps to run")
	fs.Float64Var(&opts.dt, "dt", 1, "time advanced per step")
	fs.Float64Var(&opts.time0, "time0", 0, "simulation start time")
	fs.StringVar(&opts.stages, "stages", defaultStages, "zone timeline: stages separated by ';', labels by ','")
	fs.IntVar(&opts.introduce, "introduce", 1, "founder species introduced at start")
	fs.StringVar(&opts.formats, "export-formats", "", "final export formats (default csv,json)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus listen address (disabled when empty)")
	fs.StringVar(&opts.tracePath, "trace", "", "JSON span log path (disabled when empty)")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := simulate(opts, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "cladecore-sim: %v\n", err)
		return 1
	}
	return 0
}

func simulate(opts options, stdout, stderr io.Writer) (err error) {
	ctx := context.Background()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	stages, err := allopatry.ParseStages(opts.stages)
	if err != nil {
		return fmt.Errorf("parse stages: %w", err)
	}
	formats, err := frames.ParseFormats(opts.formats)
	if err != nil {
		return fmt.Errorf("parse export formats: %w", err)
	}

	serviceOpts := []core.ServiceOption{core.WithLogger(logger)}

	registry := prometheus.NewRegistry()
	serviceOpts = append(serviceOpts, core.WithMetricsRecorder(telemetry.NewPrometheusMetricsRecorder(registry)))
	if opts.metricsAddr != "" {
		stop := serveMetrics(opts.metricsAddr, registry, logger)
		defer stop()
	}

	if opts.tracePath != "" {
		traceFile, createErr := os.Create(opts.tracePath) // #nosec G304: operator-chosen output path
		if createErr != nil {
			return fmt.Errorf("create trace log: %w", createErr)
		}
		defer func() {
			if cerr := traceFile.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close trace log: %w", cerr)
			}
		}()
		serviceOpts = append(serviceOpts, core.WithTracer(core.NewJSONTracer(traceFile)))
	}

	audit := core.NewMemoryAuditRecorder()
	serviceOpts = append(serviceOpts, core.WithAuditRecorder(audit))

	store, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	ticks, err := archive.Open()
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		if cerr := ticks.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
	}()

	provider, err := allopatry.NewProvider("scripted", stages...)
	if err != nil {
		return fmt.Errorf("build provider: %w", err)
	}
	svc, err := core.NewService(opts.time0, []biota.ZoneProvider{provider}, serviceOpts...)
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	seed := svc.ZonesAt(opts.time0)
	for i := 0; i < opts.introduce; i++ {
		founder := allopatry.NewSpecies(seed...)
		if err := svc.IntroduceSpecies(founder); err != nil {
			return fmt.Errorf("introduce species %d: %w", i+1, err)
		}
		if id, ok := founder.Identifier(); ok {
			logger.Info("species introduced", "id", id.String(), "zones", len(seed))
		}
	}

	// The archive is a cumulative journal: reruns append after whatever a
	// previous run left behind instead of colliding with it.
	base, err := nextSeq(ctx, ticks)
	if err != nil {
		return err
	}
	if base > 0 {
		logger.Info("archive resumed", "from_seq", base)
	}
	if err := saveTick(ctx, ticks, base, svc); err != nil {
		return err
	}
	for i := 1; i <= opts.steps; i++ {
		if err := svc.RunOneStep(opts.dt); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if err := saveTick(ctx, ticks, base+int64(i), svc); err != nil {
			return err
		}
	}

	worker := frames.NewWorker(store, audit)
	worker.Start()
	defer func() {
		if serr := worker.Stop(ctx); serr != nil && err == nil {
			err = fmt.Errorf("stop export worker: %w", serr)
		}
	}()

	job, err := worker.Enqueue(frames.ExportRequest{
		Name:    "final",
		SimTime: svc.LatestTime(),
		Snapshots: []frames.Snapshot{
			{Name: "record", Table: svc.RecordTable()},
			{Name: "species", Table: svc.SpeciesTable()},
			{Name: "zones", Table: svc.ZonesTable()},
		},
		Formats:     formats,
		RequestedBy: "cladecore-sim",
		Reason:      "end of run export",
	})
	if err != nil {
		return fmt.Errorf("enqueue export: %w", err)
	}
	job, err = awaitExport(worker, job.ID)
	if err != nil {
		return err
	}
	for _, artifact := range job.Artifacts {
		logger.Info("table exported", "key", artifact.Key, "bytes", artifact.SizeBytes)
	}

	payload, err := frames.RenderCSV(svc.RecordTable())
	if err != nil {
		return fmt.Errorf("render record table: %w", err)
	}
	if _, err := stdout.Write(payload); err != nil {
		return fmt.Errorf("write record table: %w", err)
	}

	logger.Info("simulation complete",
		"steps", opts.steps,
		"time", svc.LatestTime(),
		"zones", len(svc.ZonesTable().Rows),
		"species", len(svc.SpeciesTable().Rows),
		"audit_entries", len(audit.Entries()),
	)
	return nil
}

// nextSeq returns the sequence number the run's first tick should be
// archived under: zero on a fresh archive, one past the newest tick
// otherwise.
func nextSeq(ctx context.Context, ticks core.Archive) (int64, error) {
	existing, err := ticks.Ticks(ctx)
	if err != nil {
		return 0, fmt.Errorf("read archive: %w", err)
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return existing[len(existing)-1].Seq + 1, nil
}

func saveTick(ctx context.Context, ticks core.Archive, seq int64, svc *core.Service) error {
	err := ticks.SaveTick(ctx, core.Tick{
		Seq:     seq,
		Time:    svc.LatestTime(),
		Record:  svc.RecordTable(),
		Species: svc.SpeciesTable(),
		Zones:   svc.ZonesTable(),
	})
	if err != nil {
		return fmt.Errorf("archive tick %d: %w", seq, err)
	}
	return nil
}

// awaitExport polls the worker until the job reaches a terminal status.
func awaitExport(worker *frames.Worker, id string) (frames.ExportJob, error) {
	deadline := time.Now().Add(exportDeadline)
	for time.Now().Before(deadline) {
		job, ok := worker.Job(id)
		if !ok {
			return frames.ExportJob{}, fmt.Errorf("export job %s vanished", id)
		}
		switch job.Status {
		case frames.ExportStatusSucceeded:
			return job, nil
		case frames.ExportStatusFailed:
			return frames.ExportJob{}, fmt.Errorf("export failed: %s", job.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return frames.ExportJob{}, fmt.Errorf("export job %s did not finish within %s", id, exportDeadline)
}

// serveMetrics exposes registry on addr until the returned stop function
// runs.
func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", serveErr)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("metrics shutdown failed", "error", shutdownErr)
		}
	}
}
