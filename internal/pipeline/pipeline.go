package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/traffic-flood-prep/internal/adapter/citydata"
	"github.com/couchcryptid/traffic-flood-prep/internal/observability"
	"github.com/couchcryptid/traffic-flood-prep/internal/progress"
)

// Stage is one per-city processing step.
type Stage interface {
	// Name identifies the stage and names its checkpoint file.
	Name() string
	// Process runs the stage for one city.
	Process(ctx context.Context, city citydata.City) (Result, error)
	// Outputs lists the files the stage produces for city.
	Outputs(city citydata.City) []string
}

// Result counts the rows a stage read and wrote for one city.
type Result struct {
	RowsRead    int
	RowsWritten int
}

// Summary reports one stage run over every city.
type Summary struct {
	RunID     string
	Stage     string
	Total     int
	Processed int
	Skipped   int
	Failed    []string
	Duration  time.Duration
}

// Status is a point-in-time view of the stage run in progress, or of the
// last one once it has finished.
type Status struct {
	RunID     string    `json:"run_id,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// Runner runs stages over the city directories under a data root, one city per
// worker, and checkpoints each city that succeeds.
type Runner struct {
	root    string
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	ready   atomic.Bool

	statusMu sync.Mutex
	status   Status
}

// NewRunner creates a Runner with the given data root and worker limit.
func NewRunner(root string, workers int, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		root:    root,
		workers: workers,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
	}
}

// WithClock replaces the clock used for stage timing.
func (r *Runner) WithClock(c clockwork.Clock) *Runner {
	r.clock = c
	return r
}

// CheckReadiness returns nil once any city has completed a stage.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("runner has not completed any city yet")
	}
	return nil
}

// Status returns the progress of the current or last stage run.
func (r *Runner) Status() Status {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	return r.status
}

func (r *Runner) updateStatus(fn func(*Status)) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	fn(&r.status)
}

// Run executes stage for every city not yet checkpointed. A failing city is
// logged and left for the next run; it does not stop the others. The
// returned error covers setup failures and cancellation only.
func (r *Runner) Run(ctx context.Context, stage Stage) (Summary, error) {
	start := r.clock.Now()
	summary := Summary{RunID: uuid.NewString(), Stage: stage.Name()}
	logger := r.logger.With("run_id", summary.RunID, "stage", stage.Name())

	store, err := progress.Open(r.root, stage.Name())
	if err != nil {
		return summary, err
	}
	cities, err := citydata.Discover(r.root)
	if err != nil {
		return summary, err
	}
	summary.Total = len(cities)

	r.metrics.RunnerActive.Set(1)
	defer r.metrics.RunnerActive.Set(0)
	r.updateStatus(func(st *Status) {
		*st = Status{RunID: summary.RunID, Stage: stage.Name(), Active: true, StartedAt: start, Total: len(cities)}
	})
	defer r.updateStatus(func(st *Status) { st.Active = false })

	logger.Info("stage started", "cities", len(cities), "already_done", len(store.Done()), "workers", r.workers)

	var (
		mu        sync.Mutex
		processed int
		failed    []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, city := range cities {
		if store.IsDone(city.Name) {
			summary.Skipped++
			r.updateStatus(func(st *Status) { st.Skipped++ })
			r.metrics.CitiesSkipped.WithLabelValues(stage.Name()).Inc()
			logger.Debug("city already processed", "city", city.Name)
			continue
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			err := r.processCity(gctx, stage, store, city, logger)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, city.Name)
				r.updateStatus(func(st *Status) { st.Failed++ })
				return nil
			}
			processed++
			r.updateStatus(func(st *Status) { st.Processed++ })
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(failed)
	summary.Processed = processed
	summary.Failed = failed
	summary.Duration = r.clock.Since(start)

	logger.Info("stage finished",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", len(summary.Failed),
		"duration", summary.Duration,
	)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (r *Runner) processCity(ctx context.Context, stage Stage, store *progress.Store, city citydata.City, logger *slog.Logger) error {
	logger = logger.With("city", city.Name)
	start := r.clock.Now()

	res, err := stage.Process(ctx, city)
	r.metrics.StageDuration.WithLabelValues(stage.Name()).Observe(r.clock.Since(start).Seconds())
	if err != nil {
		r.metrics.CitiesProcessed.WithLabelValues(stage.Name(), "error").Inc()
		logger.Error("city failed", "error", err)
		return err
	}

	r.metrics.RowsRead.WithLabelValues(stage.Name()).Add(float64(res.RowsRead))
	r.metrics.RowsWritten.WithLabelValues(stage.Name()).Add(float64(res.RowsWritten))

	if err := store.MarkDone(city.Name); err != nil {
		r.metrics.CitiesProcessed.WithLabelValues(stage.Name(), "error").Inc()
		logger.Error("checkpoint failed", "error", err)
		return err
	}

	r.metrics.CitiesProcessed.WithLabelValues(stage.Name(), "success").Inc()
	r.ready.Store(true)
	logger.Info("city processed", "rows_read", res.RowsRead, "rows_written", res.RowsWritten)
	return nil
}

// RunAll runs stages in order, stopping at the first setup error or
// cancellation. Cities that fail one stage are still attempted by the next.
func (r *Runner) RunAll(ctx context.Context, stages ...Stage) ([]Summary, error) {
	summaries := make([]Summary, 0, len(stages))
	for _, s := range stages {
		sum, err := r.Run(ctx, s)
		summaries = append(summaries, sum)
		if err != nil {
			return summaries, fmt.Errorf("stage %s: %w", s.Name(), err)
		}
	}
	return summaries, nil
}

// ResetReport lists what Reset removed, or would remove on a dry run.
type ResetReport struct {
	Checkpoint string
	Artifacts  []string
	DryRun     bool
}

// Reset forgets the checkpoint of stage. With artifacts set it also removes
// the stage outputs of every city. A dry run only reports.
func (r *Runner) Reset(stage Stage, artifacts, dryRun bool) (ResetReport, error) {
	store, err := progress.Open(r.root, stage.Name())
	if err != nil {
		return ResetReport{}, err
	}
	report := ResetReport{DryRun: dryRun}
	if _, err := os.Stat(store.Path()); err == nil {
		report.Checkpoint = store.Path()
	}

	if artifacts {
		cities, err := citydata.Discover(r.root)
		if err != nil {
			return report, err
		}
		for _, c := range cities {
			for _, p := range stage.Outputs(c) {
				if _, err := os.Stat(p); err == nil {
					report.Artifacts = append(report.Artifacts, p)
				}
			}
		}
	}

	if dryRun {
		return report, nil
	}

	if err := store.Reset(); err != nil {
		return report, err
	}
	for _, p := range report.Artifacts {
		if err := os.Remove(p); err != nil {
			return report, fmt.Errorf("remove artifact: %w", err)
		}
	}
	r.logger.Info("stage reset", "stage", stage.Name(), "artifacts", len(report.Artifacts))
	return report, nil
}
