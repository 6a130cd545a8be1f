// Command prep runs the dataset preparation stages over every city directory
// under DATA_ROOT.
//
// Usage:
//
//	prep <stage>                           run one stage or all
//	prep reset [-artifacts] [-dry-run] <stage>
//
// Stages, in the order "all" runs them: csv2parquet, detectors, hourly,
// attach-sensors, attach-grid, connectivity, metadata.
//
// Settings come from the environment; see internal/config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/traffic-flood-prep/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/traffic-flood-prep/internal/adapter/kafka"
	"github.com/couchcryptid/traffic-flood-prep/internal/adapter/parquet"
	"github.com/couchcryptid/traffic-flood-prep/internal/config"
	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
	"github.com/couchcryptid/traffic-flood-prep/internal/observability"
	"github.com/couchcryptid/traffic-flood-prep/internal/pipeline"
)

const stageAll = "all"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("prep failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: prep <stage> | prep reset [-artifacts] [-dry-run] <stage>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	runner := pipeline.NewRunner(cfg.DataRoot, cfg.Workers, logger, metrics)

	var sink *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		sink = kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		logger.Info("kafka hourly sink enabled", "topic", cfg.KafkaTopic, "batch_size", cfg.BatchSize)
	}

	conv := domain.NewConverter(domain.NewZoneCache(0), cfg.Disambiguation)
	logger.Info("config loaded",
		"data_root", cfg.DataRoot,
		"workers", cfg.Workers,
		"policy", conv.Policy().String(),
		"default_timezone", cfg.DefaultTimezone,
		"city_timezones", cfg.CityZones(),
	)

	stages := buildStages(cfg, conv, sink, metrics)

	if args[0] == "reset" {
		return reset(runner, stages, args[1:], logger)
	}

	selected, err := selectStages(stages, args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, runner, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	summaries, err := runner.RunAll(ctx, selected...)
	failed := 0
	for _, s := range summaries {
		failed += len(s.Failed)
		if len(s.Failed) > 0 {
			logger.Warn("cities failed", "stage", s.Stage, "cities", s.Failed)
		}
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d city runs failed; rerun to retry them", failed)
	}
	return nil
}

func buildStages(cfg *config.Config, conv *domain.Converter, sink *kafkaadapter.Writer, metrics *observability.Metrics) []pipeline.Stage {
	table := parquet.NewWriter()

	var hourlySink pipeline.HourlySink
	if sink != nil {
		hourlySink = sink
	}

	return []pipeline.Stage{
		pipeline.NewReadingsStage(table),
		pipeline.NewDetectorsStage(table),
		pipeline.NewHourlyStage(conv, cfg, table, hourlySink, metrics),
		pipeline.NewAttachSensorsStage(),
		pipeline.NewAttachGridStage(cfg.GridResolution, table),
		pipeline.NewConnectivityStage(table, metrics),
		pipeline.NewMetadataStage(cfg),
	}
}

func selectStages(stages []pipeline.Stage, name string) ([]pipeline.Stage, error) {
	if name == stageAll {
		return stages, nil
	}
	for _, s := range stages {
		if s.Name() == name {
			return []pipeline.Stage{s}, nil
		}
	}
	return nil, fmt.Errorf("unknown stage %q", name)
}

func reset(runner *pipeline.Runner, stages []pipeline.Stage, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	artifacts := fs.Bool("artifacts", false, "also delete the stage outputs of every city")
	dryRun := fs.Bool("dry-run", false, "list what would be removed without removing it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: prep reset [-artifacts] [-dry-run] <stage>")
	}

	selected, err := selectStages(stages, fs.Arg(0))
	if err != nil {
		return err
	}
	for _, s := range selected {
		report, err := runner.Reset(s, *artifacts, *dryRun)
		if err != nil {
			return fmt.Errorf("reset %s: %w", s.Name(), err)
		}
		logger.Info("reset",
			"stage", s.Name(),
			"dry_run", report.DryRun,
			"checkpoint", report.Checkpoint,
			"artifacts", report.Artifacts,
		)
	}
	return nil
}
