// Package main is the operational entry point for the sailing-capacity ETL
// pipeline. It drives the same service layer the API server reads from:
//
//	etl status                         inspect the stored dataset
//	etl load    -csv file [-conflict]  ingest a CSV into the store
//	etl clear                          delete all stored sailings
//	etl refresh -csv file [-conflict]  clear, then load, as one operation
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askeland/teu-capacity/internal/config"
	"github.com/askeland/teu-capacity/internal/domain"
	"github.com/askeland/teu-capacity/internal/repo"
	"github.com/askeland/teu-capacity/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 2
	}
	command := args[0]

	fs := flag.NewFlagSet("etl "+command, flag.ExitOnError)
	csvPath := fs.String("csv", "", "path to the source CSV (load, refresh)")
	conflictFlag := fs.String("conflict", "", "conflict policy: skip (default) or overwrite")
	databaseURL := fs.String("database-url", "", "Postgres connection string (overrides DATABASE_URL)")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	policy, err := domain.ParseConflictPolicy(*conflictFlag)
	if err != nil {
		slog.Error("invalid flag", "error", err)
		return 2
	}

	switch command {
	case "status", "load", "clear", "refresh":
	default:
		usage()
		return 2
	}
	if (command == "load" || command == "refresh") && *csvPath == "" {
		slog.Error("missing required flag", "flag", "-csv", "command", command)
		return 2
	}

	url := *databaseURL
	if url == "" {
		cfg, err := config.Load()
		if err != nil {
			slog.Error("configuration error", "error", err)
			return 1
		}
		url = cfg.DatabaseURL
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		return 1
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to connect to database", "error", err)
		return 1
	}

	store := repo.NewStore(pool)
	pipeline := service.NewPipelineService(store, store.Sailings(), logger)

	switch command {
	case "status":
		return runStatus(ctx, pipeline)
	case "load":
		report, err := pipeline.Load(ctx, *csvPath, policy)
		return reportLoad(report, err)
	case "clear":
		cleared, err := pipeline.Clear(ctx)
		if err != nil {
			slog.Error("clear failed", "error", err)
			return 1
		}
		slog.Info("clear complete", "cleared", cleared)
		return 0
	case "refresh":
		report, err := pipeline.Refresh(ctx, *csvPath, policy)
		return reportLoad(report, err)
	}
	return 2
}

func runStatus(ctx context.Context, pipeline *service.PipelineService) int {
	report, err := pipeline.Status(ctx)
	if err != nil {
		slog.Error("status failed", "error", err)
		return 1
	}

	attrs := []any{
		"rows", report.Rows,
		"distinct_routes", report.DistinctRoutes,
	}
	if report.EarliestDeparture != nil {
		attrs = append(attrs,
			"earliest_departure", report.EarliestDeparture,
			"latest_departure", report.LatestDeparture,
		)
	}
	if report.LastRun != nil {
		attrs = append(attrs,
			"last_operation", report.LastRun.Operation,
			"last_finished_at", report.LastRun.FinishedAt,
		)
	}
	slog.Info("store status", attrs...)
	return 0
}

// reportLoad renders a Load/Refresh outcome and maps it to the process exit
// code. Per-row rejections are logged individually at warn level so operators
// can fix the feed line by line.
func reportLoad(report domain.LoadReport, err error) int {
	for _, rej := range report.Rejections {
		slog.Warn("row rejected",
			"line", rej.Line,
			"field", rej.Field,
			"reason", string(rej.Reason),
			"message", rej.Message,
		)
	}

	if err != nil {
		slog.Error("load failed", "source", report.Source, "error", err)
		return loadExitCode(report, err)
	}

	slog.Info("load complete",
		"source", report.Source,
		"policy", string(report.Policy),
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"conflicts", report.Conflicts,
		"rejected", report.Rejected,
		"cleared", report.Cleared,
	)

	code := loadExitCode(report, nil)
	if code != 0 {
		slog.Error("no rows inserted and rows were rejected; failing load",
			"rejected", report.Rejected)
	}
	return code
}

// loadExitCode is the exit-code policy for load and refresh: missing source
// and rolled-back batches fail, and so does a "successful" load that inserted
// nothing while rejecting rows — that shape almost always means a malformed
// feed rather than an intentionally empty one.
func loadExitCode(report domain.LoadReport, err error) int {
	if errors.Is(err, domain.ErrSourceNotFound) || errors.Is(err, domain.ErrLoadFailed) {
		return 1
	}
	if err != nil {
		return 1
	}
	if report.Inserted == 0 && report.Rejected > 0 {
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: etl <command> [flags]

commands:
  status    show row count, departure coverage, and the last pipeline run
  load      ingest a CSV:     etl load -csv file.csv [-conflict skip|overwrite]
  clear     delete all stored sailings
  refresh   clear then load:  etl refresh -csv file.csv [-conflict skip|overwrite]

flags:
  -csv path            source CSV file (required for load and refresh)
  -conflict policy     skip (default) keeps stored rows, overwrite replaces them
  -database-url url    Postgres connection string (overrides DATABASE_URL)
`)
}
