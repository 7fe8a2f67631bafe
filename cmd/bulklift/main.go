package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/bulklift/internal/config"
	"github.com/yuya-takeyama/bulklift/internal/metrics"
	"github.com/yuya-takeyama/bulklift/internal/walker"
	"github.com/yuya-takeyama/bulklift/pkg/executor"
	"github.com/yuya-takeyama/bulklift/pkg/logger"
	"github.com/yuya-takeyama/bulklift/pkg/orchestrator"
	"github.com/yuya-takeyama/bulklift/pkg/worker"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

const (
	exitFailure = 1
	exitAborted = 130
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, orchestrator.ErrAborted) {
		return exitAborted
	}
	return exitFailure
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		flags      = config.Default()
	)

	rootCmd := &cobra.Command{
		Use:   "bulklift --container <name> --source <dir>",
		Short: "Concurrent bulk uploader for object storage containers",
		Long: `bulklift uploads a local directory tree into an object storage container
using a bounded pool of concurrent workers. With --delete-remote it also removes
remote objects that no longer exist locally.`,
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath, flags)
			if err != nil {
				return err
			}
			return runUpload(cmd.Context(), cfg)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	addStoreFlags(rootCmd, &flags)
	addUploadFlags(rootCmd, &flags)

	rootCmd.AddCommand(newListCmd(&configPath, &flags))
	return rootCmd
}

func runUpload(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.NewString()
	syncLogger := logger.NewSyncLogger(os.Stderr, runID, cfg.DryRun, cfg.Quiet, cfg.Verbose)

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	indexer, err := walker.NewWalker(cfg.Source, cfg.Excludes)
	if err != nil {
		return fmt.Errorf("failed to prepare source: %w", err)
	}

	transferMetrics := metrics.NewTransferMetrics(prometheus.NewRegistry())

	ctrl := worker.NewController(ctx)
	defer ctrl.Release()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signals)
		close(signals)
	}()
	var signaled atomic.Bool
	go ctrl.Watch(signals, func(sig os.Signal, mode worker.AbortMode) {
		signaled.Store(true)
		if mode == worker.AbortImmediate {
			syncLogger.Error("abort", cfg.Container, fmt.Errorf("received %s, stopping in-flight operations", sig))
			return
		}
		syncLogger.Error("abort", cfg.Container, fmt.Errorf("received %s, finishing in-flight operations (send again to stop immediately)", sig))
	})

	orch := orchestrator.New(store, indexer, syncLogger, orchestrator.Options{
		Container:    cfg.Container,
		Concurrency:  cfg.Concurrency,
		Retry:        executor.DefaultRetryPolicy(cfg.ErrorRetry),
		DeleteRemote: cfg.DeleteRemote,
		Excludes:     cfg.Excludes,
		PageSize:     cfg.PageSize,
		DryRun:       cfg.DryRun,
	}).WithRecorder(transferMetrics).OnStateChange(func(s orchestrator.State) {
		syncLogger.Debug("state: " + string(s))
	})

	report, runErr := orch.Run(ctrl)

	for _, b := range report.Batches {
		transferMetrics.ObserveBatch(b.Phase)
	}
	transferMetrics.ObserveRun(string(report.State()), report.Duration)

	printSummary(syncLogger, report)

	if cfg.ResultJSONFile != "" {
		result := buildSyncResult(runID, store.URL(), report)
		if err := writeSyncResult(cfg.ResultJSONFile, result); err != nil {
			return fmt.Errorf("failed to write result JSON: %w", err)
		}
	}
	if cfg.MetricsFile != "" {
		if err := transferMetrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}

	if runErr != nil {
		// an abort not caused by a signal means the source became unreadable
		if errors.Is(runErr, orchestrator.ErrAborted) && !signaled.Load() {
			return &exitError{code: exitFailure, err: runErr}
		}
		return runErr
	}
	if failed := len(report.Failed()); failed > 0 {
		return fmt.Errorf("%d operations failed", failed)
	}
	return nil
}
