package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-pipeline/internal/worker"
)

var workerCommand = &cobra.Command{
	Use:   "worker",
	Short: "Run the pipeline worker daemon",
	Long:  "Consumes jobs from the queue and drives each request through the drafting and multimedia pipelines until a terminal status. Runs until interrupted.",
	RunE:  runWorkerCmd,
}

var workerConfigPath string

func init() {
	workerCommand.Flags().StringVar(&workerConfigPath, "config", "", "Path to config.json file")
	rootCmd.AddCommand(workerCommand)
}

func runWorkerCmd(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadAgentConfig(workerConfigPath)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	q, err := openQueue(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := q.Close(); err != nil {
			log.Printf("failed to close queue: %v", err)
		}
	}()

	deps, cleanup, err := buildDeps(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer cleanup()

	w := worker.New(store, q, deps)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker stopped: %w", err)
	}
	log.Printf("worker: shut down")
	return nil
}
