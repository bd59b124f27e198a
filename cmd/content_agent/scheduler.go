package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-pipeline/internal/scheduler"
)

var schedulerCommand = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the scheduler daemon",
	Long:  "Polls for due pending requests and promotes them onto the queue, and materializes due recurring schedule entries into requests. Runs until interrupted.",
	RunE:  runSchedulerCmd,
}

var schedulerConfigPath string

func init() {
	schedulerCommand.Flags().StringVar(&schedulerConfigPath, "config", "", "Path to config.json file")
	rootCmd.AddCommand(schedulerCommand)
}

func runSchedulerCmd(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadAgentConfig(schedulerConfigPath)
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

	s := scheduler.New(store, q, scheduler.Options{
		PollInterval: cfg.PollInterval(),
		BatchSize:    cfg.BatchSize,
	})
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler stopped: %w", err)
	}
	log.Printf("scheduler: shut down")
	return nil
}
