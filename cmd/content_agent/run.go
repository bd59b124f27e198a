package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-pipeline/internal/observability"
	"github.com/jonathan/content-pipeline/internal/queue"
	"github.com/jonathan/content-pipeline/internal/worker"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run one request through both pipelines in-process",
	Long:  "Creates a request for the given tenant and title and drives it through the drafting and multimedia pipelines immediately, without a broker. Useful for development and one-off pieces.",
	RunE:  runOnceCmd,
}

var (
	runConfigPath string
	runTenantID   int64
	runTitle      string
	runVerbose    bool
)

func init() {
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file")
	runCommand.Flags().Int64Var(&runTenantID, "tenant", 0, "Tenant id the content belongs to")
	runCommand.Flags().StringVar(&runTitle, "title", "", "Content title/topic")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print the step history after the run")
	_ = runCommand.MarkFlagRequired("tenant")
	_ = runCommand.MarkFlagRequired("title")
	rootCmd.AddCommand(runCommand)
}

func runOnceCmd(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadAgentConfig(runConfigPath)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	deps, cleanup, err := buildDeps(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := store.CreateRequest(ctx, runTenantID, runTitle, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("created request %d\n", id)

	printer := observability.NewPrinter(os.Stdout)

	w := worker.New(store, queue.NewMemory(1), deps)
	results, runErr := w.Execute(ctx, queue.Job{RequestID: id, TenantID: runTenantID, Title: runTitle})
	for _, result := range results {
		printer.PrintRunResult(result)
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	req, err := store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	printer.PrintRequest(req)

	if runVerbose {
		entries, err := store.ListExecutionLog(ctx, id)
		if err != nil {
			return err
		}
		printer.PrintExecutionLog(entries)

		artifacts, err := store.ListArtifacts(ctx, id)
		if err != nil {
			return err
		}
		printer.PrintArtifacts(artifacts)
	}
	return nil
}
