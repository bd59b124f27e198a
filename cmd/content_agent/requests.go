package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-pipeline/internal/db"
	"github.com/jonathan/content-pipeline/internal/observability"
	"github.com/jonathan/content-pipeline/internal/scheduler"
)

var requestsCommand = &cobra.Command{
	Use:   "requests",
	Short: "Inspect and operate on content requests",
}

var (
	requestsConfigPath string
	requestsStatus     string
	requestsTenantID   int64
	requestsLimit      int
	requestsAt         string
)

var requestsListCommand = &cobra.Command{
	Use:   "list",
	Short: "List requests, optionally filtered by status and tenant",
	RunE:  requestsListCmd,
}

var requestsShowCommand = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one request with its artifact and execution history",
	Args:  cobra.ExactArgs(1),
	RunE:  requestsShowCmd,
}

var requestsRetryCommand = &cobra.Command{
	Use:   "retry <id>",
	Short: "Reset a failed request to pending for another run",
	Args:  cobra.ExactArgs(1),
	RunE:  requestsRetryCmd,
}

var requestsCancelCommand = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a request that has not finished",
	Args:  cobra.ExactArgs(1),
	RunE:  requestsCancelCmd,
}

var requestsPauseCommand = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause a pending request",
	Args:  cobra.ExactArgs(1),
	RunE:  requestsPauseCmd,
}

var requestsResumeCommand = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused request and re-enqueue it",
	Args:  cobra.ExactArgs(1),
	RunE:  requestsResumeCmd,
}

var requestsRescheduleCommand = &cobra.Command{
	Use:   "reschedule <id>",
	Short: "Move a pending request to a new time",
	Args:  cobra.ExactArgs(1),
	RunE:  requestsRescheduleCmd,
}

var requestsEnqueueCommand = &cobra.Command{
	Use:   "enqueue <id>",
	Short: "Enqueue a pending request immediately, ignoring its scheduled time",
	Args:  cobra.ExactArgs(1),
	RunE:  requestsEnqueueCmd,
}

var requestsBulkRetryCommand = &cobra.Command{
	Use:   "bulk-retry <id>...",
	Short: "Reset several failed requests to pending",
	Args:  cobra.MinimumNArgs(1),
	RunE:  requestsBulkRetryCmd,
}

var requestsBulkCancelCommand = &cobra.Command{
	Use:   "bulk-cancel <id>...",
	Short: "Cancel several unfinished requests",
	Args:  cobra.MinimumNArgs(1),
	RunE:  requestsBulkCancelCmd,
}

func init() {
	requestsCommand.PersistentFlags().StringVar(&requestsConfigPath, "config", "", "Path to config.json file")

	requestsListCommand.Flags().StringVar(&requestsStatus, "status", "", "Filter by status")
	requestsListCommand.Flags().Int64Var(&requestsTenantID, "tenant", 0, "Filter by tenant id")
	requestsListCommand.Flags().IntVar(&requestsLimit, "limit", 50, "Maximum rows to return")

	requestsRescheduleCommand.Flags().StringVar(&requestsAt, "at", "", "New time (RFC3339 or YYYY-MM-DD)")
	_ = requestsRescheduleCommand.MarkFlagRequired("at")

	requestsCommand.AddCommand(requestsListCommand)
	requestsCommand.AddCommand(requestsShowCommand)
	requestsCommand.AddCommand(requestsRetryCommand)
	requestsCommand.AddCommand(requestsCancelCommand)
	requestsCommand.AddCommand(requestsPauseCommand)
	requestsCommand.AddCommand(requestsResumeCommand)
	requestsCommand.AddCommand(requestsRescheduleCommand)
	requestsCommand.AddCommand(requestsEnqueueCommand)
	requestsCommand.AddCommand(requestsBulkRetryCommand)
	requestsCommand.AddCommand(requestsBulkCancelCommand)
	rootCmd.AddCommand(requestsCommand)
}

// requestsStore opens the store for an operator command.
func requestsStore(ctx context.Context) (*db.DB, error) {
	cfg, err := loadAgentConfig(requestsConfigPath)
	if err != nil {
		return nil, err
	}
	return openStore(ctx, cfg)
}

func parseRequestID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid request id %q", arg)
	}
	return id, nil
}

func parseRequestIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseRequestID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func requestsListCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	store, err := requestsStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	requests, err := store.ListRequests(ctx, db.RequestFilters{
		TenantID: requestsTenantID,
		Status:   requestsStatus,
		Limit:    requestsLimit,
	})
	if err != nil {
		return err
	}

	observability.NewPrinter(os.Stdout).PrintRequestList(requests)
	return nil
}

func requestsShowCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	id, err := parseRequestID(args[0])
	if err != nil {
		return err
	}

	store, err := requestsStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	req, err := store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return fmt.Errorf("request %d not found", id)
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintRequest(req)

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
	return nil
}

// guardedAction runs a CAS-style store action and reports whether the
// request was in a state that allowed it.
func guardedAction(args []string, verb string, action func(ctx context.Context, store *db.DB, id int64) (bool, error)) error {
	ctx := context.Background()
	id, err := parseRequestID(args[0])
	if err != nil {
		return err
	}

	store, err := requestsStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	ok, err := action(ctx, store, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("request %d cannot be %s in its current status", id, verb)
	}
	fmt.Printf("request %d %s\n", id, verb)
	return nil
}

func requestsRetryCmd(_ *cobra.Command, args []string) error {
	return guardedAction(args, "reset to pending", func(ctx context.Context, store *db.DB, id int64) (bool, error) {
		return store.RetryRequest(ctx, id)
	})
}

func requestsCancelCmd(_ *cobra.Command, args []string) error {
	return guardedAction(args, "cancelled", func(ctx context.Context, store *db.DB, id int64) (bool, error) {
		return store.CancelRequest(ctx, id)
	})
}

func requestsPauseCmd(_ *cobra.Command, args []string) error {
	return guardedAction(args, "paused", func(ctx context.Context, store *db.DB, id int64) (bool, error) {
		return store.PauseRequest(ctx, id)
	})
}

func requestsRescheduleCmd(_ *cobra.Command, args []string) error {
	at, err := parseTimeFlag(requestsAt)
	if err != nil {
		return err
	}
	return guardedAction(args, "rescheduled to "+at.Format(time.RFC3339), func(ctx context.Context, store *db.DB, id int64) (bool, error) {
		return store.RescheduleRequest(ctx, id, at)
	})
}

// requestsResumeCmd flips paused back to pending and re-enqueues with the
// recorded step as an advisory resume hint.
func requestsResumeCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	id, err := parseRequestID(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadAgentConfig(requestsConfigPath)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ok, err := store.ResumeRequest(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("request %d is not paused", id)
	}

	req, err := store.GetRequest(ctx, id)
	if err != nil {
		return err
	}

	q, err := openQueue(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()

	s := scheduler.New(store, q, scheduler.Options{})
	jobID, err := s.EnqueueNow(ctx, req, req.CurrentStep)
	if err != nil {
		return err
	}
	fmt.Printf("request %d resumed, job %s\n", id, jobID)
	return nil
}

func requestsEnqueueCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	id, err := parseRequestID(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadAgentConfig(requestsConfigPath)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	req, err := store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return fmt.Errorf("request %d not found", id)
	}
	if req.Status != db.StatusPending {
		return fmt.Errorf("request %d is %s, only pending requests can be enqueued", id, req.Status)
	}

	q, err := openQueue(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()

	s := scheduler.New(store, q, scheduler.Options{})
	jobID, err := s.EnqueueNow(ctx, req, 0)
	if err != nil {
		return err
	}
	fmt.Printf("request %d enqueued, job %s\n", id, jobID)
	return nil
}

func requestsBulkRetryCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	ids, err := parseRequestIDs(args)
	if err != nil {
		return err
	}

	store, err := requestsStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.BulkRetry(ctx, ids)
	if err != nil {
		return err
	}
	fmt.Printf("%d of %d requests reset to pending\n", n, len(ids))
	return nil
}

func requestsBulkCancelCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	ids, err := parseRequestIDs(args)
	if err != nil {
		return err
	}

	store, err := requestsStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.BulkCancel(ctx, ids)
	if err != nil {
		return err
	}
	fmt.Printf("%d of %d requests cancelled\n", n, len(ids))
	return nil
}
