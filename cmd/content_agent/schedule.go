package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-pipeline/internal/queue"
	"github.com/jonathan/content-pipeline/internal/scheduler"
)

var scheduleCommand = &cobra.Command{
	Use:   "schedule",
	Short: "Create future-dated content requests and recurring schedules",
}

var scheduleAddCommand = &cobra.Command{
	Use:   "add",
	Short: "Schedule one content request",
	RunE:  scheduleAddCmd,
}

var scheduleBulkCommand = &cobra.Command{
	Use:   "bulk",
	Short: "Schedule several titles spaced at a fixed interval",
	RunE:  scheduleBulkCmd,
}

var scheduleRecurringCommand = &cobra.Command{
	Use:   "recurring",
	Short: "Expand a recurring schedule into future slots",
	Long:  "Creates lightweight schedule entries from a recurrence rule. The scheduler daemon materializes each entry into a request when its time arrives. The title template may use {n} and {date}.",
	RunE:  scheduleRecurringCmd,
}

var (
	scheduleConfigPath    string
	scheduleTenantID      int64
	scheduleTitle         string
	scheduleAt            string
	scheduleTitles        []string
	scheduleStart         string
	scheduleIntervalHours int
	scheduleTemplate      string
	scheduleFrequency     string
	scheduleEnd           string
	scheduleCount         int
)

func init() {
	scheduleCommand.PersistentFlags().StringVar(&scheduleConfigPath, "config", "", "Path to config.json file")
	scheduleCommand.PersistentFlags().Int64Var(&scheduleTenantID, "tenant", 0, "Tenant id the content belongs to")
	_ = scheduleCommand.MarkPersistentFlagRequired("tenant")

	scheduleAddCommand.Flags().StringVar(&scheduleTitle, "title", "", "Content title/topic")
	scheduleAddCommand.Flags().StringVar(&scheduleAt, "at", "", "When to produce it (RFC3339, default now)")
	_ = scheduleAddCommand.MarkFlagRequired("title")

	scheduleBulkCommand.Flags().StringSliceVar(&scheduleTitles, "titles", nil, "Comma-separated titles")
	scheduleBulkCommand.Flags().StringVar(&scheduleStart, "start", "", "First slot (RFC3339, default now)")
	scheduleBulkCommand.Flags().IntVar(&scheduleIntervalHours, "interval-hours", 24, "Hours between slots")
	_ = scheduleBulkCommand.MarkFlagRequired("titles")

	scheduleRecurringCommand.Flags().StringVar(&scheduleTemplate, "template", "", "Title template, e.g. \"Weekly digest {n}\"")
	scheduleRecurringCommand.Flags().StringVar(&scheduleFrequency, "frequency", "", "daily, weekly, biweekly, or monthly")
	scheduleRecurringCommand.Flags().StringVar(&scheduleStart, "start", "", "Series anchor; first slot falls one interval later (RFC3339, default now)")
	scheduleRecurringCommand.Flags().StringVar(&scheduleEnd, "end", "", "Last possible occurrence (RFC3339)")
	scheduleRecurringCommand.Flags().IntVar(&scheduleCount, "count", 0, "Maximum number of occurrences")
	_ = scheduleRecurringCommand.MarkFlagRequired("template")
	_ = scheduleRecurringCommand.MarkFlagRequired("frequency")

	scheduleCommand.AddCommand(scheduleAddCommand)
	scheduleCommand.AddCommand(scheduleBulkCommand)
	scheduleCommand.AddCommand(scheduleRecurringCommand)
	rootCmd.AddCommand(scheduleCommand)
}

// parseTimeFlag parses an RFC3339 flag value, defaulting to now when empty.
func parseTimeFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		// Accept bare dates too.
		if d, derr := time.Parse(time.DateOnly, value); derr == nil {
			return d, nil
		}
		return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or YYYY-MM-DD): %w", value, err)
	}
	return t, nil
}

// offlineScheduler builds a scheduler for create-only operations; these never
// touch the queue, so no broker connection is needed.
func offlineScheduler(ctx context.Context) (*scheduler.Scheduler, func(), error) {
	cfg, err := loadAgentConfig(scheduleConfigPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	s := scheduler.New(store, queue.NewMemory(1), scheduler.Options{})
	return s, store.Close, nil
}

func scheduleAddCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	s, cleanup, err := offlineScheduler(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	at, err := parseTimeFlag(scheduleAt)
	if err != nil {
		return err
	}

	id, err := s.AddContent(ctx, scheduleTenantID, scheduleTitle, at)
	if err != nil {
		return err
	}
	fmt.Printf("created request %d scheduled for %s\n", id, at.Format(time.RFC3339))
	return nil
}

func scheduleBulkCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	s, cleanup, err := offlineScheduler(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	start, err := parseTimeFlag(scheduleStart)
	if err != nil {
		return err
	}

	ids, err := s.BulkAddContent(ctx, scheduleTenantID, scheduleTitles, start, scheduleIntervalHours)
	if err != nil {
		return err
	}
	fmt.Printf("created %d requests: %s\n", len(ids), joinIDs(ids))
	return nil
}

func scheduleRecurringCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	s, cleanup, err := offlineScheduler(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	start, err := parseTimeFlag(scheduleStart)
	if err != nil {
		return err
	}

	spec := scheduler.RecurrenceSpec{
		TitleTemplate: scheduleTemplate,
		Frequency:     scheduleFrequency,
		Start:         start,
		Count:         scheduleCount,
	}
	if scheduleEnd != "" {
		end, err := parseTimeFlag(scheduleEnd)
		if err != nil {
			return err
		}
		spec.End = &end
	}

	ids, err := s.AddRecurring(ctx, scheduleTenantID, spec)
	if err != nil {
		return err
	}
	fmt.Printf("created %d schedule entries\n", len(ids))
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
