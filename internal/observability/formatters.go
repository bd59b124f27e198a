// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/content-pipeline/internal/db"
	"github.com/jonathan/content-pipeline/internal/engine"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRequest outputs a human-readable summary of one request record.
func (p *Printer) PrintRequest(req *db.Request) {
	if req == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID:         %d\n", req.ID))
	sb.WriteString(fmt.Sprintf("Tenant:     %d\n", req.TenantID))
	sb.WriteString(fmt.Sprintf("Title:      %s\n", req.Title))
	sb.WriteString(fmt.Sprintf("Status:     %s\n", req.Status))
	sb.WriteString(fmt.Sprintf("Step:       %d\n", req.CurrentStep))
	sb.WriteString(fmt.Sprintf("Scheduled:  %s", req.ScheduledFor.Format(time.RFC3339)))
	if req.PublishedLocation != nil {
		sb.WriteString(fmt.Sprintf("\nPublished:  %s", *req.PublishedLocation))
	}
	if req.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("\nCompleted:  %s", req.CompletedAt.Format(time.RFC3339)))
	}

	p.printBox("REQUEST", sb.String())
}

// PrintRequestList outputs a compact table of request records.
func (p *Printer) PrintRequestList(requests []db.Request) {
	if len(requests) == 0 {
		p.printBox("REQUESTS", "(none)")
		return
	}

	var sb strings.Builder
	for i, req := range requests {
		title := req.Title
		if len(title) > 28 {
			title = title[:25] + "..."
		}
		sb.WriteString(fmt.Sprintf("%-6d %-11s %s", req.ID, req.Status, title))
		if i < len(requests)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(fmt.Sprintf("REQUESTS (%d)", len(requests)), sb.String())
}

// PrintRunResult outputs a pipeline run's per-step attempts and timings.
func (p *Printer) PrintRunResult(result *engine.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	for _, step := range result.Steps {
		mark := "✓"
		if step.Err != nil {
			mark = "✗"
		}
		sb.WriteString(fmt.Sprintf("%s %-22s %d attempt(s)  %s\n",
			mark, step.Name, step.Attempts, step.Duration.Round(time.Millisecond)))
	}
	if result.Success {
		sb.WriteString(fmt.Sprintf("\ncompleted in %s", result.Duration.Round(time.Millisecond)))
	} else {
		sb.WriteString(fmt.Sprintf("\nfailed at %s: %v", result.FailedStep, result.Err))
	}

	p.printBox(fmt.Sprintf("PIPELINE %s", strings.ToUpper(result.Pipeline)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintExecutionLog outputs a request's execution history.
func (p *Printer) PrintExecutionLog(entries []db.ExecutionEntry) {
	if len(entries) == 0 {
		p.printBox("EXECUTION LOG", "(empty)")
		return
	}

	var sb strings.Builder
	count := min(len(entries), maxItemsToShow)
	for i := 0; i < count; i++ {
		e := entries[i]
		mark := "✓"
		if !e.Success {
			mark = "✗"
		}
		sb.WriteString(fmt.Sprintf("%s %-22s #%d  %dms\n", mark, e.StepName, e.Attempt, e.DurationMs))
		if e.Error != nil {
			msg := *e.Error
			if len(msg) > 45 {
				msg = msg[:42] + "..."
			}
			sb.WriteString(fmt.Sprintf("    %s\n", msg))
		}
	}
	if len(entries) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more entries\n", len(entries)-maxItemsToShow))
	}

	p.printBox("EXECUTION LOG", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintArtifacts outputs a request's artifact history with payload previews.
func (p *Printer) PrintArtifacts(artifacts []db.Artifact) {
	if len(artifacts) == 0 {
		p.printBox("ARTIFACTS", "(empty)")
		return
	}

	var sb strings.Builder
	for i, a := range artifacts {
		sb.WriteString(fmt.Sprintf("%s #%d\n", a.StepName, a.Attempt))
		if preview := artifactPreview(a.Data); preview != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", preview))
		}
		if i < len(artifacts)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(fmt.Sprintf("ARTIFACTS (%d)", len(artifacts)), strings.TrimSuffix(sb.String(), "\n"))
}

// artifactPreview renders a one-line preview of an artifact payload.
func artifactPreview(data any) string {
	if data == nil {
		return ""
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	preview := string(raw)
	if len(preview) > 50 {
		preview = preview[:47] + "..."
	}
	return preview
}
