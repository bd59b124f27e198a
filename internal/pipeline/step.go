package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/jonathan/content-pipeline/internal/engine"
)

// instrument wraps a step handler with the persistence contract: the step
// index is written to the request record before each attempt, and every
// attempt leaves exactly one artifact row and one execution-log row whether
// it succeeded or failed. The attempt counter lives in the closure; the
// engine invokes the same handler for every retry of a step, and handlers
// are built fresh per run.
func instrument(d Deps, index int, name string, inner engine.Handler) engine.Handler {
	attempt := 0
	return func(ctx context.Context, pc *engine.Context) (*engine.StepOutput, error) {
		attempt++

		if err := d.Store.SetCurrentStep(ctx, pc.RequestID, index); err != nil {
			log.Printf("pipeline: request=%d step=%s: set current_step failed: %v", pc.RequestID, name, err)
		}

		start := time.Now()
		out, err := inner(ctx, pc)
		duration := time.Since(start)

		if err != nil {
			d.saveArtifact(ctx, pc.RequestID, name, attempt, map[string]any{"error": err.Error()})
			d.logExecution(ctx, pc.RequestID, name, attempt, duration, false, err.Error())
			return nil, err
		}

		var data any
		if out != nil {
			data = out.Data
		}
		if d.Validator != nil {
			if verr := d.Validator.Validate(name, data); verr != nil {
				log.Printf("pipeline: request=%d step=%s: artifact schema warning: %v", pc.RequestID, name, verr)
			}
		}
		d.saveArtifact(ctx, pc.RequestID, name, attempt, data)
		d.logExecution(ctx, pc.RequestID, name, attempt, duration, true, "")
		return out, nil
	}
}

// saveArtifact persists a step artifact. A store failure here must not mask
// the step's own outcome, so it is logged and swallowed.
func (d Deps) saveArtifact(ctx context.Context, requestID int64, name string, attempt int, data any) {
	if err := d.Store.SaveArtifact(ctx, requestID, name, attempt, data); err != nil {
		log.Printf("pipeline: request=%d step=%s attempt=%d: save artifact failed: %v", requestID, name, attempt, err)
	}
}

func (d Deps) logExecution(ctx context.Context, requestID int64, name string, attempt int, duration time.Duration, success bool, errMsg string) {
	if err := d.Store.LogExecution(ctx, requestID, name, attempt, duration, success, errMsg); err != nil {
		log.Printf("pipeline: request=%d step=%s attempt=%d: log execution failed: %v", requestID, name, attempt, err)
	}
}
