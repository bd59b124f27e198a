// Package engine provides the step executor driving content pipelines: an
// ordered list of named steps run against an accumulated context, with
// per-step retry and halt-on-first-failure semantics. The engine is a pure
// control-flow primitive; persistence of artifacts, logs, and request status
// belongs to the step handlers.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// Handler executes one step against the accumulated context. Returning an
// error marks the attempt failed; a nil output with a nil error is treated as
// an empty success.
type Handler func(ctx context.Context, pc *Context) (*StepOutput, error)

// defaultRetries means a single invocation, no retry.
const defaultRetries = 1

type stepDef struct {
	name    string
	handler Handler
	retries int
	delay   time.Duration
}

// StepOption configures a single step's retry behavior.
type StepOption func(*stepDef)

// WithRetries sets the maximum number of handler invocations for the step.
func WithRetries(n int) StepOption {
	return func(s *stepDef) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithRetryDelay sets the fixed delay between attempts of the step.
func WithRetryDelay(d time.Duration) StepOption {
	return func(s *stepDef) {
		if d > 0 {
			s.delay = d
		}
	}
}

// Pipeline is a fixed ordered list of steps built with Define/AddStep and
// executed by Run.
type Pipeline struct {
	name  string
	steps []stepDef
}

// Define starts a new named pipeline definition.
func Define(name string) *Pipeline {
	return &Pipeline{name: name}
}

// Name returns the pipeline's name.
func (p *Pipeline) Name() string { return p.name }

// Len returns the number of registered steps.
func (p *Pipeline) Len() int { return len(p.steps) }

// AddStep appends a step. Steps execute strictly in registration order.
func (p *Pipeline) AddStep(name string, h Handler, opts ...StepOption) *Pipeline {
	def := stepDef{name: name, handler: h, retries: defaultRetries}
	for _, opt := range opts {
		opt(&def)
	}
	p.steps = append(p.steps, def)
	return p
}

// StepResult records how one step fared: how many attempts it took, how long
// it ran in total, and the last error if it failed.
type StepResult struct {
	Name     string
	Index    int
	Attempts int
	Duration time.Duration
	Err      error
}

// Result is the outcome of a pipeline run. On failure, FailedStep names the
// step that exhausted its attempts and Err carries its last error; steps after
// it were never attempted.
type Result struct {
	Pipeline   string
	Success    bool
	FailedStep string
	Err        error
	Context    *Context
	Steps      []StepResult
	Duration   time.Duration
}

// Run executes the pipeline's steps in order against the initial context.
// Each step's handler is invoked up to its configured retry count with a
// fixed delay between attempts; the first step to exhaust its attempts halts
// the run. On step success the output is merged into the context under the
// step's name.
func (p *Pipeline) Run(ctx context.Context, initial *Context) *Result {
	start := time.Now()
	result := &Result{
		Pipeline: p.name,
		Context:  initial,
	}

	for i, step := range p.steps {
		sr := StepResult{Name: step.name, Index: i}
		stepStart := time.Now()

		var out *StepOutput
		var err error
		for attempt := 1; attempt <= step.retries; attempt++ {
			sr.Attempts = attempt

			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
				break
			}

			out, err = invoke(ctx, step.handler, initial)
			if err == nil {
				break
			}
			if attempt < step.retries {
				sleepWithContext(ctx, step.delay)
			}
		}

		sr.Duration = time.Since(stepStart)
		sr.Err = err
		result.Steps = append(result.Steps, sr)

		if err != nil {
			result.Success = false
			result.FailedStep = step.name
			result.Err = fmt.Errorf("step %s failed after %d attempt(s): %w", step.name, sr.Attempts, err)
			result.Duration = time.Since(start)
			return result
		}

		if out == nil {
			out = &StepOutput{}
		}
		initial.merge(step.name, out)
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// invoke runs a handler with panic recovery so a misbehaving step is treated
// as a failed attempt instead of crashing the worker.
func invoke(ctx context.Context, h Handler, pc *Context) (out *StepOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	return h(ctx, pc)
}

// sleepWithContext sleeps for d but returns early if the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
