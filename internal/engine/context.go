package engine

import "encoding/json"

// StepOutput is the result a step handler produces on success. Data holds the
// step's typed payload; it is what gets persisted as the step's artifact and
// what later steps read from the accumulated context.
type StepOutput struct {
	Data any
}

// Context is the accumulated state threaded through a pipeline run. It carries
// the request identity unchanged across every merge and maps each completed
// step name to that step's output. It is rebuilt fresh for every run and is
// never persisted directly.
type Context struct {
	RequestID int64
	TenantID  int64
	Title     string

	outputs map[string]*StepOutput
}

// NewContext creates an initial context for a pipeline run.
func NewContext(requestID, tenantID int64, title string) *Context {
	return &Context{
		RequestID: requestID,
		TenantID:  tenantID,
		Title:     title,
		outputs:   make(map[string]*StepOutput),
	}
}

// Seed pre-populates the context with an output under the given step name.
// The worker uses this to hand the drafting pipeline's final text to the
// multimedia pipeline.
func (c *Context) Seed(step string, out *StepOutput) *Context {
	c.outputs[step] = out
	return c
}

// Output returns the output recorded for a step, if any.
func (c *Context) Output(step string) (*StepOutput, bool) {
	out, ok := c.outputs[step]
	return out, ok
}

// Data returns the payload recorded for a step, or nil if the step has not
// produced output.
func (c *Context) Data(step string) any {
	if out, ok := c.outputs[step]; ok {
		return out.Data
	}
	return nil
}

// Steps returns the names of all steps that have recorded output.
func (c *Context) Steps() []string {
	names := make([]string, 0, len(c.outputs))
	for name := range c.outputs {
		names = append(names, name)
	}
	return names
}

// MarshalPayload serializes the named step outputs into a single JSON object
// keyed by step name. Steps use this to build the context document passed to
// external collaborators. Missing steps are omitted.
func (c *Context) MarshalPayload(steps ...string) (string, error) {
	payload := make(map[string]any, len(steps)+1)
	payload["title"] = c.Title
	for _, step := range steps {
		if out, ok := c.outputs[step]; ok {
			payload[step] = out.Data
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// merge records a step's output. Carried fields are never touched, so the
// request identity survives every merge unchanged.
func (c *Context) merge(step string, out *StepOutput) {
	c.outputs[step] = out
}
