package llm

import (
	"context"
	"fmt"
	"strings"
)

// Directive identifies a content-generation task. Each directive carries its
// own prompt preamble and model tier; steps address the collaborator by
// directive rather than by raw prompt.
type Directive string

const (
	DirectiveStrategyBrief   Directive = "strategy_brief"
	DirectiveResearchSummary Directive = "research_summary"
	DirectiveOutline         Directive = "outline"
	DirectiveDraft           Directive = "draft"
	DirectiveReview          Directive = "review"
	DirectiveRevision        Directive = "revision"
	DirectiveVisualDirection Directive = "visual_direction"
	DirectiveVideoSynthesis  Directive = "video_synthesis"
)

type directiveSpec struct {
	preamble string
	tier     ModelTier
	json     bool
}

var directives = map[Directive]directiveSpec{
	DirectiveStrategyBrief: {
		preamble: `You are a content strategist. Given the topic and tenant context below,
produce a strategy brief as JSON with fields: "angle" (string), "audience" (string),
"tone" (string), "key_messages" ([]string, 3-5 items).`,
		tier: TierStandard,
		json: true,
	},
	DirectiveResearchSummary: {
		preamble: `You are a research analyst. Synthesize the raw findings below into a concise
research summary for a long-form article. Keep concrete facts and cite source URLs inline.`,
		tier: TierStandard,
	},
	DirectiveOutline: {
		preamble: `You are an editor. Given the brief and research below, produce a structural
outline as JSON with field "sections": a list of {"heading": string, "points": []string}.`,
		tier: TierStandard,
		json: true,
	},
	DirectiveDraft: {
		preamble: `You are a long-form writer. Write the full article following the outline,
brief, and research below. Use markdown headings matching the outline sections.`,
		tier: TierAdvanced,
	},
	DirectiveReview: {
		preamble: `You are a quality reviewer. Score the draft below from 0 to 100 for accuracy,
structure, and tone fit with the brief. Return JSON: {"score": int, "feedback": string}.`,
		tier: TierLite,
		json: true,
	},
	DirectiveRevision: {
		preamble: `You are a long-form writer. Revise the draft below to address every point of
the review feedback while preserving the outline structure. Return the full revised article.`,
		tier: TierAdvanced,
	},
	DirectiveVisualDirection: {
		preamble: `You are an art director. Given the article below, produce JSON with fields
"style" (string) and "image_prompts" ([]string, one vivid generation prompt per major section,
at most 4).`,
		tier: TierStandard,
		json: true,
	},
	DirectiveVideoSynthesis: {
		preamble: `You are a multimedia curator. From the video search results below, pick the
most relevant items for the article. Return JSON with field "recommendations": a list of
{"title": string, "url": string, "reason": string}.`,
		tier: TierLite,
		json: true,
	},
}

// Generator is the content-generation collaborator: directive in, text out.
// It is safe to invoke the same directive twice (the quality-review revision
// path relies on this); the provider call has no side effects beyond the
// returned text.
type Generator struct {
	client Client
}

// NewGenerator wraps an LLM client as a directive-addressed generator.
func NewGenerator(client Client) *Generator {
	return &Generator{client: client}
}

// Generate runs a directive against a JSON context document and returns text.
func (g *Generator) Generate(ctx context.Context, directive string, contextJSON string) (string, error) {
	spec, ok := directives[Directive(directive)]
	if !ok {
		return "", fmt.Errorf("unknown directive %q", directive)
	}

	prompt := buildPrompt(spec.preamble, contextJSON)
	if spec.json {
		return g.client.GenerateJSON(ctx, prompt, spec.tier)
	}
	return g.client.GenerateContent(ctx, prompt, spec.tier)
}

// Close releases the underlying client.
func (g *Generator) Close() error {
	return g.client.Close()
}

func buildPrompt(preamble, contextJSON string) string {
	var sb strings.Builder
	sb.WriteString(preamble)
	sb.WriteString("\n\nContext document (JSON):\n\"\"\"\n")
	sb.WriteString(contextJSON)
	sb.WriteString("\n\"\"\"\n")
	return sb.String()
}
