package pipeline

import (
	"github.com/jonathan/content-pipeline/internal/images"
	"github.com/jonathan/content-pipeline/internal/research"
)

// StrategyBrief is the strategy_brief step output.
type StrategyBrief struct {
	Angle       string   `json:"angle"`
	Audience    string   `json:"audience"`
	Tone        string   `json:"tone"`
	KeyMessages []string `json:"key_messages"`
}

// ResearchSummary is the research_synthesis step output: the synthesized
// summary plus the deduplicated raw hits it was built from.
type ResearchSummary struct {
	Summary string            `json:"summary"`
	Sources []research.Result `json:"sources"`
}

// OutlineSection is one planned section of the piece.
type OutlineSection struct {
	Heading string   `json:"heading"`
	Points  []string `json:"points"`
}

// Outline is the structural_outline step output.
type Outline struct {
	Sections []OutlineSection `json:"sections"`
}

// Draft is the draft_text step output.
type Draft struct {
	Text string `json:"text"`
}

// Review is the quality_review step output. Text always holds the text that
// goes forward: the original draft when the score cleared the threshold, the
// revised draft otherwise.
type Review struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
	Revised  bool   `json:"revised"`
	Text     string `json:"text"`
}

// VisualDirection is the visual_direction step output.
type VisualDirection struct {
	Style        string   `json:"style"`
	ImagePrompts []string `json:"image_prompts"`
}

// VideoRecommendation is one curated video reference.
type VideoRecommendation struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// VideoCuration is the video_curation step output.
type VideoCuration struct {
	Recommendations []VideoRecommendation `json:"recommendations"`
}

// ImageSet is the image_generation step output. FailedPrompts records prompts
// whose generation was skipped after failing.
type ImageSet struct {
	Images        []images.Image `json:"images"`
	FailedPrompts []string       `json:"failed_prompts,omitempty"`
}

// Assembly is the assembly step output: the merged deliverables.
type Assembly struct {
	HTML       string `json:"html"`
	Text       string `json:"text"`
	ImageCount int    `json:"image_count"`
	VideoCount int    `json:"video_count"`
}

// PublishOutcome is the publish step output. A tenant without publishing
// credentials gets Deployed=false with an explanatory message; that is a
// successful outcome, not a failure.
type PublishOutcome struct {
	Deployed bool   `json:"deployed"`
	Location string `json:"location,omitempty"`
	Message  string `json:"message,omitempty"`
}
