// Package pipeline defines the drafting and multimedia pipelines: the step
// registry, the typed step outputs, and the builders that assemble
// engine pipelines around the external collaborators.
package pipeline

// Pipeline names.
const (
	PipelineDrafting   = "drafting"
	PipelineMultimedia = "multimedia"
)

// Step names. Artifacts, execution-log rows, and context keys all use these.
const (
	StepStrategyBrief     = "strategy_brief"
	StepResearchSynthesis = "research_synthesis"
	StepStructuralOutline = "structural_outline"
	StepDraftText         = "draft_text"
	StepQualityReview     = "quality_review"

	StepVisualDirection = "visual_direction"
	StepVideoCuration   = "video_curation"
	StepImageGeneration = "image_generation"
	StepAssembly        = "assembly"
	StepPublish         = "publish"
)

// ReviewThreshold is the minimum quality-review score that lets a draft pass
// without revision.
const ReviewThreshold = 70

// DraftingSteps returns the drafting pipeline's step names in execution order.
func DraftingSteps() []string {
	return []string{
		StepStrategyBrief,
		StepResearchSynthesis,
		StepStructuralOutline,
		StepDraftText,
		StepQualityReview,
	}
}

// MultimediaSteps returns the multimedia pipeline's step names in execution
// order.
func MultimediaSteps() []string {
	return []string{
		StepVisualDirection,
		StepVideoCuration,
		StepImageGeneration,
		StepAssembly,
		StepPublish,
	}
}
