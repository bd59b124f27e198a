package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jonathan/content-pipeline/internal/engine"
	"github.com/jonathan/content-pipeline/internal/llm"
	"github.com/jonathan/content-pipeline/internal/research"
)

const maxImagePrompts = 4

// Multimedia builds the multimedia pipeline: visual direction, video
// curation, image generation, assembly, publish. The context must carry the
// drafting pipeline's quality_review output (the worker seeds it).
func Multimedia(d Deps) *engine.Pipeline {
	p := engine.Define(PipelineMultimedia)
	for i, name := range MultimediaSteps() {
		var h engine.Handler
		switch name {
		case StepVisualDirection:
			h = d.visualDirection
		case StepVideoCuration:
			h = d.videoCuration
		case StepImageGeneration:
			h = d.imageGeneration
		case StepAssembly:
			h = d.assembly
		case StepPublish:
			h = d.publishStep
		}
		p.AddStep(name, instrument(d, i, name, h),
			engine.WithRetries(d.retries()), engine.WithRetryDelay(d.retryDelay()))
	}
	return p
}

// FinalText returns the text that survived quality review, the input to
// every multimedia step.
func FinalText(pc *engine.Context) (string, error) {
	review, ok := pc.Data(StepQualityReview).(Review)
	if !ok || review.Text == "" {
		return "", fmt.Errorf("no reviewed text in context")
	}
	return review.Text, nil
}

func (d Deps) visualDirection(ctx context.Context, pc *engine.Context) (*engine.StepOutput, error) {
	text, err := FinalText(pc)
	if err != nil {
		return nil, err
	}

	doc, err := json.Marshal(map[string]any{"title": pc.Title, "article": text})
	if err != nil {
		return nil, fmt.Errorf("failed to build visual payload: %w", err)
	}

	raw, err := d.Generator.Generate(ctx, string(llm.DirectiveVisualDirection), string(doc))
	if err != nil {
		return nil, fmt.Errorf("visual direction generation failed: %w", err)
	}

	var direction VisualDirection
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(raw)), &direction); err != nil {
		return nil, fmt.Errorf("visual direction is not valid JSON: %w", err)
	}
	if len(direction.ImagePrompts) > maxImagePrompts {
		direction.ImagePrompts = direction.ImagePrompts[:maxImagePrompts]
	}
	return &engine.StepOutput{Data: direction}, nil
}

// videoCuration searches for topical videos and has the collaborator pick
// the relevant ones. No searcher, a failed search, or zero hits all degrade
// to an empty curation.
func (d Deps) videoCuration(ctx context.Context, pc *engine.Context) (*engine.StepOutput, error) {
	empty := &engine.StepOutput{Data: VideoCuration{}}
	if d.VideoSearcher == nil {
		return empty, nil
	}

	hits, err := d.VideoSearcher.Search(ctx, research.VideoQuery(pc.Title), searchResultsPerAngle)
	if err != nil {
		log.Printf("pipeline: request=%d video search failed, continuing without: %v", pc.RequestID, err)
		return empty, nil
	}
	if len(hits) == 0 {
		return empty, nil
	}

	doc, err := json.Marshal(map[string]any{"title": pc.Title, "results": hits})
	if err != nil {
		return nil, fmt.Errorf("failed to build curation payload: %w", err)
	}

	raw, err := d.Generator.Generate(ctx, string(llm.DirectiveVideoSynthesis), string(doc))
	if err != nil {
		return nil, fmt.Errorf("video curation failed: %w", err)
	}

	var curation VideoCuration
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(raw)), &curation); err != nil {
		return nil, fmt.Errorf("video curation is not valid JSON: %w", err)
	}
	return &engine.StepOutput{Data: curation}, nil
}

// imageGeneration renders the visual direction's prompts. Per-prompt
// failures are logged and skipped; the step itself only fails when every
// collaborator call is impossible.
func (d Deps) imageGeneration(ctx context.Context, pc *engine.Context) (*engine.StepOutput, error) {
	set := ImageSet{}
	direction, ok := pc.Data(StepVisualDirection).(VisualDirection)
	if !ok || d.Images == nil || len(direction.ImagePrompts) == 0 {
		return &engine.StepOutput{Data: set}, nil
	}

	for _, prompt := range direction.ImagePrompts {
		img, err := d.Images.Generate(ctx, prompt)
		if err != nil {
			log.Printf("pipeline: request=%d image prompt %q skipped: %v", pc.RequestID, prompt, err)
			set.FailedPrompts = append(set.FailedPrompts, prompt)
			continue
		}
		set.Images = append(set.Images, *img)
	}
	return &engine.StepOutput{Data: set}, nil
}

// assembly merges the reviewed text with image and video references into the
// HTML and plain-text deliverables and stores them on the request record.
func (d Deps) assembly(ctx context.Context, pc *engine.Context) (*engine.StepOutput, error) {
	text, err := FinalText(pc)
	if err != nil {
		return nil, err
	}
	imageSet, _ := pc.Data(StepImageGeneration).(ImageSet)
	curation, _ := pc.Data(StepVideoCuration).(VideoCuration)

	html := renderHTML(pc.Title, text, imageSet.Images, curation.Recommendations)
	plain := renderPlainText(text, curation.Recommendations)

	if err := d.Store.SetContent(ctx, pc.RequestID, html, plain); err != nil {
		return nil, fmt.Errorf("failed to store assembled content: %w", err)
	}

	return &engine.StepOutput{Data: Assembly{
		HTML:       html,
		Text:       plain,
		ImageCount: len(imageSet.Images),
		VideoCount: len(curation.Recommendations),
	}}, nil
}

// publishStep delivers the assembled post to the tenant's publishing target.
// A tenant without credentials is a successful not-deployed outcome; a
// configured target that rejects the post is a step failure.
func (d Deps) publishStep(ctx context.Context, pc *engine.Context) (*engine.StepOutput, error) {
	assembled, ok := pc.Data(StepAssembly).(Assembly)
	if !ok {
		return nil, fmt.Errorf("publish requires assembled content in context")
	}

	if d.Credentials == nil {
		return &engine.StepOutput{Data: PublishOutcome{Message: "no credential store configured"}}, nil
	}
	creds, found, err := d.Credentials.Lookup(ctx, pc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("credential lookup failed: %w", err)
	}
	if !found {
		return &engine.StepOutput{Data: PublishOutcome{Message: "tenant has no publishing credentials"}}, nil
	}

	imageSet, _ := pc.Data(StepImageGeneration).(ImageSet)
	urls := make([]string, 0, len(imageSet.Images))
	for _, img := range imageSet.Images {
		urls = append(urls, img.URL)
	}

	result, err := d.Publisher.Publish(ctx, creds, publishPost(pc.Title, assembled.HTML, urls))
	if err != nil {
		return nil, fmt.Errorf("publish failed: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("publishing target rejected the post: %s", result.Error)
	}

	return &engine.StepOutput{Data: PublishOutcome{Deployed: true, Location: result.PublishedLocation}}, nil
}
