package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/content-pipeline/internal/engine"
	"github.com/jonathan/content-pipeline/internal/llm"
	"github.com/jonathan/content-pipeline/internal/research"
)

const (
	searchResultsPerAngle = 5
	pagesToFetch          = 3
	pageExcerptLimit      = 4000
)

// Drafting builds the drafting pipeline: strategy brief, research synthesis,
// structural outline, draft text, quality review. Handlers are built fresh
// per call, so a returned pipeline is good for exactly one run.
func Drafting(d Deps) *engine.Pipeline {
	p := engine.Define(PipelineDrafting)
	for i, name := range DraftingSteps() {
		var h engine.Handler
		switch name {
		case StepStrategyBrief:
			h = d.strategyBrief
		case StepResearchSynthesis:
			h = d.researchSynthesis
		case StepStructuralOutline:
			h = d.structuralOutline
		case StepDraftText:
			h = d.draftText
		case StepQualityReview:
			h = d.qualityReview
		}
		p.AddStep(name, instrument(d, i, name, h),
			engine.WithRetries(d.retries()), engine.WithRetryDelay(d.retryDelay()))
	}
	return p
}

func (d Deps) strategyBrief(ctx context.Context, pc *engine.Context) (*engine.StepOutput, error) {
	payload, err := pc.MarshalPayload()
	if err != nil {
		return nil, fmt.Errorf("failed to build context payload: %w", err)
	}

	raw, err := d.Generator.Generate(ctx, string(llm.DirectiveStrategyBrief), payload)
	if err != nil {
		return nil, fmt.Errorf("strategy brief generation failed: %w", err)
	}

	var brief StrategyBrief
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(raw)), &brief); err != nil {
		return nil, fmt.Errorf("strategy brief is not valid JSON: %w", err)
	}
	if brief.Angle == "" {
		return nil, fmt.Errorf("strategy brief missing angle")
	}
	return &engine.StepOutput{Data: brief}, nil
}

// researchSynthesis fans the topic's query angles out across the configured
// searchers concurrently. A failing searcher degrades to empty results for
// its angle; the step only fails if synthesis itself fails.
func (d Deps) researchSynthesis(ctx context.Context, pc *engine.Context) (*engine.StepOutput, error) {
	angles := research.QueryAngles(pc.Title)
	perAngle := make([][]research.Result, len(angles))

	if len(d.Searchers) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for i, query := range angles {
			i, query := i, query
			searcher := d.Searchers[i%len(d.Searchers)]
			g.Go(func() error {
				hits, err := searcher.Search(gctx, query, searchResultsPerAngle)
				if err != nil {
					log.Printf("pipeline: request=%d searcher=%s query=%q failed, continuing without: %v",
						pc.RequestID, searcher.Name(), query, err)
					return nil
				}
				perAngle[i] = hits
				return nil
			})
		}
		// Goroutines never return errors; Wait only observes context death.
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var all []research.Result
	for _, hits := range perAngle {
		all = append(all, hits...)
	}
	all = research.Dedup(all)

	excerpts := d.fetchExcerpts(ctx, pc.RequestID, all)

	doc, err := json.Marshal(map[string]any{
		"title":          pc.Title,
		"strategy_brief": pc.Data(StepStrategyBrief),
		"findings":       all,
		"page_excerpts":  excerpts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build research payload: %w", err)
	}

	summary, err := d.Generator.Generate(ctx, string(llm.DirectiveResearchSummary), string(doc))
	if err != nil {
		return nil, fmt.Errorf("research synthesis failed: %w", err)
	}

	return &engine.StepOutput{Data: ResearchSummary{Summary: summary, Sources: all}}, nil
}

// fetchExcerpts pulls visible text from the top result pages, concurrently,
// skipping any page that cannot be fetched.
func (d Deps) fetchExcerpts(ctx context.Context, requestID int64, hits []research.Result) map[string]string {
	if d.FetchText == nil || len(hits) == 0 {
		return nil
	}
	n := len(hits)
	if n > pagesToFetch {
		n = pagesToFetch
	}

	var mu sync.Mutex
	excerpts := make(map[string]string, n)

	g, gctx := errgroup.WithContext(ctx)
	for _, hit := range hits[:n] {
		hit := hit
		g.Go(func() error {
			text, err := d.FetchText(gctx, hit.URL)
			if err != nil {
				log.Printf("pipeline: request=%d fetch %s skipped: %v", requestID, hit.URL, err)
				return nil
			}
			if len(text) > pageExcerptLimit {
				text = text[:pageExcerptLimit]
			}
			mu.Lock()
			excerpts[hit.URL] = text
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return excerpts
}

func (d Deps) structuralOutline(ctx context.Context, pc *engine.Context) (*engine.StepOutput, error) {
	payload, err := pc.MarshalPayload(StepStrategyBrief, StepResearchSynthesis)
	if err != nil {
		return nil, fmt.Errorf("failed to build context payload: %w", err)
	}

	raw, err := d.Generator.Generate(ctx, string(llm.DirectiveOutline), payload)
	if err != nil {
		return nil, fmt.Errorf("outline generation failed: %w", err)
	}

	var outline Outline
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(raw)), &outline); err != nil {
		return nil, fmt.Errorf("outline is not valid JSON: %w", err)
	}
	if len(outline.Sections) == 0 {
		return nil, fmt.Errorf("outline has no sections")
	}
	return &engine.StepOutput{Data: outline}, nil
}

func (d Deps) draftText(ctx context.Context, pc *engine.Context) (*engine.StepOutput, error) {
	payload, err := pc.MarshalPayload(StepStrategyBrief, StepResearchSynthesis, StepStructuralOutline)
	if err != nil {
		return nil, fmt.Errorf("failed to build context payload: %w", err)
	}

	text, err := d.Generator.Generate(ctx, string(llm.DirectiveDraft), payload)
	if err != nil {
		return nil, fmt.Errorf("draft generation failed: %w", err)
	}
	if text == "" {
		return nil, fmt.Errorf("draft came back empty")
	}
	return &engine.StepOutput{Data: Draft{Text: text}}, nil
}

type reviewVerdict struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// qualityReview scores the draft and, below the threshold, runs one revision
// pass. The step output's Text always carries the text that goes forward.
func (d Deps) qualityReview(ctx context.Context, pc *engine.Context) (*engine.StepOutput, error) {
	draft, ok := pc.Data(StepDraftText).(Draft)
	if !ok {
		return nil, fmt.Errorf("quality review requires a draft in context")
	}

	payload, err := pc.MarshalPayload(StepStrategyBrief, StepStructuralOutline, StepDraftText)
	if err != nil {
		return nil, fmt.Errorf("failed to build context payload: %w", err)
	}

	raw, err := d.Generator.Generate(ctx, string(llm.DirectiveReview), payload)
	if err != nil {
		return nil, fmt.Errorf("review generation failed: %w", err)
	}

	var verdict reviewVerdict
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(raw)), &verdict); err != nil {
		return nil, fmt.Errorf("review verdict is not valid JSON: %w", err)
	}
	if verdict.Score < 0 || verdict.Score > 100 {
		return nil, fmt.Errorf("review score %d out of range", verdict.Score)
	}

	review := Review{Score: verdict.Score, Feedback: verdict.Feedback, Text: draft.Text}
	if verdict.Score >= ReviewThreshold {
		return &engine.StepOutput{Data: review}, nil
	}

	doc, err := json.Marshal(map[string]any{
		"title":    pc.Title,
		"draft":    draft.Text,
		"feedback": verdict.Feedback,
		"outline":  pc.Data(StepStructuralOutline),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build revision payload: %w", err)
	}

	revised, err := d.Generator.Generate(ctx, string(llm.DirectiveRevision), string(doc))
	if err != nil {
		return nil, fmt.Errorf("revision failed: %w", err)
	}
	if revised == "" {
		return nil, fmt.Errorf("revision came back empty")
	}

	review.Revised = true
	review.Text = revised
	return &engine.StepOutput{Data: review}, nil
}
