package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-pipeline/internal/engine"
	"github.com/jonathan/content-pipeline/internal/research"
)

func testDeps(gen *fakeGenerator, store *fakeStore) Deps {
	return Deps{
		Store:      store,
		Generator:  gen,
		Retries:    2,
		RetryDelay: time.Millisecond,
	}
}

func TestDrafting_HappyPath(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{responses: draftingResponses()}
	deps := testDeps(gen, store)
	deps.Searchers = []research.Searcher{
		&fakeSearcher{name: "web", hits: []research.Result{
			{Title: "Hit A", URL: "https://a.example.com", Snippet: "a"},
			{Title: "Hit B", URL: "https://b.example.com", Snippet: "b"},
		}},
	}

	result := Drafting(deps).Run(context.Background(), engine.NewContext(1, 7, "Topic"))
	require.True(t, result.Success, "run failed: %v", result.Err)

	// Every step left exactly one context entry.
	for _, name := range DraftingSteps() {
		_, ok := result.Context.Output(name)
		assert.True(t, ok, "missing context output for %s", name)
	}

	// current_step written in order, one artifact and one log row per step.
	assert.Equal(t, []int{0, 1, 2, 3, 4}, store.currentSteps)
	assert.Len(t, store.artifacts, len(DraftingSteps()))
	assert.Len(t, store.logs, len(DraftingSteps()))
	for _, l := range store.logs {
		assert.True(t, l.Success)
		assert.Equal(t, 1, l.Attempt)
	}

	review, ok := result.Context.Data(StepQualityReview).(Review)
	require.True(t, ok)
	assert.Equal(t, 85, review.Score)
	assert.False(t, review.Revised)
	assert.Contains(t, review.Text, "Opening paragraph")

	summary, ok := result.Context.Data(StepResearchSynthesis).(ResearchSummary)
	require.True(t, ok)
	assert.Len(t, summary.Sources, 2)
	assert.Equal(t, "web", summary.Sources[0].Source)
}

func TestDrafting_FailedSearcherDegrades(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{responses: draftingResponses()}
	deps := testDeps(gen, store)
	deps.Searchers = []research.Searcher{
		&fakeSearcher{name: "down", err: fmt.Errorf("search backend unavailable")},
	}

	result := Drafting(deps).Run(context.Background(), engine.NewContext(1, 7, "Topic"))
	require.True(t, result.Success, "run failed: %v", result.Err)

	summary, ok := result.Context.Data(StepResearchSynthesis).(ResearchSummary)
	require.True(t, ok)
	assert.Empty(t, summary.Sources)
}

func TestDrafting_ReviewBelowThresholdRevises(t *testing.T) {
	store := &fakeStore{}
	responses := draftingResponses()
	responses["review"] = `{"score":40,"feedback":"structure drifts from the outline"}`
	gen := &fakeGenerator{responses: responses}

	result := Drafting(testDeps(gen, store)).Run(context.Background(), engine.NewContext(1, 7, "Topic"))
	require.True(t, result.Success, "run failed: %v", result.Err)

	review, ok := result.Context.Data(StepQualityReview).(Review)
	require.True(t, ok)
	assert.Equal(t, 40, review.Score)
	assert.True(t, review.Revised)
	assert.Equal(t, "Revised article text.", review.Text)
	assert.Equal(t, 1, gen.callCount("revision"))
}

func TestDrafting_ReviewAtThresholdPassesThrough(t *testing.T) {
	store := &fakeStore{}
	responses := draftingResponses()
	responses["review"] = `{"score":70,"feedback":"just clears"}`
	gen := &fakeGenerator{responses: responses}

	result := Drafting(testDeps(gen, store)).Run(context.Background(), engine.NewContext(1, 7, "Topic"))
	require.True(t, result.Success, "run failed: %v", result.Err)

	review := result.Context.Data(StepQualityReview).(Review)
	assert.False(t, review.Revised)
	assert.Equal(t, 0, gen.callCount("revision"))
}

// Same inputs, same collaborator answers, same decision both times.
func TestDrafting_ReviewDeterministic(t *testing.T) {
	for run := 0; run < 2; run++ {
		store := &fakeStore{}
		responses := draftingResponses()
		responses["review"] = `{"score":69,"feedback":"one short"}`
		gen := &fakeGenerator{responses: responses}

		result := Drafting(testDeps(gen, store)).Run(context.Background(), engine.NewContext(1, 7, "Topic"))
		require.True(t, result.Success)
		review := result.Context.Data(StepQualityReview).(Review)
		assert.True(t, review.Revised, "run %d", run)
	}
}

func TestDrafting_FailureHaltsAndLogsEveryAttempt(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{
		responses: draftingResponses(),
		errors:    map[string]error{"outline": fmt.Errorf("model overloaded")},
	}

	result := Drafting(testDeps(gen, store)).Run(context.Background(), engine.NewContext(1, 7, "Topic"))
	require.False(t, result.Success)
	assert.Equal(t, StepStructuralOutline, result.FailedStep)

	// Two attempts (Retries=2), one log row and one error artifact each.
	outlineLogs := store.logsFor(StepStructuralOutline)
	require.Len(t, outlineLogs, 2)
	assert.False(t, outlineLogs[0].Success)
	assert.Equal(t, 1, outlineLogs[0].Attempt)
	assert.Equal(t, 2, outlineLogs[1].Attempt)
	assert.Contains(t, outlineLogs[1].Error, "model overloaded")

	// Later steps never ran.
	assert.Empty(t, store.logsFor(StepDraftText))
	assert.Equal(t, 0, gen.callCount("draft"))

	// current_step stuck at the failed step's index.
	require.NotEmpty(t, store.currentSteps)
	assert.Equal(t, 2, store.currentSteps[len(store.currentSteps)-1])
}

func TestDrafting_PageExcerptsFetched(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{responses: draftingResponses()}
	deps := testDeps(gen, store)
	deps.Searchers = []research.Searcher{
		&fakeSearcher{name: "web", hits: []research.Result{
			{Title: "Hit A", URL: "https://a.example.com"},
		}},
	}
	var fetched []string
	deps.FetchText = func(_ context.Context, url string) (string, error) {
		fetched = append(fetched, url)
		return "page text", nil
	}

	result := Drafting(deps).Run(context.Background(), engine.NewContext(1, 7, "Topic"))
	require.True(t, result.Success, "run failed: %v", result.Err)
	assert.Equal(t, []string{"https://a.example.com"}, fetched)
}
