package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-pipeline/internal/db"
	"github.com/jonathan/content-pipeline/internal/pipeline"
	"github.com/jonathan/content-pipeline/internal/publish"
	"github.com/jonathan/content-pipeline/internal/queue"
)

type fakeStore struct {
	claimable bool

	claims          int
	markedFailed    bool
	completedStatus string
	completedLoc    *string
	released        []string

	currentSteps []int
	artifacts    int
	logs         int
	contentSet   bool
}

func (s *fakeStore) ClaimRequest(_ context.Context, _ int64) (bool, error) {
	s.claims++
	return s.claimable, nil
}

func (s *fakeStore) MarkRequestFailed(_ context.Context, _ int64) error {
	s.markedFailed = true
	return nil
}

func (s *fakeStore) CompleteRequest(_ context.Context, _ int64, status string, loc *string) error {
	s.completedStatus = status
	s.completedLoc = loc
	return nil
}

func (s *fakeStore) UpdateRequestStatusFrom(_ context.Context, _ int64, to string, _ ...string) (bool, error) {
	s.released = append(s.released, to)
	return true, nil
}

func (s *fakeStore) SetCurrentStep(_ context.Context, _ int64, step int) error {
	s.currentSteps = append(s.currentSteps, step)
	return nil
}

func (s *fakeStore) SetContent(_ context.Context, _ int64, _, _ string) error {
	s.contentSet = true
	return nil
}

func (s *fakeStore) SaveArtifact(_ context.Context, _ int64, _ string, _ int, _ any) error {
	s.artifacts++
	return nil
}

func (s *fakeStore) LogExecution(_ context.Context, _ int64, _ string, _ int, _ time.Duration, _ bool, _ string) error {
	s.logs++
	return nil
}

type fakeGenerator struct {
	responses map[string]string
	errors    map[string]error
	calls     int
}

func (g *fakeGenerator) Generate(_ context.Context, directive string, _ string) (string, error) {
	g.calls++
	if err, ok := g.errors[directive]; ok {
		return "", err
	}
	resp, ok := g.responses[directive]
	if !ok {
		return "", fmt.Errorf("no canned response for directive %q", directive)
	}
	return resp, nil
}

func cannedResponses() map[string]string {
	return map[string]string{
		"strategy_brief":   `{"angle":"a","audience":"b","tone":"c","key_messages":["m"]}`,
		"research_summary": "summary",
		"outline":          `{"sections":[{"heading":"H","points":["p"]}]}`,
		"draft":            "## H\n\nBody text.",
		"review":           `{"score":90,"feedback":"fine"}`,
		"visual_direction": `{"style":"s","image_prompts":[]}`,
		"video_synthesis":  `{"recommendations":[]}`,
	}
}

func testWorker(store *fakeStore, gen *fakeGenerator, creds publish.CredentialStore, pub publish.Publisher) *Worker {
	return New(store, queue.NewMemory(3), pipeline.Deps{
		Generator:   gen,
		Credentials: creds,
		Publisher:   pub,
		Retries:     1,
		RetryDelay:  time.Millisecond,
	})
}

type fakePublisher struct{ result *publish.Result }

func (p *fakePublisher) Publish(_ context.Context, _ publish.Credentials, _ publish.Post) (*publish.Result, error) {
	return p.result, nil
}

func TestWorker_DraftReadyWithoutCredentials(t *testing.T) {
	store := &fakeStore{claimable: true}
	gen := &fakeGenerator{responses: cannedResponses()}
	w := testWorker(store, gen, publish.StaticCredentials{}, nil)

	err := w.Process(context.Background(), queue.Job{ID: "j", RequestID: 1, TenantID: 7, Title: "T"})
	require.NoError(t, err)

	assert.Equal(t, db.StatusDraftReady, store.completedStatus)
	assert.Nil(t, store.completedLoc)
	assert.False(t, store.markedFailed)
	assert.True(t, store.contentSet)
	// Both pipelines ran: 10 steps, one artifact and one log row each.
	assert.Equal(t, 10, store.artifacts)
	assert.Equal(t, 10, store.logs)
}

func TestWorker_CompleteWithCredentials(t *testing.T) {
	store := &fakeStore{claimable: true}
	gen := &fakeGenerator{responses: cannedResponses()}
	creds := publish.StaticCredentials{7: {Endpoint: "https://cms.example.com", Username: "u", Token: "t"}}
	pub := &fakePublisher{result: &publish.Result{Success: true, PublishedLocation: "https://blog.example.com/t"}}
	w := testWorker(store, gen, creds, pub)

	err := w.Process(context.Background(), queue.Job{RequestID: 1, TenantID: 7, Title: "T"})
	require.NoError(t, err)

	assert.Equal(t, db.StatusComplete, store.completedStatus)
	require.NotNil(t, store.completedLoc)
	assert.Equal(t, "https://blog.example.com/t", *store.completedLoc)
}

func TestWorker_DraftingFailureMarksFailedWithoutRequeue(t *testing.T) {
	store := &fakeStore{claimable: true}
	gen := &fakeGenerator{
		responses: cannedResponses(),
		errors:    map[string]error{"outline": fmt.Errorf("model down")},
	}
	w := testWorker(store, gen, publish.StaticCredentials{}, nil)

	// nil return means the job is acked, not redelivered.
	err := w.Process(context.Background(), queue.Job{RequestID: 1, TenantID: 7, Title: "T"})
	require.NoError(t, err)

	assert.True(t, store.markedFailed)
	assert.Empty(t, store.completedStatus)
	// Drafting halted at index 2; multimedia never started.
	assert.Equal(t, []int{0, 1, 2}, store.currentSteps)
}

func TestWorker_ExecuteReturnsPipelineResults(t *testing.T) {
	store := &fakeStore{claimable: true}
	gen := &fakeGenerator{responses: cannedResponses()}
	w := testWorker(store, gen, publish.StaticCredentials{}, nil)

	results, err := w.Execute(context.Background(), queue.Job{RequestID: 1, TenantID: 7, Title: "T"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Len(t, results[0].Steps, 5)
	assert.Len(t, results[1].Steps, 5)

	// A halted drafting run still surfaces its partial result.
	store = &fakeStore{claimable: true}
	gen = &fakeGenerator{
		responses: cannedResponses(),
		errors:    map[string]error{"outline": fmt.Errorf("model down")},
	}
	w = testWorker(store, gen, publish.StaticCredentials{}, nil)

	results, err = w.Execute(context.Background(), queue.Job{RequestID: 1, TenantID: 7, Title: "T"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "structural_outline", results[0].FailedStep)

	// A lost claim runs nothing.
	store = &fakeStore{claimable: false}
	w = testWorker(store, &fakeGenerator{responses: cannedResponses()}, publish.StaticCredentials{}, nil)
	results, err = w.Execute(context.Background(), queue.Job{RequestID: 1, TenantID: 7, Title: "T"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestWorker_LostClaimSkipsJob(t *testing.T) {
	store := &fakeStore{claimable: false}
	gen := &fakeGenerator{responses: cannedResponses()}
	w := testWorker(store, gen, publish.StaticCredentials{}, nil)

	err := w.Process(context.Background(), queue.Job{RequestID: 1, TenantID: 7, Title: "T"})
	require.NoError(t, err)

	assert.Equal(t, 1, store.claims)
	assert.Zero(t, gen.calls)
	assert.False(t, store.markedFailed)
}

func TestWorker_CancellationReleasesClaim(t *testing.T) {
	store := &fakeStore{claimable: true}
	gen := &fakeGenerator{responses: cannedResponses()}
	w := testWorker(store, gen, publish.StaticCredentials{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Process(ctx, queue.Job{RequestID: 1, TenantID: 7, Title: "T"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.False(t, store.markedFailed)
	assert.Equal(t, []string{db.StatusQueued}, store.released)
}
