package pipeline

import (
	"context"
	"time"

	"github.com/jonathan/content-pipeline/internal/fetch"
	"github.com/jonathan/content-pipeline/internal/images"
	"github.com/jonathan/content-pipeline/internal/publish"
	"github.com/jonathan/content-pipeline/internal/research"
)

// ContentGenerator is the content-generation collaborator: directive plus a
// JSON context document in, text out. *llm.Generator satisfies it.
type ContentGenerator interface {
	Generate(ctx context.Context, directive string, contextJSON string) (string, error)
}

// Store is the slice of the persistence layer the pipelines touch. *db.DB
// satisfies it.
type Store interface {
	SetCurrentStep(ctx context.Context, id int64, step int) error
	SetContent(ctx context.Context, id int64, html, text string) error
	SaveArtifact(ctx context.Context, requestID int64, stepName string, attempt int, data any) error
	LogExecution(ctx context.Context, requestID int64, stepName string, attempt int, duration time.Duration, success bool, errMsg string) error
}

// ArtifactValidator checks a step artifact against its schema. Validation is
// advisory: failures are logged, never propagated.
type ArtifactValidator interface {
	Validate(stepName string, data any) error
}

// FetchTextFunc pulls visible text from a URL for research synthesis.
type FetchTextFunc func(ctx context.Context, url string) (string, error)

// Deps carries everything the pipelines need. Store and Generator are
// required; nil collaborators degrade the steps that use them (no searchers
// means empty research, no image generator means no images, and so on).
type Deps struct {
	Store     Store
	Generator ContentGenerator

	Searchers     []research.Searcher
	VideoSearcher research.Searcher
	FetchText     FetchTextFunc

	Images      images.Generator
	Publisher   publish.Publisher
	Credentials publish.CredentialStore

	Validator ArtifactValidator

	// Retries/RetryDelay apply to every collaborator-facing step.
	Retries    int
	RetryDelay time.Duration
}

func (d Deps) retries() int {
	if d.Retries > 0 {
		return d.Retries
	}
	return 3
}

func (d Deps) retryDelay() time.Duration {
	if d.RetryDelay > 0 {
		return d.RetryDelay
	}
	return 10 * time.Second
}

// DefaultFetchText adapts the fetch package as a FetchTextFunc.
func DefaultFetchText(ctx context.Context, url string) (string, error) {
	result, err := fetch.URL(ctx, url, nil)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}
