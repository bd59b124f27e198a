package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/content-pipeline/internal/images"
	"github.com/jonathan/content-pipeline/internal/publish"
	"github.com/jonathan/content-pipeline/internal/research"
)

type savedArtifact struct {
	Step    string
	Attempt int
	Data    any
}

type loggedExecution struct {
	Step    string
	Attempt int
	Success bool
	Error   string
}

type fakeStore struct {
	mu           sync.Mutex
	currentSteps []int
	artifacts    []savedArtifact
	logs         []loggedExecution
	html, text   string
	contentSet   bool
}

func (s *fakeStore) SetCurrentStep(_ context.Context, _ int64, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentSteps = append(s.currentSteps, step)
	return nil
}

func (s *fakeStore) SetContent(_ context.Context, _ int64, html, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html, s.text, s.contentSet = html, text, true
	return nil
}

func (s *fakeStore) SaveArtifact(_ context.Context, _ int64, stepName string, attempt int, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = append(s.artifacts, savedArtifact{Step: stepName, Attempt: attempt, Data: data})
	return nil
}

func (s *fakeStore) LogExecution(_ context.Context, _ int64, stepName string, attempt int, _ time.Duration, success bool, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, loggedExecution{Step: stepName, Attempt: attempt, Success: success, Error: errMsg})
	return nil
}

func (s *fakeStore) logsFor(step string) []loggedExecution {
	var out []loggedExecution
	for _, l := range s.logs {
		if l.Step == step {
			out = append(out, l)
		}
	}
	return out
}

// fakeGenerator answers directives from a canned map and records every call.
type fakeGenerator struct {
	responses map[string]string
	errors    map[string]error
	calls     []string
}

func (g *fakeGenerator) Generate(_ context.Context, directive string, _ string) (string, error) {
	g.calls = append(g.calls, directive)
	if err, ok := g.errors[directive]; ok {
		return "", err
	}
	resp, ok := g.responses[directive]
	if !ok {
		return "", fmt.Errorf("no canned response for directive %q", directive)
	}
	return resp, nil
}

func (g *fakeGenerator) callCount(directive string) int {
	n := 0
	for _, c := range g.calls {
		if c == directive {
			n++
		}
	}
	return n
}

type fakeSearcher struct {
	name string
	hits []research.Result
	err  error
}

func (s *fakeSearcher) Name() string { return s.name }

func (s *fakeSearcher) Search(_ context.Context, query string, _ int) ([]research.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]research.Result, len(s.hits))
	copy(out, s.hits)
	for i := range out {
		out[i].Source = s.name
	}
	_ = query
	return out, nil
}

type fakeImageGen struct {
	fail map[string]bool
}

func (g *fakeImageGen) Generate(_ context.Context, prompt string) (*images.Image, error) {
	if g.fail[prompt] {
		return nil, fmt.Errorf("generation refused")
	}
	return &images.Image{Prompt: prompt, URL: "https://cdn.example.com/" + prompt + ".png"}, nil
}

type fakePublisher struct {
	result *publish.Result
	err    error
	posts  []publish.Post
}

func (p *fakePublisher) Publish(_ context.Context, _ publish.Credentials, post publish.Post) (*publish.Result, error) {
	p.posts = append(p.posts, post)
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func draftingResponses() map[string]string {
	return map[string]string{
		"strategy_brief":   `{"angle":"practical guide","audience":"practitioners","tone":"direct","key_messages":["m1","m2","m3"]}`,
		"research_summary": "Synthesized research summary.",
		"outline":          `{"sections":[{"heading":"Background","points":["p1"]},{"heading":"Practice","points":["p2","p3"]}]}`,
		"draft":            "## Background\n\nOpening paragraph.\n\n## Practice\n\n- first point\n- second point",
		"review":           `{"score":85,"feedback":"solid"}`,
		"revision":         "Revised article text.",
	}
}

func multimediaResponses() map[string]string {
	return map[string]string{
		"visual_direction": `{"style":"documentary","image_prompts":["a red barn","a green field"]}`,
		"video_synthesis":  `{"recommendations":[{"title":"Deep dive","url":"https://video.example.com/1","reason":"thorough"}]}`,
	}
}
