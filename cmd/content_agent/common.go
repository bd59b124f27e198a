package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jonathan/content-pipeline/internal/config"
	"github.com/jonathan/content-pipeline/internal/db"
	"github.com/jonathan/content-pipeline/internal/images"
	"github.com/jonathan/content-pipeline/internal/llm"
	"github.com/jonathan/content-pipeline/internal/pipeline"
	"github.com/jonathan/content-pipeline/internal/publish"
	"github.com/jonathan/content-pipeline/internal/queue"
	"github.com/jonathan/content-pipeline/internal/research"
	"github.com/jonathan/content-pipeline/internal/schemas"
)

// configFromEnv maps well-known environment variables onto config defaults.
// Explicit config file values and flags take priority over these.
func configFromEnv() config.Config {
	return config.Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RabbitURL:     os.Getenv("RABBITMQ_URL"),
		QueueName:     os.Getenv("QUEUE_NAME"),
		APIKey:        os.Getenv("GEMINI_API_KEY"),
		SearchAPIKey:  os.Getenv("SEARCH_API_KEY"),
		SearchCx:      os.Getenv("SEARCH_CX"),
		VideoSearchCx: os.Getenv("VIDEO_SEARCH_CX"),
		ImageEndpoint: os.Getenv("IMAGE_ENDPOINT"),
		ImageAPIKey:   os.Getenv("IMAGE_API_KEY"),
	}
}

// loadAgentConfig loads the config file (if given), layers environment
// fallbacks and built-in defaults underneath, and validates the result.
func loadAgentConfig(path string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	cfg = cfg.MergeWithDefaults(configFromEnv())
	cfg = cfg.MergeWithDefaults(config.Defaults())

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// openStore connects to Postgres.
func openStore(ctx context.Context, cfg config.Config) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required (--config, database_url, or DATABASE_URL)")
	}
	return db.Connect(ctx, cfg.DatabaseURL)
}

// openQueue connects to RabbitMQ.
func openQueue(cfg config.Config) (queue.Queue, error) {
	if cfg.RabbitURL == "" {
		return nil, fmt.Errorf("rabbit URL is required (--config, rabbit_url, or RABBITMQ_URL)")
	}
	return queue.NewRabbitMQ(queue.RabbitMQConfig{
		URL:         cfg.RabbitURL,
		Queue:       cfg.QueueName,
		MaxAttempts: cfg.QueueMaxAttempts,
	})
}

// buildDeps wires the pipeline collaborators from config. The returned
// cleanup closes the LLM client.
func buildDeps(ctx context.Context, cfg config.Config, store pipeline.Store) (pipeline.Deps, func(), error) {
	if cfg.APIKey == "" {
		return pipeline.Deps{}, nil, fmt.Errorf("content API key is required (--config, api_key, or GEMINI_API_KEY)")
	}

	client, err := llm.NewClient(ctx, llm.DefaultGeminiConfig(), cfg.APIKey)
	if err != nil {
		return pipeline.Deps{}, nil, fmt.Errorf("failed to create content client: %w", err)
	}
	generator := llm.NewGenerator(client)
	cleanup := func() {
		if err := generator.Close(); err != nil {
			log.Printf("failed to close content client: %v", err)
		}
	}

	deps := pipeline.Deps{
		Store:      store,
		Generator:  generator,
		FetchText:  pipeline.DefaultFetchText,
		Retries:    cfg.StepRetries,
		RetryDelay: cfg.StepRetryDelay(),
	}

	if cfg.SearchAPIKey != "" && cfg.SearchCx != "" {
		searcher, err := research.NewGoogleSearcher(ctx, "web", cfg.SearchAPIKey, cfg.SearchCx)
		if err != nil {
			cleanup()
			return pipeline.Deps{}, nil, fmt.Errorf("failed to create searcher: %w", err)
		}
		deps.Searchers = []research.Searcher{searcher}
	}
	if cfg.SearchAPIKey != "" && cfg.VideoSearchCx != "" {
		videoSearcher, err := research.NewGoogleSearcher(ctx, "video", cfg.SearchAPIKey, cfg.VideoSearchCx)
		if err != nil {
			cleanup()
			return pipeline.Deps{}, nil, fmt.Errorf("failed to create video searcher: %w", err)
		}
		deps.VideoSearcher = videoSearcher
	}

	if cfg.ImageEndpoint != "" {
		deps.Images = images.NewHTTPGenerator(cfg.ImageEndpoint, cfg.ImageAPIKey)
	}

	creds, err := cfg.PublishingCredentials()
	if err != nil {
		cleanup()
		return pipeline.Deps{}, nil, err
	}
	deps.Credentials = creds
	deps.Publisher = publish.NewRESTPublisher()

	if dir := schemas.ResolveSchemaDir("schemas"); dir != "" {
		deps.Validator = schemas.NewStepValidator(dir)
	}

	return deps, cleanup, nil
}
