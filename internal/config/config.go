// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/content-pipeline/internal/publish"
)

// Config represents the agent configuration that can be loaded from a JSON
// file. All fields are optional; missing values use defaults or must be
// provided via CLI flags or environment variables.
type Config struct {
	// Infrastructure
	DatabaseURL string `json:"database_url,omitempty" validate:"omitempty,startswith=postgres://|startswith=postgresql://"`
	RabbitURL   string `json:"rabbit_url,omitempty" validate:"omitempty,startswith=amqp://|startswith=amqps://"`
	QueueName   string `json:"queue_name,omitempty"`

	// Collaborators
	APIKey        string `json:"api_key,omitempty"`         // content-generation API key
	SearchAPIKey  string `json:"search_api_key,omitempty"`  // custom search API key
	SearchCx      string `json:"search_cx,omitempty"`       // web search engine id
	VideoSearchCx string `json:"video_search_cx,omitempty"` // video search engine id
	ImageEndpoint string `json:"image_endpoint,omitempty" validate:"omitempty,url"`
	ImageAPIKey   string `json:"image_api_key,omitempty"`

	// Per-tenant publishing credentials, keyed by tenant id.
	Publishing map[string]publish.Credentials `json:"publishing,omitempty"`

	// Behavior
	PollIntervalSeconds int  `json:"poll_interval_seconds,omitempty" validate:"gte=0,lte=3600"`
	BatchSize           int  `json:"batch_size,omitempty" validate:"gte=0,lte=1000"`
	StepRetries         int  `json:"step_retries,omitempty" validate:"gte=0,lte=10"`
	StepRetryDelaySecs  int  `json:"step_retry_delay_seconds,omitempty" validate:"gte=0,lte=600"`
	QueueMaxAttempts    int  `json:"queue_max_attempts,omitempty" validate:"gte=0,lte=20"`
	Verbose             bool `json:"verbose,omitempty"`
}

var validate = validator.New()

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values. Required fields
// are not checked here; each subcommand enforces what it actually needs
// after merging.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	for key := range c.Publishing {
		if _, err := strconv.ParseInt(key, 10, 64); err != nil {
			return fmt.Errorf("config error: publishing key %q is not a tenant id", key)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. This is used to apply config file values as defaults for CLI
// flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RabbitURL == "" {
		result.RabbitURL = defaults.RabbitURL
	}
	if result.QueueName == "" {
		result.QueueName = defaults.QueueName
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.SearchAPIKey == "" {
		result.SearchAPIKey = defaults.SearchAPIKey
	}
	if result.SearchCx == "" {
		result.SearchCx = defaults.SearchCx
	}
	if result.VideoSearchCx == "" {
		result.VideoSearchCx = defaults.VideoSearchCx
	}
	if result.ImageEndpoint == "" {
		result.ImageEndpoint = defaults.ImageEndpoint
	}
	if result.ImageAPIKey == "" {
		result.ImageAPIKey = defaults.ImageAPIKey
	}
	if result.Publishing == nil {
		result.Publishing = defaults.Publishing
	}

	if result.PollIntervalSeconds == 0 {
		result.PollIntervalSeconds = defaults.PollIntervalSeconds
	}
	if result.BatchSize == 0 {
		result.BatchSize = defaults.BatchSize
	}
	if result.StepRetries == 0 {
		result.StepRetries = defaults.StepRetries
	}
	if result.StepRetryDelaySecs == 0 {
		result.StepRetryDelaySecs = defaults.StepRetryDelaySecs
	}
	if result.QueueMaxAttempts == 0 {
		result.QueueMaxAttempts = defaults.QueueMaxAttempts
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Defaults returns the built-in defaults applied under any config file.
func Defaults() Config {
	return Config{
		QueueName:           "content.requests",
		PollIntervalSeconds: 60,
		BatchSize:           50,
		StepRetries:         3,
		StepRetryDelaySecs:  10,
		QueueMaxAttempts:    3,
	}
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// StepRetryDelay returns the per-step retry delay as a duration.
func (c *Config) StepRetryDelay() time.Duration {
	return time.Duration(c.StepRetryDelaySecs) * time.Second
}

// PublishingCredentials converts the JSON map (string tenant keys) into the
// credential store used by the publish step.
func (c *Config) PublishingCredentials() (publish.StaticCredentials, error) {
	store := make(publish.StaticCredentials, len(c.Publishing))
	for key, creds := range c.Publishing {
		tenantID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("publishing key %q is not a tenant id: %w", key, err)
		}
		store[tenantID] = creds
	}
	return store, nil
}
