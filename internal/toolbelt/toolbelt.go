// Package toolbelt provides clients for the external services Jarvis depends on
package toolbelt

import (
	"context"
	"time"
)

// Toolbelt holds the service clients Jarvis needs: the model collaborator and
// the calendar/mail/tasks backend. Nil clients indicate the service is not
// configured.
type Toolbelt struct {
	config *Config

	Anthropic *AnthropicClient
	Google    *GoogleClient
}

// New creates a new Toolbelt from the given configuration.
// Service clients are initialized based on available credentials.
func New(config *Config) (*Toolbelt, error) {
	t := &Toolbelt{
		config: config,
	}

	if config != nil && config.Anthropic != nil {
		t.Anthropic = NewAnthropicClient(config.Anthropic)
	}
	if config != nil && config.Google != nil {
		t.Google = NewGoogleClient(config.Google)
	}

	return t, nil
}

// NewFromFile loads toolbelt configuration from a file and creates a new Toolbelt.
func NewFromFile(path string) (*Toolbelt, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(config)
}

// Config returns the toolbelt configuration.
func (t *Toolbelt) Config() *Config {
	return t.config
}

// TestResult holds the result of testing a single service connection
type TestResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Latency int64  `json:"latency_ms"`
}

// TestConnections tests all configured service clients and returns results.
// Only configured services are tested; unconfigured services are skipped.
func (t *Toolbelt) TestConnections(ctx context.Context) []TestResult {
	var results []TestResult

	if t.Anthropic != nil {
		results = append(results, t.testService(ctx, "anthropic", t.Anthropic.Ping))
	}
	if t.Google != nil {
		results = append(results, t.testService(ctx, "google", t.Google.Ping))
	}

	return results
}

// testService tests a single service and returns the result with timing
func (t *Toolbelt) testService(ctx context.Context, name string, ping func(context.Context) error) TestResult {
	start := time.Now()
	err := ping(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return TestResult{
			Name:    name,
			Success: false,
			Error:   err.Error(),
			Latency: latency,
		}
	}

	return TestResult{
		Name:    name,
		Success: true,
		Message: "connected",
		Latency: latency,
	}
}

// Status returns the configuration status of all services.
func (t *Toolbelt) Status() []ServiceStatus {
	if t.config == nil {
		return []ServiceStatus{
			{Name: "anthropic", Configured: false, HasToken: false},
			{Name: "google", Configured: false, HasToken: false},
		}
	}
	return t.config.Status()
}
