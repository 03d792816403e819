// Package toolbelt provides clients for the external services Jarvis depends on
package toolbelt

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all toolbelt service configurations
type Config struct {
	Anthropic *AnthropicConfig `yaml:"anthropic,omitempty"`
	Google    *GoogleConfig    `yaml:"google,omitempty"`
}

// AnthropicConfig holds Anthropic Claude API configuration
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model,omitempty"`
}

// GoogleConfig holds configuration for the Google Calendar/Gmail/Tasks APIs.
// Jarvis acts for a single delegated account, so one access token covers all three.
type GoogleConfig struct {
	AccessToken string `yaml:"access_token"`
	CalendarID  string `yaml:"calendar_id,omitempty"`  // default: "primary"
	TaskListID  string `yaml:"task_list_id,omitempty"` // default: "@default"
	SenderName  string `yaml:"sender_name,omitempty"`  // signature on outgoing mail

	// Override the API base URLs (used by tests against a local stub)
	CalendarBaseURL string `yaml:"calendar_base_url,omitempty"`
	GmailBaseURL    string `yaml:"gmail_base_url,omitempty"`
	TasksBaseURL    string `yaml:"tasks_base_url,omitempty"`
}

// ServiceStatus represents the configuration status of a single service
type ServiceStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	HasToken   bool   `json:"has_token"`
}

// Status returns the configuration status of all services
func (c *Config) Status() []ServiceStatus {
	return []ServiceStatus{
		{Name: "anthropic", Configured: c.Anthropic != nil, HasToken: c.Anthropic != nil && c.Anthropic.APIKey != ""},
		{Name: "google", Configured: c.Google != nil, HasToken: c.Google != nil && c.Google.AccessToken != ""},
	}
}

// envVarPattern matches ${VAR_NAME} patterns for environment variable expansion
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR_NAME} patterns in the input string with environment variable values
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if value := os.Getenv(varName); value != "" {
			return value
		}
		// Return empty string if env var is not set
		return ""
	})
}

// LoadConfig loads toolbelt configuration from the specified YAML file
// Environment variables referenced as ${VAR_NAME} are expanded
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read toolbelt config: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse toolbelt config: %w", err)
	}

	return &config, nil
}
