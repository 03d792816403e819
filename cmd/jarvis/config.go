package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config represents the Jarvis application configuration
type Config struct {
	AssistantName string `json:"assistant_name"`
	UserName      string `json:"user_name"`
	UTCOffset     string `json:"utc_offset"` // e.g. "+03:00"

	DBPath       string `json:"db_path"`
	ContactsPath string `json:"contacts_path"`

	PollIntervalSeconds    int `json:"poll_interval_seconds"`
	HorizonHours           int `json:"horizon_hours"`
	DefaultDurationMinutes int `json:"default_duration_minutes"`
	MaxToolIterations      int `json:"max_tool_iterations"`

	Webhook WebhookConfig `json:"webhook"`
}

// WebhookConfig contains the optional webhook receiver configuration
type WebhookConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Secret  string `json:"secret"`
}

// DefaultConfig returns the configuration used when no config file exists
func DefaultConfig() *Config {
	return &Config{
		AssistantName:          "Jarvis",
		UserName:               "David",
		UTCOffset:              "+03:00",
		DBPath:                 "jarvis.db",
		ContactsPath:           "contacts.json",
		PollIntervalSeconds:    60,
		HorizonHours:           8,
		DefaultDurationMinutes: 60,
		MaxToolIterations:      10,
		Webhook: WebhookConfig{
			Addr: ":8787",
		},
	}
}

// LoadConfig reads and parses a config file, filling omitted fields with
// defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}
	return config, nil
}

// Location parses the configured UTC offset into a fixed time.Location.
func (c *Config) Location() (*time.Location, error) {
	var sign int
	var hours, minutes int
	if len(c.UTCOffset) != 6 || (c.UTCOffset[0] != '+' && c.UTCOffset[0] != '-') {
		return nil, fmt.Errorf("invalid utc_offset %q, want e.g. \"+03:00\"", c.UTCOffset)
	}
	if _, err := fmt.Sscanf(c.UTCOffset[1:], "%02d:%02d", &hours, &minutes); err != nil {
		return nil, fmt.Errorf("invalid utc_offset %q: %w", c.UTCOffset, err)
	}
	sign = 1
	if c.UTCOffset[0] == '-' {
		sign = -1
	}
	return time.FixedZone("UTC"+c.UTCOffset, sign*(hours*3600+minutes*60)), nil
}
