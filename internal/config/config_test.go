package config

import (
	"strings"
	"testing"
)

func validTestConfig() Config {
	cfg := Default()
	cfg.AI.APIKey = "sk-1234567890abcdef1234567890abcdef"
	return cfg
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid API key - too short",
			mutate:  func(c *Config) { c.AI.APIKey = "short" },
			wantErr: true,
			errMsg:  "APIKey",
		},
		{
			name:    "invalid base URL",
			mutate:  func(c *Config) { c.AI.BaseURL = "not-a-url" },
			wantErr: true,
			errMsg:  "BaseURL",
		},
		{
			name:    "timeout too high",
			mutate:  func(c *Config) { c.AI.Timeout = 9000 },
			wantErr: true,
			errMsg:  "Timeout",
		},
		{
			name:    "concurrent writers too high",
			mutate:  func(c *Config) { c.Limits.MaxConcurrentWriters = 200 },
			wantErr: true,
			errMsg:  "MaxConcurrentWriters",
		},
		{
			name: "min words exceeds max words",
			mutate: func(c *Config) {
				c.Chapter.MinWords = 5000
				c.Chapter.MaxWords = 1000
			},
			wantErr: true,
			errMsg:  "min_words",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("validate() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.validate(); err != nil {
		t.Errorf("Default() should produce valid config, got error: %v", err)
	}
}

func TestChapterConfigClamp(t *testing.T) {
	c := ChapterConfig{MinWords: 500, MaxWords: 800}
	if got := c.Clamp(300); got != 500 {
		t.Errorf("Clamp(300) = %d, want 500", got)
	}
	if got := c.Clamp(1200); got != 800 {
		t.Errorf("Clamp(1200) = %d, want 800", got)
	}
	if got := c.Clamp(650); got != 650 {
		t.Errorf("Clamp(650) = %d, want 650", got)
	}
	if got := c.Clamp(0); got != 650 {
		t.Errorf("Clamp(0) = %d, want midpoint 650", got)
	}
}

func TestPlanReasoningApplies(t *testing.T) {
	c := PlanReasoningConfig{Enabled: true, FirstChapters: 2, Interval: 10, Keywords: []string{"climax"}}
	if !c.Applies(1, "") {
		t.Error("chapter 1 should apply (within FirstChapters)")
	}
	if !c.Applies(20, "") {
		t.Error("chapter 20 should apply (Interval multiple)")
	}
	if c.Applies(5, "quiet morning") {
		t.Error("chapter 5 with no keyword should not apply")
	}
	if !c.Applies(5, "The Climax Approaches") {
		t.Error("keyword match should apply case-insensitively")
	}
}
