package config

import "time"

// LLMConfig governs the transport-level retry policy of internal/llm,
// distinct from AIConfig's provider identity fields.
type LLMConfig struct {
	Timeout      time.Duration `yaml:"timeout" validate:"required,min=1s,max=1h"`
	MaxRetries   int           `yaml:"max_retries" validate:"required,min=0,max=10"`
	RetryBackoff time.Duration `yaml:"retry_backoff" validate:"required,min=100ms,max=5m"`
}

func defaultLLMConfig() LLMConfig {
	return LLMConfig{
		Timeout:      120 * time.Second,
		MaxRetries:   4,
		RetryBackoff: 2 * time.Second,
	}
}
