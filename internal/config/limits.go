package config

import "time"

// Limits governs process-level resource ceilings: concurrency, prompt
// size, and per-phase wall-clock budgets.
type Limits struct {
	MaxConcurrentWriters int             `yaml:"max_concurrent_writers" validate:"required,min=1,max=100"`
	MaxPromptSize        int             `yaml:"max_prompt_size" validate:"required,min=1000,max=1000000"`
	TotalTimeout         time.Duration   `yaml:"total_timeout" validate:"required,min=1m,max=24h"`
	PhaseTimeouts        PhaseTimeouts   `yaml:"phase_timeouts"`
	RateLimit            RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

type PhaseTimeouts struct {
	CollectContext    time.Duration `yaml:"collect_context" validate:"min=1s,max=6h"`
	RetrieveContext   time.Duration `yaml:"retrieve_context" validate:"min=1s,max=6h"`
	PlanChapter       time.Duration `yaml:"plan_chapter" validate:"min=1m,max=6h"`
	WriteChapter      time.Duration `yaml:"write_chapter" validate:"min=1m,max=6h"`
	ValidateContinuity time.Duration `yaml:"validate_continuity" validate:"min=1m,max=6h"`
	Critic            time.Duration `yaml:"critic" validate:"min=1m,max=6h"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=10000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=1000"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxConcurrentWriters: 8,
		MaxPromptSize:        200000,
		TotalTimeout:         6 * time.Hour,
		PhaseTimeouts: PhaseTimeouts{
			CollectContext:     30 * time.Second,
			RetrieveContext:    30 * time.Second,
			PlanChapter:        5 * time.Minute,
			WriteChapter:       20 * time.Minute,
			ValidateContinuity: 5 * time.Minute,
			Critic:             3 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         20,
		},
	}
}
