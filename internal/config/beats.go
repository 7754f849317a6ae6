package config

// BeatConfig governs how the writer phase fans scene beats out across
// the worker pool (internal/pipeline/beats.go).
type BeatConfig struct {
	ParallelBeats          bool    `yaml:"parallel_beats"`
	DistributedBeats       bool    `yaml:"distributed_beats"`
	PartialRevision        bool    `yaml:"partial_revision"`
	EarlyStopRatio         float64 `yaml:"early_stop_ratio" validate:"min=0,max=1"`
	MinBeatWords           int     `yaml:"min_beat_words" validate:"required,min=1"`
	TokensPerWord          float64 `yaml:"tokens_per_word" validate:"required,min=0.1"`
	MaxTokens              int     `yaml:"max_tokens" validate:"required,min=1"`
	ChatMaxTokens          int     `yaml:"chat_max_tokens" validate:"required,min=1"`
	PreviousBeatsMaxChars  int     `yaml:"previous_beats_max_chars" validate:"required,min=100"`
}

func defaultBeatConfig() BeatConfig {
	return BeatConfig{
		ParallelBeats:         true,
		DistributedBeats:      false,
		PartialRevision:       true,
		EarlyStopRatio:        0.85,
		MinBeatWords:          120,
		TokensPerWord:         1.6,
		MaxTokens:             8000,
		ChatMaxTokens:         4000,
		PreviousBeatsMaxChars: 3000,
	}
}
