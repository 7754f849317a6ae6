package config

// CoherenceConfig enables and tunes each specialist in
// internal/coherence.
type CoherenceConfig struct {
	CharacterDriftEnabled     bool    `yaml:"character_drift_enabled"`
	CharacterDriftThreshold   float64 `yaml:"character_drift_threshold" validate:"min=0,max=1"`

	VoiceAnalyzerEnabled       bool    `yaml:"voice_analyzer_enabled"`
	VoiceConsistencyThreshold  float64 `yaml:"voice_consistency_threshold" validate:"min=0,max=1"`
	VoiceMinDialoguesForAnalysis int   `yaml:"voice_min_dialogues_for_analysis" validate:"min=0"`

	POVValidatorEnabled bool   `yaml:"pov_validator_enabled"`
	POVDefaultType      string `yaml:"pov_default_type"`

	SemanticValidatorEnabled   bool    `yaml:"semantic_validator_enabled"`
	SemanticConflictThreshold float64 `yaml:"semantic_conflict_threshold" validate:"min=0,max=1"`
}

func defaultCoherenceConfig() CoherenceConfig {
	return CoherenceConfig{
		CharacterDriftEnabled:        true,
		CharacterDriftThreshold:      0.35,
		VoiceAnalyzerEnabled:         true,
		VoiceConsistencyThreshold:    0.6,
		VoiceMinDialoguesForAnalysis: 3,
		POVValidatorEnabled:          true,
		POVDefaultType:               "limited",
		SemanticValidatorEnabled:     true,
		SemanticConflictThreshold:    0.5,
	}
}
