package config

// QualityGateConfig bounds the write/validate/critique/revise loop
// (internal/pipeline/quality_gate.go).
type QualityGateConfig struct {
	MaxRevisions         int     `yaml:"max_revisions" validate:"required,min=0,max=20"`
	ScoreThreshold       float64 `yaml:"score_threshold" validate:"required,min=0,max=10"`
	CoherenceThreshold   float64 `yaml:"coherence_threshold" validate:"required,min=0,max=1"`
}

func defaultQualityGateConfig() QualityGateConfig {
	return QualityGateConfig{
		MaxRevisions:       3,
		ScoreThreshold:     7.0,
		CoherenceThreshold: 0.75,
	}
}
