package config

import "path/filepath"

// Default returns a fully populated Config with every knob set to the
// values enumerated in the external-interfaces configuration table.
// AI.APIKey is left blank; Load fills it from .env/environment/prompt.
func Default() Config {
	promptsDir := filepath.Join(dataDir(), "prompts")
	return Config{
		AI: AIConfig{
			Model:   "claude-sonnet-4-5",
			BaseURL: "https://api.anthropic.com",
			Timeout: 120,
		},
		Paths: PathsConfig{
			OutputDir: filepath.Join(dataDir(), "output"),
			DataDir:   dataDir(),
			Prompts: PromptsConfig{
				Planner:   filepath.Join(promptsDir, "planner.txt"),
				Writer:    filepath.Join(promptsDir, "writer.txt"),
				Critic:    filepath.Join(promptsDir, "critic.txt"),
				Validator: filepath.Join(promptsDir, "validator.txt"),
			},
		},
		Limits:        DefaultLimits(),
		Chapter:       defaultChapterConfig(),
		Truncation:    defaultTruncationConfig(),
		RAG:           defaultRAGConfig(),
		Beats:         defaultBeatConfig(),
		QualityGate:   defaultQualityGateConfig(),
		PlanReasoning: defaultPlanReasoningConfig(),
		Memory:        defaultRecursiveMemoryConfig(),
		Coherence:     defaultCoherenceConfig(),
		Maintenance:   defaultMaintenanceConfig(),
		LLM:           defaultLLMConfig(),
	}
}
