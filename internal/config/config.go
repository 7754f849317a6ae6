// Package config loads and validates storyforge's configuration: the
// LLM provider settings carried over from the orchestration engine
// this pipeline grew out of, plus every pipeline knob the chapter
// generation system needs. Loading follows the same layering: a YAML
// file under XDG_CONFIG_HOME, a .env file via godotenv for secrets,
// and go-playground/validator/v10 struct tags for everything in
// between.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration object. Every section below maps
// to one bullet of the external-interfaces configuration table.
type Config struct {
	AI     AIConfig    `yaml:"ai" validate:"required"`
	Paths  PathsConfig `yaml:"paths" validate:"required"`
	Limits Limits      `yaml:"limits" validate:"required"`

	Chapter       ChapterConfig       `yaml:"chapter" validate:"required"`
	Truncation    TruncationConfig    `yaml:"truncation" validate:"required"`
	RAG           RAGConfig           `yaml:"rag" validate:"required"`
	Beats         BeatConfig          `yaml:"beats" validate:"required"`
	QualityGate   QualityGateConfig   `yaml:"quality_gate" validate:"required"`
	PlanReasoning PlanReasoningConfig `yaml:"plan_reasoning" validate:"required"`
	Memory        RecursiveMemoryConfig `yaml:"recursive_memory" validate:"required"`
	Coherence     CoherenceConfig     `yaml:"coherence" validate:"required"`
	Maintenance   MaintenanceConfig   `yaml:"maintenance" validate:"required"`
	LLM           LLMConfig           `yaml:"llm" validate:"required"`
}

// AIConfig is the LLM provider configuration, unchanged from the base
// orchestration engine.
type AIConfig struct {
	APIKey  string `yaml:"api_key" validate:"required,min=20"`
	Model   string `yaml:"model" validate:"required"`
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Timeout int    `yaml:"timeout" validate:"required,min=10,max=3600"`
}

type PathsConfig struct {
	OutputDir string        `yaml:"output_dir" validate:"required"`
	DataDir   string        `yaml:"data_dir" validate:"required"`
	Prompts   PromptsConfig `yaml:"prompts" validate:"required"`
}

type PromptsConfig struct {
	Planner   string `yaml:"planner" validate:"required"`
	Writer    string `yaml:"writer" validate:"required"`
	Critic    string `yaml:"critic" validate:"required"`
	Validator string `yaml:"validator" validate:"required"`
}

// Load reads the config file (creating one interactively if absent),
// overlays secrets from .env/environment, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	configPath := getConfigPath()

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		cfg, createErr := createConfigInteractively(configPath)
		if createErr != nil {
			return nil, fmt.Errorf("creating config: %w", createErr)
		}
		return cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.AI.APIKey == "" || cfg.AI.APIKey == "${LLM_API_KEY}" {
		if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
			cfg.AI.APIKey = apiKey
		} else {
			apiKey, promptErr := promptForAPIKey()
			if promptErr != nil {
				return nil, fmt.Errorf("getting API key: %w", promptErr)
			}
			cfg.AI.APIKey = apiKey
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func getConfigPath() string {
	if path := os.Getenv("STORYFORGE_CONFIG"); path != "" {
		return path
	}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "storyforge", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "storyforge", "config.yaml")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func dataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "storyforge")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "storyforge")
}

func (c *Config) validate() error {
	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = filepath.Join(dataDir(), "output")
	} else {
		c.Paths.OutputDir = expandTilde(c.Paths.OutputDir)
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = dataDir()
	} else {
		c.Paths.DataDir = expandTilde(c.Paths.DataDir)
	}

	promptsDir := filepath.Join(dataDir(), "prompts")
	if c.Paths.Prompts.Planner == "" {
		c.Paths.Prompts.Planner = filepath.Join(promptsDir, "planner.txt")
	}
	if c.Paths.Prompts.Writer == "" {
		c.Paths.Prompts.Writer = filepath.Join(promptsDir, "writer.txt")
	}
	if c.Paths.Prompts.Critic == "" {
		c.Paths.Prompts.Critic = filepath.Join(promptsDir, "critic.txt")
	}
	if c.Paths.Prompts.Validator == "" {
		c.Paths.Prompts.Validator = filepath.Join(promptsDir, "validator.txt")
	}

	if c.Limits.MaxConcurrentWriters == 0 {
		c.Limits = DefaultLimits()
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Chapter.MinWords > c.Chapter.MaxWords {
		return fmt.Errorf("chapter.min_words (%d) exceeds chapter.max_words (%d)", c.Chapter.MinWords, c.Chapter.MaxWords)
	}
	return nil
}

func createConfigInteractively(configPath string) (*Config, error) {
	fmt.Printf("Welcome to storyforge. Let's set up your configuration.\n\n")

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	cfg := Default()

	apiKey, err := promptForAPIKey()
	if err != nil {
		return nil, err
	}
	cfg.AI.APIKey = apiKey

	if err := os.MkdirAll(cfg.Paths.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	if err := saveConfig(&cfg, configPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to: %s\n", configPath)
	return &cfg, nil
}

func promptForAPIKey() (string, error) {
	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		return apiKey, nil
	}
	fmt.Printf("Please enter your LLM provider API key: ")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	apiKey := strings.TrimSpace(scanner.Text())
	if len(apiKey) < 20 {
		return "", fmt.Errorf("API key seems too short (minimum 20 characters)")
	}
	return apiKey, nil
}

func saveConfig(cfg *Config, configPath string) error {
	cfgToSave := *cfg
	cfgToSave.AI.APIKey = "${LLM_API_KEY}"

	data, err := yaml.Marshal(&cfgToSave)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(configPath, data, 0644)
}
