package config

// RecursiveMemoryConfig sizes the three-level summary pyramid
// (internal/memory/recursive.go).
type RecursiveMemoryConfig struct {
	RecentChapters         int `yaml:"recent_chapters" validate:"required,min=1"`
	ArcSummaryWords        int `yaml:"arc_summary_words" validate:"required,min=10"`
	GlobalSynopsisWords    int `yaml:"global_synopsis_words" validate:"required,min=10"`
}

func defaultRecursiveMemoryConfig() RecursiveMemoryConfig {
	return RecursiveMemoryConfig{
		RecentChapters:      10,
		ArcSummaryWords:     300,
		GlobalSynopsisWords: 500,
	}
}
