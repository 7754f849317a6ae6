package config

// RAGConfig governs chunking, embedding, and retrieval for the vector
// store (see internal/rag).
type RAGConfig struct {
	TopK              int    `yaml:"top_k" validate:"required,min=1,max=100"`
	ChunkSize         int    `yaml:"chunk_size" validate:"required,min=50"`
	ChunkOverlap      int    `yaml:"chunk_overlap" validate:"min=0"`
	EmbeddingModel    string `yaml:"embedding_model" validate:"required"`
	EmbeddingDimension int   `yaml:"embedding_dimension" validate:"required,min=8"`
}

func defaultRAGConfig() RAGConfig {
	return RAGConfig{
		TopK:               6,
		ChunkSize:          800,
		ChunkOverlap:       120,
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 1536,
	}
}
