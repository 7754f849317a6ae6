// Package rag implements retrieval-augmented generation for chapter
// drafting: fixed-size overlapping chunking, a vector store
// partitioned by project_id, and graceful degradation to empty results
// when the store is unavailable.
// Grounded on original_source/backend/app/services/rag_service.py.
package rag

import "strings"

// Chunk is one fixed-size overlapping window of a source document.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
}

// SplitIntoChunks windows content into size-character chunks with
// overlap trailing characters shared between consecutive chunks (spec
// §4.3 defaults: 1000/150, overridable via config.RAGConfig).
func SplitIntoChunks(documentID, content string, size, overlap int) []Chunk {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(content)
	var chunks []Chunk
	step := size - overlap
	for start, idx := 0, 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			DocumentID: documentID,
			Index:      idx,
			Text:       string(runes[start:end]),
		})
		idx++
		if end == len(runes) {
			break
		}
	}
	return chunks
}
