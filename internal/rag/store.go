package rag

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// VectorDocument is one embedded chunk persisted in the collection.
type VectorDocument struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"project_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Kind       string  `json:"kind"` // "chapter" or "style"
	Vector     []float32 `json:"-"`
}

// ScoredChunk is one retrieve() result.
type ScoredChunk struct {
	Text  string
	Score float64
}

// VectorStore is the collection-based interface the retrieval layer
// needs: upsert, filter-delete, similarity search, top-K with
// project_id payload filter.
type VectorStore interface {
	Upsert(ctx context.Context, docs []VectorDocument) error
	DeleteByDocument(ctx context.Context, projectID, documentID string) error
	Search(ctx context.Context, projectID string, kind string, query []float32, k int) ([]ScoredChunk, error)
	CountProject(ctx context.Context, projectID string) (int, error)
}

// SQLiteStore is a single collection partitioned by project_id,
// backed by mattn/go-sqlite3 with the sqlite-vec extension registered
// (vecext.go) for installs built with the sqlite_vec build tag.
// Similarity is computed in Go over the project's rows rather than
// through a vec0 MATCH query: storyforge's corpus-per-project scale
// (hundreds of chapters, not millions of vectors) makes a full
// in-process cosine scan cheap, and it keeps correctness independent
// of whichever sqlite-vec distance operator a given build links
// against (documented in DESIGN.md).
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	s := &SQLiteStore{db: db, logger: slog.Default().With("component", "rag_vector_store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS vectors (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	kind TEXT NOT NULL,
	text TEXT NOT NULL,
	embedding BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vectors_project ON vectors(project_id);
CREATE INDEX IF NOT EXISTS idx_vectors_document ON vectors(project_id, document_id);
`)
	if err != nil {
		return fmt.Errorf("migrating vector store schema: %w", err)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	b, _ := json.Marshal(v)
	return b
}

func decodeVector(b []byte) []float32 {
	var v []float32
	_ = json.Unmarshal(b, &v)
	return v
}

func (s *SQLiteStore) Upsert(ctx context.Context, docs []VectorDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO vectors (id, project_id, document_id, chunk_index, kind, text, embedding)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET text=excluded.text, embedding=excluded.embedding, chunk_index=excluded.chunk_index, kind=excluded.kind
`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, d.ID, d.ProjectID, d.DocumentID, d.ChunkIndex, d.Kind, d.Text, encodeVector(d.Vector)); err != nil {
			return fmt.Errorf("upserting vector %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteByDocument(ctx context.Context, projectID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE project_id = ? AND document_id = ?`, projectID, documentID)
	if err != nil {
		return fmt.Errorf("deleting vectors for document %s: %w", documentID, err)
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, projectID, kind string, query []float32, k int) ([]ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT text, embedding FROM vectors WHERE project_id = ? AND kind = ?`, projectID, kind)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	type scored struct {
		text  string
		score float64
	}
	var all []scored
	for rows.Next() {
		var text string
		var blob []byte
		if err := rows.Scan(&text, &blob); err != nil {
			continue
		}
		all = append(all, scored{text: text, score: CosineSimilarity(query, decodeVector(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	if k <= 0 || k > len(all) {
		k = len(all)
	}
	out := make([]ScoredChunk, k)
	for i := 0; i < k; i++ {
		out[i] = ScoredChunk{Text: all[i].text, Score: all[i].score}
	}
	return out, nil
}

func (s *SQLiteStore) CountProject(ctx context.Context, projectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors WHERE project_id = ?`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting project vectors: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
