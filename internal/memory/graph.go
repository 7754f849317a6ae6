package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vampirenirmal/storyforge/internal/story"
)

// Graph is a structured store of continuity facts keyed by project,
// backed by sqlite tables instead of a property graph database: no
// example in the retrieval pack talks to Neo4j or any other graph
// database, and the query shapes original_source's update_neo4j /
// query_character_evolution / detect_character_contradictions family
// need (point lookups and small joins over characters, relations,
// events, objects, and character_locations) are expressible as plain
// SQL over a handful of tables. GraphStore keeps the same vocabulary
// (nodes keyed by name, edges as rows) so callers read like graph
// queries even though there is no graph engine underneath.
type Graph struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewGraph(path string) (*Graph, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening continuity graph: %w", err)
	}
	g := &Graph{db: db}
	if err := g.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return g, nil
}

func (g *Graph) migrate() error {
	_, err := g.db.Exec(`
CREATE TABLE IF NOT EXISTS characters (
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (project_id, name)
);
CREATE TABLE IF NOT EXISTS locations (
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (project_id, name)
);
CREATE TABLE IF NOT EXISTS relations (
	project_id TEXT NOT NULL,
	from_name TEXT NOT NULL,
	to_name TEXT NOT NULL,
	rel_type TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (project_id, from_name, to_name, rel_type)
);
CREATE TABLE IF NOT EXISTS events (
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (project_id, name)
);
CREATE TABLE IF NOT EXISTS objects (
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (project_id, name)
);
CREATE TABLE IF NOT EXISTS character_locations (
	project_id TEXT NOT NULL,
	character_name TEXT NOT NULL,
	chapter_index INTEGER NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (project_id, character_name, chapter_index)
);
CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(project_id, from_name);
CREATE INDEX IF NOT EXISTS idx_char_locations_char ON character_locations(project_id, character_name);
`)
	if err != nil {
		return fmt.Errorf("migrating continuity graph schema: %w", err)
	}
	return nil
}

func (g *Graph) Close() error { return g.db.Close() }

// Upsert persists the merged ContinuityFacts for projectID. Writes are
// idempotent upserts keyed by (name, project_id) as each entity type
// requires; history lists are whatever the caller already merged via
// MergeContinuity, so Upsert only needs to replace each row's JSON blob.
func (g *Graph) Upsert(ctx context.Context, projectID string, facts story.ContinuityFacts) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning graph upsert: %w", err)
	}
	defer tx.Rollback()

	for _, c := range facts.Characters {
		data, _ := json.Marshal(c)
		if _, err := tx.ExecContext(ctx, `INSERT INTO characters (project_id, name, data) VALUES (?, ?, ?)
ON CONFLICT(project_id, name) DO UPDATE SET data = excluded.data`, projectID, lowerTrim(c.Name), data); err != nil {
			return fmt.Errorf("upserting character %s: %w", c.Name, err)
		}
	}
	for _, l := range facts.Locations {
		data, _ := json.Marshal(l)
		if _, err := tx.ExecContext(ctx, `INSERT INTO locations (project_id, name, data) VALUES (?, ?, ?)
ON CONFLICT(project_id, name) DO UPDATE SET data = excluded.data`, projectID, lowerTrim(l.Name), data); err != nil {
			return fmt.Errorf("upserting location %s: %w", l.Name, err)
		}
	}
	for _, r := range facts.Relations {
		data, _ := json.Marshal(r)
		key := r.Key()
		if _, err := tx.ExecContext(ctx, `INSERT INTO relations (project_id, from_name, to_name, rel_type, data) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(project_id, from_name, to_name, rel_type) DO UPDATE SET data = excluded.data`, projectID, key[0], key[1], key[2], data); err != nil {
			return fmt.Errorf("upserting relation %s->%s: %w", r.From, r.To, err)
		}
	}
	for _, e := range facts.Events {
		data, _ := json.Marshal(e)
		if _, err := tx.ExecContext(ctx, `INSERT INTO events (project_id, name, data) VALUES (?, ?, ?)
ON CONFLICT(project_id, name) DO UPDATE SET data = excluded.data`, projectID, lowerTrim(e.Name), data); err != nil {
			return fmt.Errorf("upserting event %s: %w", e.Name, err)
		}
	}
	for _, o := range facts.Objects {
		data, _ := json.Marshal(o)
		if _, err := tx.ExecContext(ctx, `INSERT INTO objects (project_id, name, data) VALUES (?, ?, ?)
ON CONFLICT(project_id, name) DO UPDATE SET data = excluded.data`, projectID, lowerTrim(o.Name), data); err != nil {
			return fmt.Errorf("upserting object %s: %w", o.Name, err)
		}
	}
	for _, cl := range facts.CharacterLocations {
		data, _ := json.Marshal(cl)
		if _, err := tx.ExecContext(ctx, `INSERT INTO character_locations (project_id, character_name, chapter_index, data) VALUES (?, ?, ?, ?)
ON CONFLICT(project_id, character_name, chapter_index) DO UPDATE SET data = excluded.data`, projectID, lowerTrim(cl.CharacterName), cl.ChapterIndex, data); err != nil {
			return fmt.Errorf("upserting character_location %s@%d: %w", cl.CharacterName, cl.ChapterIndex, err)
		}
	}

	return tx.Commit()
}

// Load reconstructs ContinuityFacts for a project from the graph
// tables. Row ordering is not semantically significant; callers that
// care about insertion order should keep the authoritative copy in
// storage.FilesystemRepo and use Graph only for the query surface in
// queries.go.
func (g *Graph) Load(ctx context.Context, projectID string) (story.ContinuityFacts, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var facts story.ContinuityFacts
	facts.UpdatedAt = time.Now()

	if err := scanJSONRows(ctx, g.db, `SELECT data FROM characters WHERE project_id = ?`, projectID, &facts.Characters); err != nil {
		return facts, err
	}
	if err := scanJSONRows(ctx, g.db, `SELECT data FROM locations WHERE project_id = ?`, projectID, &facts.Locations); err != nil {
		return facts, err
	}
	if err := scanJSONRows(ctx, g.db, `SELECT data FROM relations WHERE project_id = ?`, projectID, &facts.Relations); err != nil {
		return facts, err
	}
	if err := scanJSONRows(ctx, g.db, `SELECT data FROM events WHERE project_id = ?`, projectID, &facts.Events); err != nil {
		return facts, err
	}
	if err := scanJSONRows(ctx, g.db, `SELECT data FROM objects WHERE project_id = ?`, projectID, &facts.Objects); err != nil {
		return facts, err
	}
	if err := scanJSONRows(ctx, g.db, `SELECT data FROM character_locations WHERE project_id = ?`, projectID, &facts.CharacterLocations); err != nil {
		return facts, err
	}
	return facts, nil
}

func scanJSONRows[T any](ctx context.Context, db *sql.DB, query, projectID string, out *[]T) error {
	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return fmt.Errorf("querying graph: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scanning graph row: %w", err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decoding graph row: %w", err)
		}
		*out = append(*out, v)
	}
	return rows.Err()
}
