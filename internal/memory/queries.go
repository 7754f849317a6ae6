package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vampirenirmal/storyforge/internal/story"
)

// contradictionCacheTTL matches original_source's _NEO4J_CACHE TTL for
// detect_character_contradictions: repeated validation passes over the
// same character within a chapter's pipeline run shouldn't re-scan
// status history every time.
const contradictionCacheTTL = 10 * time.Minute

// Queries answers the structured-graph questions validate_continuity's
// graph validator and the coherence specialists need, on top of a
// Graph. It caches detect_character_contradictions results.
type Queries struct {
	graph *Graph

	mu    sync.Mutex
	cache map[string]contradictionCacheEntry
}

type contradictionCacheEntry struct {
	result    []Contradiction
	expiresAt time.Time
}

func NewQueries(graph *Graph) *Queries {
	return &Queries{graph: graph, cache: make(map[string]contradictionCacheEntry)}
}

// CharacterEvolution returns a character's status history in
// chronological order, plus the chapter it was first and last seen.
type CharacterEvolution struct {
	Name            string
	StatusHistory   []story.StatusChange
	FirstAppearance int
	LastSeenChapter int
}

func (q *Queries) CharacterEvolution(ctx context.Context, projectID, characterName string) (CharacterEvolution, error) {
	facts, err := q.graph.Load(ctx, projectID)
	if err != nil {
		return CharacterEvolution{}, fmt.Errorf("loading graph for character evolution: %w", err)
	}
	for _, c := range facts.Characters {
		if lowerTrim(c.Name) != lowerTrim(characterName) {
			continue
		}
		history := append([]story.StatusChange(nil), c.StatusHistory...)
		first := 0
		if len(history) > 0 {
			first = history[0].ChapterIndex
		}
		return CharacterEvolution{
			Name: c.Name, StatusHistory: history, FirstAppearance: first, LastSeenChapter: c.LastSeenChapter,
		}, nil
	}
	return CharacterEvolution{}, nil
}

// Contradiction is a detected inconsistency in a character's status
// history, e.g. a "resurrection" where death is followed by a living
// status with no intervening explanation.
type Contradiction struct {
	Character   string
	Kind        string
	FromChapter int
	FromStatus  string
	ToChapter   int
	ToStatus    string
}

var livingStatuses = map[string]struct{}{"alive": {}, "active": {}, "healthy": {}}

// DetectCharacterContradictions scans a character's status history,
// ordered by chapter, for a "dead" entry immediately followed (in
// chapter order) by a living one, the resurrection pattern. Results
// are cached for contradictionCacheTTL per (project, character).
func (q *Queries) DetectCharacterContradictions(ctx context.Context, projectID, characterName string) ([]Contradiction, error) {
	key := projectID + "|" + lowerTrim(characterName)

	q.mu.Lock()
	if entry, ok := q.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		q.mu.Unlock()
		return entry.result, nil
	}
	q.mu.Unlock()

	evo, err := q.CharacterEvolution(ctx, projectID, characterName)
	if err != nil {
		return nil, err
	}

	history := append([]story.StatusChange(nil), evo.StatusHistory...)
	sortStatusHistory(history)

	var out []Contradiction
	for i := 0; i+1 < len(history); i++ {
		cur, next := history[i], history[i+1]
		if lowerTrim(cur.Value) != "dead" {
			continue
		}
		if _, ok := livingStatuses[lowerTrim(next.Value)]; !ok {
			continue
		}
		out = append(out, Contradiction{
			Character: characterName, Kind: "resurrection",
			FromChapter: cur.ChapterIndex, FromStatus: cur.Value,
			ToChapter: next.ChapterIndex, ToStatus: next.Value,
		})
	}

	q.mu.Lock()
	q.cache[key] = contradictionCacheEntry{result: out, expiresAt: time.Now().Add(contradictionCacheTTL)}
	q.mu.Unlock()

	return out, nil
}

func sortStatusHistory(h []story.StatusChange) {
	for i := 1; i < len(h); i++ {
		for j := i; j > 0 && h[j].ChapterIndex < h[j-1].ChapterIndex; j-- {
			h[j], h[j-1] = h[j-1], h[j]
		}
	}
}

// RelationshipEvolution returns the relation (if any) from charA to
// charB, with its full evolution history.
func (q *Queries) RelationshipEvolution(ctx context.Context, projectID, charA, charB string) (*story.RelationFact, error) {
	facts, err := q.graph.Load(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading graph for relationship evolution: %w", err)
	}
	for _, r := range facts.Relations {
		if lowerTrim(r.From) == lowerTrim(charA) && lowerTrim(r.To) == lowerTrim(charB) {
			rc := r
			return &rc, nil
		}
	}
	return nil, nil
}

// OrphanedThread is an unresolved plot thread not mentioned for at
// least 10 chapters.
type OrphanedThread struct {
	Event         string
	LastMentioned int
	Summary       string
}

// FindOrphanedPlotThreads returns unresolved events whose
// last-mentioned chapter is more than 10 chapters behind
// currentChapter, ordered oldest first.
func (q *Queries) FindOrphanedPlotThreads(ctx context.Context, projectID string, currentChapter int) ([]OrphanedThread, error) {
	if currentChapter <= 0 {
		return nil, nil
	}
	cutoff := currentChapter - 10

	facts, err := q.graph.Load(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading graph for orphaned threads: %w", err)
	}
	if len(facts.Events) == 0 {
		return nil, nil
	}

	var out []OrphanedThread
	for _, e := range facts.Events {
		if !e.Unresolved() || e.ChapterIndex >= cutoff {
			continue
		}
		out = append(out, OrphanedThread{Event: e.Name, LastMentioned: e.ChapterIndex, Summary: e.Summary})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].LastMentioned < out[j-1].LastMentioned; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// ObjectAvailability is the result of CheckObjectAvailability.
type ObjectAvailability struct {
	Available bool
	Status    story.ObjectStatus
	Holder    string
	Location  string
	Issue     string
}

// CheckObjectAvailability reports whether an object can plausibly be
// used at chapterIndex: destroyed objects are never available; an
// object lost before chapterIndex and not subsequently found or
// possessed again is unavailable; otherwise it's available under its
// current status.
func (q *Queries) CheckObjectAvailability(ctx context.Context, projectID, objectName string, chapterIndex int) (ObjectAvailability, error) {
	facts, err := q.graph.Load(ctx, projectID)
	if err != nil {
		return ObjectAvailability{}, fmt.Errorf("loading graph for object availability: %w", err)
	}

	for _, o := range facts.Objects {
		if lowerTrim(o.Name) != lowerTrim(objectName) {
			continue
		}

		if o.Status == story.ObjectDestroyed {
			return ObjectAvailability{
				Available: false, Status: story.ObjectDestroyed,
				Issue: fmt.Sprintf("%q was destroyed and can no longer be used.", objectName),
			}, nil
		}

		var lostChapter int
		for _, entry := range o.StatusHistory {
			if entry.Value != string(story.ObjectLost) || entry.ChapterIndex >= chapterIndex {
				continue
			}
			foundAfter := false
			for _, e2 := range o.StatusHistory {
				v := story.ObjectStatus(e2.Value)
				if (v == story.ObjectPossessed || strings.EqualFold(e2.Value, "found")) &&
					e2.ChapterIndex > entry.ChapterIndex && e2.ChapterIndex <= chapterIndex {
					foundAfter = true
					break
				}
			}
			if !foundAfter {
				lostChapter = entry.ChapterIndex
				break
			}
		}

		if lostChapter > 0 {
			return ObjectAvailability{
				Available: false, Status: story.ObjectLost, Location: o.Location,
				Issue: fmt.Sprintf("%q was lost in chapter %d and has not been recovered.", objectName, lostChapter),
			}, nil
		}

		return ObjectAvailability{
			Available: true, Status: o.Status, Holder: o.CurrentHolder, Location: o.Location,
		}, nil
	}

	return ObjectAvailability{Available: true, Status: "unknown"}, nil
}

// LocationConsistency is the result of CheckCharacterLocationConsistency.
type LocationConsistency struct {
	Consistent        bool
	CurrentLocation   string
	LastKnownChapter  int
	Issue             string
	Warning           string
}

// CheckCharacterLocationConsistency reports whether a character could
// plausibly be at requiredLocation at chapterIndex, given their last
// known location and any recorded travel. A 1-2 chapter gap is
// tolerated as implicit off-page travel; a larger gap with no explicit
// travel entry is flagged.
func (q *Queries) CheckCharacterLocationConsistency(ctx context.Context, projectID, characterName, requiredLocation string, chapterIndex int) (LocationConsistency, error) {
	facts, err := q.graph.Load(ctx, projectID)
	if err != nil {
		return LocationConsistency{}, fmt.Errorf("loading graph for location consistency: %w", err)
	}

	var history []story.CharacterLocationFact
	for _, cl := range facts.CharacterLocations {
		if lowerTrim(cl.CharacterName) == lowerTrim(characterName) {
			history = append(history, cl)
		}
	}
	if len(history) == 0 {
		return LocationConsistency{Consistent: true}, nil
	}

	var current story.CharacterLocationFact
	for _, cl := range history {
		if cl.ChapterIndex > current.ChapterIndex && cl.ChapterIndex <= chapterIndex {
			current = cl
		}
	}
	if current.Location == "" {
		return LocationConsistency{Consistent: true}, nil
	}

	if lowerTrim(current.Location) == lowerTrim(requiredLocation) {
		return LocationConsistency{Consistent: true, CurrentLocation: current.Location, LastKnownChapter: current.ChapterIndex}, nil
	}

	for _, cl := range history {
		if lowerTrim(cl.TravelTo) == lowerTrim(requiredLocation) && cl.ChapterIndex <= chapterIndex {
			return LocationConsistency{Consistent: true, CurrentLocation: requiredLocation, LastKnownChapter: chapterIndex}, nil
		}
	}

	gap := chapterIndex - current.ChapterIndex
	if gap <= 2 {
		return LocationConsistency{
			Consistent: true, CurrentLocation: current.Location, LastKnownChapter: current.ChapterIndex,
			Warning: fmt.Sprintf("Implicit travel from %s to %s.", current.Location, requiredLocation),
		}, nil
	}

	return LocationConsistency{
		Consistent: false, CurrentLocation: current.Location, LastKnownChapter: current.ChapterIndex,
		Issue: fmt.Sprintf("%q was at %q as of chapter %d. No travel to %q was recorded.", characterName, current.Location, current.ChapterIndex, requiredLocation),
	}, nil
}

// GraphNode and GraphEdge are the export_graph_for_visualization
// payload shape, re-expressed over the sqlite-backed tables: nodes are
// keyed by "<table>:<name>" instead of a database-assigned node id,
// since there's no property graph engine underneath to assign one.
type GraphNode struct {
	ID    string
	Label string
	Type  string
}

type GraphEdge struct {
	Source string
	Target string
	Type   string
}

// ExportGraph renders the project's continuity facts as a node/edge
// list suitable for a visualization client.
func (q *Queries) ExportGraph(ctx context.Context, projectID string) ([]GraphNode, []GraphEdge, error) {
	facts, err := q.graph.Load(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading graph for export: %w", err)
	}

	var nodes []GraphNode
	for _, c := range facts.Characters {
		nodes = append(nodes, GraphNode{ID: "character:" + lowerTrim(c.Name), Label: c.Name, Type: "Character"})
	}
	for _, l := range facts.Locations {
		nodes = append(nodes, GraphNode{ID: "location:" + lowerTrim(l.Name), Label: l.Name, Type: "Location"})
	}
	for _, e := range facts.Events {
		nodes = append(nodes, GraphNode{ID: "event:" + lowerTrim(e.Name), Label: e.Name, Type: "Event"})
	}
	for _, o := range facts.Objects {
		nodes = append(nodes, GraphNode{ID: "object:" + lowerTrim(o.Name), Label: o.Name, Type: "Object"})
	}

	var edges []GraphEdge
	for _, r := range facts.Relations {
		edges = append(edges, GraphEdge{
			Source: "character:" + lowerTrim(r.From), Target: "character:" + lowerTrim(r.To), Type: r.Type,
		})
	}

	return nodes, edges, nil
}
