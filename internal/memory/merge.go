// Package memory implements continuity fact extraction, the
// deterministic merge invariants below, the smart-truncation context
// block, the L1/L2/L3 recursive-memory pyramid, and the structured
// graph store and its queries. Grounded on
// original_source/backend/app/services/memory_service.py.
package memory

import (
	"strings"
	"time"

	"github.com/vampirenirmal/storyforge/internal/story"
)

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// MergeContinuity folds incoming (freshly extracted, per-chapter)
// facts into existing (the project's running Continuity), applying
// these invariants:
//   - scalar fields take the incoming value only when it differs,
//     recording the change in a *_history list;
//   - numeric "last seen/mentioned" takes max, "start" takes min;
//   - list fields dedup by lower-cased trimmed string, preserving
//     insertion order;
//   - unknown keys are dropped (callers pass typed structs, so this is
//     enforced by the Go type system rather than a runtime check).
//
// MergeContinuity is idempotent: applying the same incoming facts
// twice yields the same result as applying them once, because every
// merge step is itself idempotent. Union dedup of an already-merged
// list is a no-op, and history append only happens when the incoming
// value differs from the *current* value, so a repeat application
// (now equal) appends nothing further.
func MergeContinuity(existing story.ContinuityFacts, incoming story.ContinuityFacts, chapterIndex int) story.ContinuityFacts {
	out := existing
	out.Characters = mergeCharacters(existing.Characters, incoming.Characters, chapterIndex)
	out.Locations = mergeLocations(existing.Locations, incoming.Locations, chapterIndex)
	out.Relations = mergeRelations(existing.Relations, incoming.Relations, chapterIndex)
	out.Events = mergeEvents(existing.Events, incoming.Events, chapterIndex)
	out.Objects = mergeObjects(existing.Objects, incoming.Objects, chapterIndex)
	out.CharacterLocations = mergeCharacterLocations(existing.CharacterLocations, incoming.CharacterLocations)
	out.UpdatedAt = time.Now()
	return out
}

func mergeCharacters(existing, incoming []story.CharacterFact, chapterIndex int) []story.CharacterFact {
	byName := make(map[string]int, len(existing))
	out := make([]story.CharacterFact, len(existing))
	copy(out, existing)
	for i, c := range out {
		byName[lowerTrim(c.Name)] = i
	}

	for _, in := range incoming {
		key := lowerTrim(in.Name)
		if key == "" {
			continue
		}
		idx, ok := byName[key]
		if !ok {
			if in.LastSeenChapter == 0 {
				in.LastSeenChapter = chapterIndex
			}
			if in.Status != "" {
				in.StatusHistory = append(in.StatusHistory, story.StatusChange{
					Value: in.Status, ChapterIndex: chapterIndex, Timestamp: time.Now(),
				})
			}
			byName[key] = len(out)
			out = append(out, in)
			continue
		}

		cur := out[idx]
		if in.Role != "" {
			cur.Role = in.Role
		}
		if in.Status != "" && in.Status != cur.Status {
			cur.StatusHistory = append(cur.StatusHistory, story.StatusChange{
				Value: in.Status, ChapterIndex: chapterIndex, Timestamp: time.Now(),
			})
			cur.Status = in.Status
		}
		if in.CurrentState != "" {
			cur.CurrentState = in.CurrentState
		}
		if in.ArcStage != "" {
			cur.ArcStage = in.ArcStage
		}
		cur.Motivations = unionDedup(cur.Motivations, in.Motivations)
		cur.Traits = unionDedup(cur.Traits, in.Traits)
		cur.Goals = unionDedup(cur.Goals, in.Goals)
		cur.LastSeenChapter = maxInt(cur.LastSeenChapter, numericOrChapter(in.LastSeenChapter, chapterIndex))
		out[idx] = cur
	}
	return out
}

func mergeLocations(existing, incoming []story.LocationFact, chapterIndex int) []story.LocationFact {
	byName := make(map[string]int, len(existing))
	out := make([]story.LocationFact, len(existing))
	copy(out, existing)
	for i, l := range out {
		byName[lowerTrim(l.Name)] = i
	}

	for _, in := range incoming {
		key := lowerTrim(in.Name)
		if key == "" {
			continue
		}
		idx, ok := byName[key]
		if !ok {
			in.LastMentionedChapter = numericOrChapter(in.LastMentionedChapter, chapterIndex)
			byName[key] = len(out)
			out = append(out, in)
			continue
		}
		cur := out[idx]
		if in.Description != "" {
			cur.Description = in.Description
		}
		if in.Atmosphere != "" {
			cur.Atmosphere = in.Atmosphere
		}
		cur.Rules = unionDedup(cur.Rules, in.Rules)
		cur.TimelineMarkers = unionDedup(cur.TimelineMarkers, in.TimelineMarkers)
		cur.LastMentionedChapter = maxInt(cur.LastMentionedChapter, numericOrChapter(in.LastMentionedChapter, chapterIndex))
		out[idx] = cur
	}
	return out
}

func mergeRelations(existing, incoming []story.RelationFact, chapterIndex int) []story.RelationFact {
	byKey := make(map[[3]string]int, len(existing))
	out := make([]story.RelationFact, len(existing))
	copy(out, existing)
	for i, r := range out {
		byKey[r.Key()] = i
	}

	for _, in := range incoming {
		key := in.Key()
		if key[0] == "" || key[1] == "" {
			continue
		}
		idx, ok := byKey[key]
		if !ok {
			in.StartChapter = numericOrChapter(in.StartChapter, chapterIndex)
			if in.CurrentState != "" {
				in.EvolutionHistory = append(in.EvolutionHistory, story.StatusChange{
					Value: in.CurrentState, ChapterIndex: chapterIndex, Timestamp: time.Now(),
				})
			}
			byKey[key] = len(out)
			out = append(out, in)
			continue
		}
		cur := out[idx]
		if in.Detail != "" {
			cur.Detail = in.Detail
		}
		if in.CurrentState != "" && in.CurrentState != cur.CurrentState {
			cur.EvolutionHistory = append(cur.EvolutionHistory, story.StatusChange{
				Value: in.CurrentState, ChapterIndex: chapterIndex, Timestamp: time.Now(),
			})
			cur.CurrentState = in.CurrentState
		}
		cur.StartChapter = minInt(numericOrChapter(cur.StartChapter, chapterIndex), numericOrChapter(in.StartChapter, chapterIndex))
		out[idx] = cur
	}
	return out
}

func mergeEvents(existing, incoming []story.EventFact, chapterIndex int) []story.EventFact {
	byName := make(map[string]int, len(existing))
	out := make([]story.EventFact, len(existing))
	copy(out, existing)
	for i, e := range out {
		byName[lowerTrim(e.Name)] = i
	}

	for _, in := range incoming {
		key := lowerTrim(in.Name)
		if key == "" {
			continue
		}
		idx, ok := byName[key]
		if !ok {
			in.ChapterIndex = numericOrChapter(in.ChapterIndex, chapterIndex)
			byName[key] = len(out)
			out = append(out, in)
			continue
		}
		cur := out[idx]
		if in.Summary != "" {
			cur.Summary = in.Summary
		}
		if in.TimeReference != "" {
			cur.TimeReference = in.TimeReference
		}
		if in.Impact != "" {
			cur.Impact = in.Impact
		}
		cur.UnresolvedThreads = unionDedup(cur.UnresolvedThreads, in.UnresolvedThreads)
		cur.ChapterIndex = maxInt(cur.ChapterIndex, numericOrChapter(in.ChapterIndex, chapterIndex))
		out[idx] = cur
	}
	return out
}

func mergeObjects(existing, incoming []story.ObjectFact, chapterIndex int) []story.ObjectFact {
	byName := make(map[string]int, len(existing))
	out := make([]story.ObjectFact, len(existing))
	copy(out, existing)
	for i, o := range out {
		byName[lowerTrim(o.Name)] = i
	}

	for _, in := range incoming {
		key := lowerTrim(in.Name)
		if key == "" {
			continue
		}
		idx, ok := byName[key]
		if !ok {
			if in.Status != "" {
				in.StatusHistory = append(in.StatusHistory, story.StatusChange{
					Value: string(in.Status), ChapterIndex: chapterIndex, Timestamp: time.Now(),
				})
			}
			byName[key] = len(out)
			out = append(out, in)
			continue
		}
		cur := out[idx]
		if in.Status != "" && in.Status != cur.Status {
			cur.StatusHistory = append(cur.StatusHistory, story.StatusChange{
				Value: string(in.Status), ChapterIndex: chapterIndex, Timestamp: time.Now(),
			})
			cur.Status = in.Status
		}
		if in.CurrentHolder != "" {
			cur.CurrentHolder = in.CurrentHolder
		}
		if in.Location != "" {
			cur.Location = in.Location
		}
		cur.MagicalProperties = unionDedup(cur.MagicalProperties, in.MagicalProperties)
		out[idx] = cur
	}
	return out
}

func mergeCharacterLocations(existing, incoming []story.CharacterLocationFact) []story.CharacterLocationFact {
	seen := make(map[string]struct{}, len(existing))
	out := make([]story.CharacterLocationFact, len(existing))
	copy(out, existing)
	for _, cl := range out {
		seen[characterLocationKey(cl)] = struct{}{}
	}
	for _, in := range incoming {
		if in.CharacterName == "" || in.Location == "" {
			continue
		}
		k := characterLocationKey(in)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, in)
	}
	return out
}

func characterLocationKey(cl story.CharacterLocationFact) string {
	return lowerTrim(cl.CharacterName) + "|" + lowerTrim(cl.Location) + "|" + itoa(cl.ChapterIndex)
}

// unionDedup merges a and b, deduplicating by lower-cased trimmed
// string while preserving first-seen insertion order.
func unionDedup(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			key := lowerTrim(v)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

// numericOrChapter returns v if positive, else falls back to
// chapterIndex, since extracted facts don't always carry an explicit
// chapter number for a newly-seen entity.
func numericOrChapter(v, chapterIndex int) int {
	if v > 0 {
		return v
	}
	return chapterIndex
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
