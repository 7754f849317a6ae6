package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/story"
)

func TestMergeContinuityDedupesCharactersByNameCaseInsensitive(t *testing.T) {
	existing := story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "Elena Voss", Role: "protagonist"}},
	}
	incoming := story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "elena voss", CurrentState: "wounded"}},
	}

	merged := MergeContinuity(existing, incoming, 3)

	require.Len(t, merged.Characters, 1)
	require.Equal(t, "protagonist", merged.Characters[0].Role)
	require.Equal(t, "wounded", merged.Characters[0].CurrentState)
}

func TestMergeContinuityAppendsStatusHistoryOnChange(t *testing.T) {
	existing := story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "Mira", Status: "alive"}},
	}
	incoming := story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "Mira", Status: "dead"}},
	}

	merged := MergeContinuity(existing, incoming, 7)

	require.Equal(t, "dead", merged.Characters[0].Status)
	require.Len(t, merged.Characters[0].StatusHistory, 1)
	require.Equal(t, "dead", merged.Characters[0].StatusHistory[0].Value)
	require.Equal(t, 7, merged.Characters[0].StatusHistory[0].ChapterIndex)
}

func TestMergeContinuityDoesNotAppendHistoryWhenStatusUnchanged(t *testing.T) {
	existing := story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "Mira", Status: "alive"}},
	}
	incoming := story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "Mira", Status: "alive"}},
	}

	merged := MergeContinuity(existing, incoming, 7)

	require.Empty(t, merged.Characters[0].StatusHistory)
}

func TestMergeContinuityIsIdempotent(t *testing.T) {
	existing := story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "Mira", Status: "alive", Traits: []string{"brave"}}},
	}
	incoming := story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "Mira", Status: "dead", Traits: []string{"brave", "reckless"}}},
	}

	once := MergeContinuity(existing, incoming, 4)
	twice := MergeContinuity(once, incoming, 4)

	require.Equal(t, once.Characters[0].Status, twice.Characters[0].Status)
	require.Equal(t, once.Characters[0].StatusHistory, twice.Characters[0].StatusHistory)
	require.Equal(t, once.Characters[0].Traits, twice.Characters[0].Traits)
}

func TestMergeContinuityUnionDedupPreservesOrder(t *testing.T) {
	existing := story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "Mira", Traits: []string{"brave", "kind"}}},
	}
	incoming := story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "Mira", Traits: []string{"KIND", "reckless"}}},
	}

	merged := MergeContinuity(existing, incoming, 1)

	require.Equal(t, []string{"brave", "kind", "reckless"}, merged.Characters[0].Traits)
}

func TestMergeContinuityEventsTakeMaxChapterIndex(t *testing.T) {
	existing := story.ContinuityFacts{
		Events: []story.EventFact{{Name: "The Siege", ChapterIndex: 3}},
	}
	incoming := story.ContinuityFacts{
		Events: []story.EventFact{{Name: "the siege", ChapterIndex: 9}},
	}

	merged := MergeContinuity(existing, incoming, 9)

	require.Len(t, merged.Events, 1)
	require.Equal(t, 9, merged.Events[0].ChapterIndex)
}

func TestMergeContinuityRelationsKeyedByFromToType(t *testing.T) {
	existing := story.ContinuityFacts{
		Relations: []story.RelationFact{{From: "A", To: "B", Type: "ally", CurrentState: "trusting"}},
	}
	incoming := story.ContinuityFacts{
		Relations: []story.RelationFact{
			{From: "a", To: "b", Type: "ALLY", CurrentState: "betrayed"},
			{From: "A", To: "B", Type: "rival", CurrentState: "wary"},
		},
	}

	merged := MergeContinuity(existing, incoming, 5)

	require.Len(t, merged.Relations, 2)
	var ally, rival *story.RelationFact
	for i := range merged.Relations {
		switch merged.Relations[i].Type {
		case "ally", "ALLY":
			ally = &merged.Relations[i]
		case "rival":
			rival = &merged.Relations[i]
		}
	}
	require.NotNil(t, ally)
	require.NotNil(t, rival)
	require.Equal(t, "betrayed", ally.CurrentState)
	require.Len(t, ally.EvolutionHistory, 1)
}

func TestMergeContinuityObjectDestroyedRecordsHistory(t *testing.T) {
	existing := story.ContinuityFacts{
		Objects: []story.ObjectFact{{Name: "Sunblade", Status: story.ObjectPossessed}},
	}
	incoming := story.ContinuityFacts{
		Objects: []story.ObjectFact{{Name: "Sunblade", Status: story.ObjectDestroyed}},
	}

	merged := MergeContinuity(existing, incoming, 12)

	require.Equal(t, story.ObjectDestroyed, merged.Objects[0].Status)
	require.Len(t, merged.Objects[0].StatusHistory, 1)
}
