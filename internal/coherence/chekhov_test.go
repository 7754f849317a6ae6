package coherence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/story"
)

func TestCheckUnresolvedAlertsOnOverdueHighUrgencyGun(t *testing.T) {
	tracker := NewChekhovTracker()
	guns := []story.ChekhovGun{
		{Element: "the sealed letter", ElementType: "object", IntroducedChapter: 1, Urgency: story.ChekhovUrgencyHigh},
	}

	alerts := tracker.CheckUnresolved(guns, 10, 15, 7)
	require.Len(t, alerts, 1)
	require.Equal(t, story.SeverityHigh, alerts[0].Severity)
}

func TestCheckUnresolvedDoesNotAlertBeforeAdjustedDeadline(t *testing.T) {
	tracker := NewChekhovTracker()
	guns := []story.ChekhovGun{
		{Element: "the sealed letter", ElementType: "object", IntroducedChapter: 1, Urgency: story.ChekhovUrgencyHigh},
	}

	alerts := tracker.CheckUnresolved(guns, 5, 15, 7)
	require.Empty(t, alerts)
}

func TestCheckUnresolvedSkipsResolvedGuns(t *testing.T) {
	tracker := NewChekhovTracker()
	guns := []story.ChekhovGun{
		{Element: "the sealed letter", IntroducedChapter: 1, Urgency: story.ChekhovUrgencyHigh, Resolved: true},
	}

	alerts := tracker.CheckUnresolved(guns, 30, 15, 7)
	require.Empty(t, alerts)
}

func TestCheckUnresolvedIgnoresLowUrgencyEvenWhenVeryOverdue(t *testing.T) {
	tracker := NewChekhovTracker()
	guns := []story.ChekhovGun{
		{Element: "a minor detail", IntroducedChapter: 1, Urgency: story.ChekhovUrgencyLow},
	}

	alerts := tracker.CheckUnresolved(guns, 50, 15, 7)
	require.Empty(t, alerts)
}

func TestElementsMatchExactAndFuzzy(t *testing.T) {
	require.True(t, ElementsMatch("the sealed letter", "The Sealed Letter"))
	require.True(t, ElementsMatch("the sealed letter from her mother", "sealed letter mother"))
	require.False(t, ElementsMatch("the sealed letter", "a completely different object"))
}
