package coherence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/llm"
	"github.com/vampirenirmal/storyforge/internal/story"
)

func TestPOVValidatorShortCircuitsOnOmniscient(t *testing.T) {
	validator := NewPOVValidator(nil, config.CoherenceConfig{POVValidatorEnabled: true})

	result, err := validator.Validate(context.Background(), "chapter text", "Narrator", story.POVOmniscient, nil)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Empty(t, result.Issues)
}

func TestPOVValidatorDisabledSkipsCheck(t *testing.T) {
	validator := NewPOVValidator(nil, config.CoherenceConfig{POVValidatorEnabled: false})

	result, err := validator.Validate(context.Background(), "chapter text", "Elena", story.POVLimited, nil)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, "POV validation disabled", result.Note)
}

func TestPOVValidatorReportsViolationsFromLLM(t *testing.T) {
	srv := anthropicStub(`{
		"violations": [{"type": "forbidden_thoughts", "severity": "high", "explanation": "narration enters Orin's mind though Elena is POV"}],
		"valid": false,
		"overall_assessment": "one clear violation"
	}`)
	defer srv.Close()

	client := llm.NewClient("test-key-0123456789", llm.WithAPIConfig(srv.URL, "claude-sonnet-4-5", ""), llm.WithRetry(0))
	validator := NewPOVValidator(client, config.CoherenceConfig{POVValidatorEnabled: true, POVDefaultType: "limited"})

	result, err := validator.Validate(context.Background(), "chapter text", "Elena", story.POVLimited, []string{"Elena knows Orin lied"})
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Len(t, result.Issues, 1)
	require.Equal(t, "pov_forbidden_thoughts", result.Issues[0].Type)
}

func TestGetPOVGuidelinesReturnsForbiddenListForLimited(t *testing.T) {
	_, forbidden, _ := GetPOVGuidelines(story.POVLimited)
	require.NotEmpty(t, forbidden)
}

func TestGetPOVGuidelinesOmniscientHasNoForbidden(t *testing.T) {
	_, forbidden, _ := GetPOVGuidelines(story.POVOmniscient)
	require.Empty(t, forbidden)
}
