package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/cache"
	"github.com/vampirenirmal/storyforge/internal/coherence"
	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/llm"
	"github.com/vampirenirmal/storyforge/internal/memory"
	"github.com/vampirenirmal/storyforge/internal/storage"
	"github.com/vampirenirmal/storyforge/internal/story"
)

// scriptedStub dispatches a canned response by matching the request's
// system prompt against a substring, the same stubbing idiom
// internal/coherence's analyst_test.go uses for a single specialist,
// extended here to cover every specialist the pipeline drives in one
// call. scoreOverride lets a test swap the critic/analyst response
// mid-run without restarting the server.
type scriptedStub struct {
	t       *testing.T
	byMatch map[string]func() string
}

func newScriptedStub(t *testing.T) *scriptedStub {
	return &scriptedStub{t: t, byMatch: map[string]func() string{}}
}

func (s *scriptedStub) on(substr string, text func() string) *scriptedStub {
	s.byMatch[substr] = text
	return s
}

func (s *scriptedStub) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			System string `json:"system"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		text := "A short scene of prose advancing the plot."
		for substr, f := range s.byMatch {
			if strings.Contains(body.System, substr) {
				text = f()
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": text}},
		})
	}))
}

const planJSON = `{
	"chapter_number": 1,
	"scene_beats": ["The hook", "Rising pressure", "The cliffhanger"],
	"target_emotion": "dread",
	"required_plot_points": ["the letter arrives"],
	"forbidden_actions": ["the hero dies"],
	"success_criteria": ["reader wants more"],
	"cliffhanger_type": "reveal",
	"estimated_word_count": 1800
}`

func passingAnalystJSON() string {
	return `{"overall_coherence_score": 9.0, "summary": "consistent"}`
}

func failingAnalystJSON() string {
	return `{"overall_coherence_score": 2.0, "summary": "broken timeline"}`
}

func passingPlotPointJSON() string {
	return `{"covered_points": ["the letter arrives"], "missing_points": [], "forbidden_violations": [], "coverage_score": 9, "explanation": "covered"}`
}

func passingCriticJSON() string {
	return `{"score": 8.5, "issues": [], "suggestions": [], "cliffhanger_ok": true, "pacing_ok": true, "continuity_risks": []}`
}

func failingCriticJSON() string {
	return `{"score": 2.0, "issues": ["flat ending"], "suggestions": ["add a twist"], "cliffhanger_ok": false, "pacing_ok": false, "continuity_risks": []}`
}

// testRig bundles a fully wired ChapterPipeline plus the seams a test
// needs to poke: the stub server and the repositories backing it.
type testRig struct {
	pipeline    *ChapterPipeline
	srv         *httptest.Server
	store       *storage.FileSystem
	projectRepo *storage.FilesystemRepo
	chapterRepo *storage.FilesystemRepo
}

func newTestRig(t *testing.T, stub *scriptedStub) *testRig {
	t.Helper()
	srv := stub.server()
	t.Cleanup(srv.Close)

	client := llm.NewClient("test-key-0123456789", llm.WithAPIConfig(srv.URL, "claude-sonnet-4-5", ""), llm.WithRetry(0))

	graph, err := memory.NewGraph(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = graph })

	cfg := config.Default()
	memorySvc := memory.NewService(client, graph, cache.NewInMemory(), cfg.Truncation, cfg.Memory)

	analyst := coherence.NewAnalyst(client)
	graphValidator := coherence.NewGraphValidator(memorySvc.Queries())
	plotCheck := NewPlotPointChecker(client)

	store := storage.NewFileSystem(t.TempDir())
	repo := storage.NewFilesystemRepo(store)

	pipeline := NewChapterPipeline(
		repo, repo, memorySvc, nil,
		NewCollectContextPhase(cfg.Chapter),
		NewRetrieveContextPhase(memorySvc, nil, cfg.RAG.TopK),
		NewPlanChapterPhase(client, cfg.PlanReasoning),
		NewWriteChapterPhase(client, cfg.Beats, nil),
		NewValidateContinuityPhase(analyst, graphValidator, plotCheck),
		NewCriticPhase(client, cfg.Truncation),
		cfg.QualityGate,
	)

	return &testRig{pipeline: pipeline, srv: srv, store: store, projectRepo: repo, chapterRepo: repo}
}

// seedProject writes a brand-new project straight to the filesystem
// store. FilesystemRepo.UpdateMetadata is a read-modify-write over an
// existing project.json and errors with ErrNotFound on a project that
// doesn't exist yet, so bootstrapping has to go through the raw store.
func seedProject(t *testing.T, store *storage.FileSystem) *story.Project {
	t.Helper()
	project := &story.Project{
		ID:      uuid.NewString(),
		OwnerID: "owner-1",
		Concept: story.Concept{Premise: "a city that forgets its own history", Tone: "gothic"},
		Plan: story.Plan{
			Status:        story.PlanStatusAccepted,
			GlobalSummary: "a chronicler fights to keep the city's memory alive",
			Chapters: []story.PlanChapter{
				{ChapterIndex: 1, Title: "The Letter", Summary: "a warning arrives", Status: story.ChapterEntryPending},
			},
		},
	}
	data, err := json.Marshal(project)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), path.Join("projects", project.ID, "project.json"), data))
	return project
}

func TestGenerateChapterCompletesOnFirstPassWhenQualityGatePasses(t *testing.T) {
	stub := newScriptedStub(t).
		on(planSystemPrompt, func() string { return planJSON }).
		on(analystSystemPrompt, func() string { return passingAnalystJSON() }).
		on(plotPointSystemPrompt, func() string { return passingPlotPointJSON() }).
		on(criticSystemPrompt, func() string { return passingCriticJSON() })
	rig := newTestRig(t, stub)
	project := seedProject(t, rig.store)

	state, chapter, err := rig.pipeline.GenerateChapter(context.Background(), GenerateChapterRequest{
		ProjectID: project.ID, OwnerID: project.OwnerID, ChapterIndex: 1, CreateDocument: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, state.RevisionCount)
	require.NotEmpty(t, state.Draft)
	require.False(t, state.ContinuityValidation.Blocking)
	require.NotNil(t, chapter)
	require.Equal(t, story.ChapterStatusDraft, chapter.Status)
}

func TestGenerateChapterStopsAtMaxRevisionsWhenGateNeverPasses(t *testing.T) {
	stub := newScriptedStub(t).
		on(planSystemPrompt, func() string { return planJSON }).
		on(analystSystemPrompt, func() string { return failingAnalystJSON() }).
		on(plotPointSystemPrompt, func() string { return passingPlotPointJSON() }).
		on(criticSystemPrompt, func() string { return failingCriticJSON() })
	rig := newTestRig(t, stub)
	project := seedProject(t, rig.store)

	state, _, err := rig.pipeline.GenerateChapter(context.Background(), GenerateChapterRequest{
		ProjectID: project.ID, OwnerID: project.OwnerID, ChapterIndex: 1,
		CreateDocument: false, MaxRevisions: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 2, state.RevisionCount)
	require.True(t, state.ContinuityValidation.Blocking)
}

func TestApproveChapterMergesFactsAndMarksApproved(t *testing.T) {
	stub := newScriptedStub(t).
		on("narrative continuity assistant", func() string {
			return `{"summary": "a warning arrives", "characters": [], "locations": [], "relations": [], "events": [], "objects": [], "character_locations": []}`
		})
	rig := newTestRig(t, stub)
	project := seedProject(t, rig.store)

	chapter := &story.Chapter{
		ID: uuid.NewString(), ProjectID: project.ID, OrderIndex: 0, ChapterIndex: 1,
		Status: story.ChapterStatusDraft, Title: "The Letter", Content: "The letter arrived at dawn.",
		Summary: "a warning arrives",
	}
	require.NoError(t, rig.chapterRepo.Create(context.Background(), chapter))

	err := rig.pipeline.ApproveChapter(context.Background(), chapter.ID, project.OwnerID)
	require.NoError(t, err)

	updated, err := rig.chapterRepo.Get(context.Background(), chapter.ID)
	require.NoError(t, err)
	require.Equal(t, story.ChapterStatusApproved, updated.Status)
	require.NotNil(t, updated.ApprovedAt)

	updatedProject, err := rig.projectRepo.GetProject(context.Background(), project.ID, project.OwnerID)
	require.NoError(t, err)
	require.Len(t, updatedProject.RecentChapterSummaries, 1)
	require.Equal(t, story.ChapterEntryApproved, updatedProject.Plan.Chapters[0].Status)
}
