package maintenance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/rag"
	"github.com/vampirenirmal/storyforge/internal/storage"
	"github.com/vampirenirmal/storyforge/internal/story"
)

type fakeVectorStore struct {
	docs map[string][]rag.VectorDocument // projectID -> docs
}

func newFakeVectorStore() *fakeVectorStore { return &fakeVectorStore{docs: map[string][]rag.VectorDocument{}} }

func (f *fakeVectorStore) Upsert(ctx context.Context, docs []rag.VectorDocument) error {
	for _, d := range docs {
		f.docs[d.ProjectID] = append(f.docs[d.ProjectID], d)
	}
	return nil
}

func (f *fakeVectorStore) DeleteByDocument(ctx context.Context, projectID, documentID string) error {
	kept := f.docs[projectID][:0]
	for _, d := range f.docs[projectID] {
		if d.DocumentID != documentID {
			kept = append(kept, d)
		}
	}
	f.docs[projectID] = kept
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, projectID, kind string, query []float32, k int) ([]rag.ScoredChunk, error) {
	return nil, nil
}

func (f *fakeVectorStore) CountProject(ctx context.Context, projectID string) (int, error) {
	return len(f.docs[projectID]), nil
}

func newTestRAGService(store rag.VectorStore) *rag.Service {
	cfg := config.RAGConfig{TopK: 6, ChunkSize: 500, ChunkOverlap: 50, EmbeddingDimension: 32}
	return rag.NewService(store, rag.NewHashEmbedder(32), cfg)
}

func TestRAGRebuilderIndexesAllChapters(t *testing.T) {
	fsStore := storage.NewFileSystem(t.TempDir())
	repo := storage.NewFilesystemRepo(fsStore)
	project := newTestProject()
	seedProject(t, fsStore, project)

	ch1 := &story.Chapter{ID: "c1", ProjectID: project.ID, OrderIndex: 0, ChapterIndex: 1, Status: story.ChapterStatusApproved, Content: "Chapter one content here."}
	ch2 := &story.Chapter{ID: "c2", ProjectID: project.ID, OrderIndex: 1, ChapterIndex: 2, Status: story.ChapterStatusDraft, Content: "Chapter two content here."}
	require.NoError(t, repo.Create(context.Background(), ch1))
	require.NoError(t, repo.Create(context.Background(), ch2))

	vecStore := newFakeVectorStore()
	ragSvc := newTestRAGService(vecStore)

	rebuilder := NewRAGRebuilder(repo, ragSvc, nil)
	result, err := rebuilder.RebuildProject(context.Background(), project.ID)
	require.NoError(t, err)
	require.Equal(t, project.ID, result.ProjectID)
	require.Greater(t, result.ChunksCount, 0)
}

func TestRebuildAllProjectsCoversEveryProject(t *testing.T) {
	fsStore := storage.NewFileSystem(t.TempDir())
	repo := storage.NewFilesystemRepo(fsStore)
	p1, p2 := newTestProject(), newTestProject()
	seedProject(t, fsStore, p1)
	seedProject(t, fsStore, p2)

	vecStore := newFakeVectorStore()
	rebuilder := NewRAGRebuilder(repo, newTestRAGService(vecStore), nil)

	results, err := RebuildAllProjects(context.Background(), rebuilder, repo)
	require.NoError(t, err)
	require.Len(t, results, 2)
}
