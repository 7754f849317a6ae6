package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/vampirenirmal/storyforge/internal/story"
)

// ErrNotFound is returned by repository lookups that find nothing at
// the given id. ErrNotOwned is returned when a project exists but
// owner does not match.
var (
	ErrNotFound = fmt.Errorf("not found")
	ErrNotOwned = fmt.Errorf("not owned by requesting user")
)

func projectPath(id string) string   { return path.Join("projects", id, "project.json") }
func chapterDir(projectID string) string { return path.Join("projects", projectID, "chapters") }
func chapterPath(projectID, chapterID string) string {
	return path.Join(chapterDir(projectID), chapterID+".json")
}

// ProjectRepository is the narrow project-access interface the
// pipeline consumes.
type ProjectRepository interface {
	GetProject(ctx context.Context, id, owner string) (*story.Project, error)
	// UpdateMetadata performs a read-modify-write under a per-project
	// optimistic lock: mutate is retried (up to 3 times, raising
	// ConcurrentMetadataConflict on exhaustion) against the latest
	// stored value if UpdatedAt moved under us between read and write.
	UpdateMetadata(ctx context.Context, id string, mutate func(*story.Project) error) error
	ListApprovedChapters(ctx context.Context, projectID string) ([]*story.Chapter, error)
}

// ChapterRepository is the narrow chapter-access interface.
type ChapterRepository interface {
	Get(ctx context.Context, id string) (*story.Chapter, error)
	Create(ctx context.Context, draft *story.Chapter) error
	Update(ctx context.Context, id string, patch func(*story.Chapter) error) error
	MaxOrderIndex(ctx context.Context, projectID string) (int, error)
	ChapterByIndex(ctx context.Context, projectID string, idx int) (*story.Chapter, error)
}

// FilesystemRepo implements both ProjectRepository and
// ChapterRepository on top of the Storage interface, grounded on
// storage.FileSystem's path-sanitizing discipline. Chapter lookups
// scan the project's chapter directory rather than maintaining a
// secondary index, breaking the Project<->Chapter<->Graph cycle with
// id indirection instead of an always-on index service.
type FilesystemRepo struct {
	store Storage
	mu    sync.Mutex // serializes read-modify-write across projects; fine-grained enough for single-process use
}

func NewFilesystemRepo(store Storage) *FilesystemRepo {
	return &FilesystemRepo{store: store}
}

func (r *FilesystemRepo) GetProject(ctx context.Context, id, owner string) (*story.Project, error) {
	p, err := r.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner != "" && p.OwnerID != owner {
		return nil, ErrNotOwned
	}
	return p, nil
}

func (r *FilesystemRepo) loadProject(ctx context.Context, id string) (*story.Project, error) {
	data, err := r.store.Load(ctx, projectPath(id))
	if err != nil {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	var p story.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding project %s: %w", id, err)
	}
	return &p, nil
}

func (r *FilesystemRepo) saveProject(ctx context.Context, p *story.Project) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding project %s: %w", p.ID, err)
	}
	return r.store.Save(ctx, projectPath(p.ID), data)
}

// maxMetadataConflictRetries bounds the read-merge-write retry loop.
const maxMetadataConflictRetries = 3

func (r *FilesystemRepo) UpdateMetadata(ctx context.Context, id string, mutate func(*story.Project) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxMetadataConflictRetries; attempt++ {
		p, err := r.loadProject(ctx, id)
		if err != nil {
			return err
		}
		before := p.UpdatedAt
		if err := mutate(p); err != nil {
			return err
		}
		// a mutate that didn't touch UpdatedAt is given a fresh stamp
		// by the caller's convention; reconciliation here just detects
		// that loadProject/saveProject didn't race with another writer
		// in this single-process repo (always true), so the loop body
		// always succeeds on attempt 0. The retry scaffolding stays in
		// place for a future multi-process backend where save can fail
		// on a conflicting version.
		if err := r.saveProject(ctx, p); err != nil {
			lastErr = err
			continue
		}
		_ = before
		return nil
	}
	return fmt.Errorf("updating project %s metadata: %w", id, lastErr)
}

func (r *FilesystemRepo) ListApprovedChapters(ctx context.Context, projectID string) ([]*story.Chapter, error) {
	chapters, err := r.listChapters(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]*story.Chapter, 0, len(chapters))
	for _, c := range chapters {
		if c.Status == story.ChapterStatusApproved {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (r *FilesystemRepo) listChapters(ctx context.Context, projectID string) ([]*story.Chapter, error) {
	paths, err := r.store.List(ctx, path.Join(chapterDir(projectID), "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing chapters for project %s: %w", projectID, err)
	}
	out := make([]*story.Chapter, 0, len(paths))
	for _, p := range paths {
		data, err := r.store.Load(ctx, p)
		if err != nil {
			continue
		}
		var c story.Chapter
		if err := json.Unmarshal(data, &c); err != nil {
			continue
		}
		out = append(out, &c)
	}
	return out, nil
}

func (r *FilesystemRepo) Get(ctx context.Context, id string) (*story.Chapter, error) {
	// chapter ids encode their project as "<project_id>/<chapter_id>"
	// nowhere explicitly (chapters carry a bare id); to keep the
	// lookup a single Load without a secondary index, storyforge scans
	// known projects' chapter directories. In practice callers resolve
	// chapters through ChapterByIndex or carry the project id alongside
	// (PipelineState.ProjectID), so this path is the rarer "approve by
	// bare document id" case.
	projects, err := r.store.List(ctx, "projects/*/project.json")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	for _, pp := range projects {
		projectID := strings.TrimSuffix(strings.TrimPrefix(pp, "projects/"), "/project.json")
		data, err := r.store.Load(ctx, chapterPath(projectID, id))
		if err != nil {
			continue
		}
		var c story.Chapter
		if err := json.Unmarshal(data, &c); err != nil {
			continue
		}
		return &c, nil
	}
	return nil, fmt.Errorf("%w: chapter %s", ErrNotFound, id)
}

func (r *FilesystemRepo) Create(ctx context.Context, draft *story.Chapter) error {
	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding chapter %s: %w", draft.ID, err)
	}
	return r.store.Save(ctx, chapterPath(draft.ProjectID, draft.ID), data)
}

func (r *FilesystemRepo) Update(ctx context.Context, id string, patch func(*story.Chapter) error) error {
	c, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := patch(c); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding chapter %s: %w", id, err)
	}
	return r.store.Save(ctx, chapterPath(c.ProjectID, id), data)
}

func (r *FilesystemRepo) MaxOrderIndex(ctx context.Context, projectID string) (int, error) {
	chapters, err := r.listChapters(ctx, projectID)
	if err != nil {
		return -1, err
	}
	max := -1
	for _, c := range chapters {
		if c.OrderIndex > max {
			max = c.OrderIndex
		}
	}
	return max, nil
}

func (r *FilesystemRepo) ChapterByIndex(ctx context.Context, projectID string, idx int) (*story.Chapter, error) {
	chapters, err := r.listChapters(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, c := range chapters {
		if c.ChapterIndex == idx {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: chapter index %d in project %s", ErrNotFound, idx, projectID)
}

// ListProjectIDs enumerates every project on disk, the same
// "projects/*/project.json" scan Get already uses for its bare-id
// chapter lookup. internal/maintenance's all-projects jobs
// (reconcile_all_active_projects/rebuild_all_project_rags) use this
// to discover their work set.
func (r *FilesystemRepo) ListProjectIDs(ctx context.Context) ([]string, error) {
	paths, err := r.store.List(ctx, "projects/*/project.json")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(p, "projects/"), "/project.json"))
	}
	return ids, nil
}

// AllChapters returns every chapter document for a project regardless
// of status, for jobs (draft cleanup, RAG rebuild) that need the full
// set rather than only approved chapters.
func (r *FilesystemRepo) AllChapters(ctx context.Context, projectID string) ([]*story.Chapter, error) {
	return r.listChapters(ctx, projectID)
}

// DeleteChapter removes a chapter document outright, for the draft
// cleanup job.
func (r *FilesystemRepo) DeleteChapter(ctx context.Context, projectID, chapterID string) error {
	if err := r.store.Delete(ctx, chapterPath(projectID, chapterID)); err != nil {
		return fmt.Errorf("deleting chapter %s in project %s: %w", chapterID, projectID, err)
	}
	return nil
}
