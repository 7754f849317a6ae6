package maintenance

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/queue"
)

// Jobs bundles the four maintenance workers the scheduler dispatches.
// Each is independently constructible, so `storyforge maintain` can
// wire real repos/services while tests wire fakes.
type Jobs struct {
	Reconciler   *Reconciler
	RAGRebuilder *RAGRebuilder
	DraftCleaner *DraftCleaner
	FactPromoter *FactPromoter
	Projects     projectLister

	// DraftRetentionDays is the cleanup job's age cutoff in days,
	// mirroring cleanup_old_drafts's default days_threshold=30.
	DraftRetentionDays int
}

// Scheduler runs the four maintenance jobs on their own cadence via
// robfig/cron, each dispatched onto the task queue's maintenance_low
// lane rather than run inline, so a slow reconciliation pass never
// blocks the next tick. Grounded on celery_app.py's beat_schedule
// (weekly reconciliation, monthly RAG rebuild, hourly fact promotion)
// adapted to storyforge's single-process DaemonConfig cadences.
type Scheduler struct {
	cron   *cron.Cron
	queue  *queue.PriorityQueue
	jobs   Jobs
	logger *slog.Logger
}

func NewScheduler(q *queue.PriorityQueue, jobs Jobs, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		queue:  q,
		jobs:   jobs,
		logger: logger.With("component", "maintenance_scheduler"),
	}
}

// Start registers every job at its configured cadence and starts the
// cron scheduler. cfg's three interval fields are converted to cron
// expressions via "@every"; fact promotion keeps its hourly-multiple
// CronSpec since its cadence is naturally hour-aligned.
func (s *Scheduler) Start(cfg *config.DaemonConfig) error {
	if _, err := s.cron.AddFunc(cfg.CronSpec(), s.submit("fact_promotion", s.runFactPromotion)); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every "+cfg.ReconciliationInterval.String(), s.submit("reconciliation", s.runReconciliation)); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every "+cfg.RAGRebuildInterval.String(), s.submit("rag_rebuild", s.runRAGRebuild)); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every "+cfg.DraftCleanupInterval.String(), s.submit("draft_cleanup", s.runDraftCleanup)); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron scheduler and waits for any already-running job
// invocation to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// submit wraps a job runner as a cron func that enqueues the work
// onto the maintenance_low lane instead of running it on the cron
// goroutine directly.
func (s *Scheduler) submit(name string, run func(ctx context.Context) error) func() {
	return func() {
		err := s.queue.Submit(context.Background(), queue.Task{
			ID:       name,
			Priority: queue.PriorityMaintenance,
			Run:      run,
		})
		if err != nil {
			s.logger.Warn("failed to submit maintenance job", "job", name, "error", err)
		}
	}
}

func (s *Scheduler) runFactPromotion(ctx context.Context) error {
	if s.jobs.FactPromoter == nil {
		return nil
	}
	results, err := PromoteAllProjects(ctx, s.jobs.FactPromoter, s.jobs.Projects)
	if err != nil {
		return err
	}
	s.logger.Info("fact promotion sweep complete", "projects", len(results))
	return nil
}

func (s *Scheduler) runReconciliation(ctx context.Context) error {
	if s.jobs.Reconciler == nil {
		return nil
	}
	results, err := ReconcileAllProjects(ctx, s.jobs.Reconciler, s.jobs.Projects)
	if err != nil {
		return err
	}
	s.logger.Info("reconciliation sweep complete", "projects", len(results))
	return nil
}

func (s *Scheduler) runRAGRebuild(ctx context.Context) error {
	if s.jobs.RAGRebuilder == nil {
		return nil
	}
	results, err := RebuildAllProjects(ctx, s.jobs.RAGRebuilder, s.jobs.Projects)
	if err != nil {
		return err
	}
	s.logger.Info("rag rebuild sweep complete", "projects", len(results))
	return nil
}

func (s *Scheduler) runDraftCleanup(ctx context.Context) error {
	if s.jobs.DraftCleaner == nil {
		return nil
	}
	ids, err := s.jobs.Projects.ListProjectIDs(ctx)
	if err != nil {
		return err
	}
	threshold := s.jobs.DraftRetentionDays
	if threshold < 1 {
		threshold = 30
	}
	var deleted int
	for _, id := range ids {
		res, err := s.jobs.DraftCleaner.CleanupProject(ctx, id, threshold)
		if err != nil {
			s.logger.Warn("draft cleanup failed for project", "project_id", id, "error", err)
			continue
		}
		deleted += res.DeletedDrafts
	}
	s.logger.Info("draft cleanup sweep complete", "projects", len(ids), "deleted", deleted)
	return nil
}
