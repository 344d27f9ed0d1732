package services

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/dvoloshins/burnnote/internal/logging"
	"github.com/dvoloshins/burnnote/internal/server/blob"
	notesrepo "github.com/dvoloshins/burnnote/internal/server/repositories/notes"
)

// deleteJob is a pending physical deletion, keyed by note id.
type deleteJob struct {
	noteID     string
	storageKey string
	due        time.Time
}

// jobQueue is a min-heap of deleteJobs ordered by due time.
type jobQueue []*deleteJob

func (q jobQueue) Len() int { return len(q) }
func (q jobQueue) Less(i, j int) bool { return q[i].due.Before(q[j].due) }
func (q jobQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *jobQueue) Push(x any) { *q = append(*q, x.(*deleteJob)) }
func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return job
}

// DeletionScheduler is the work queue for deferred note deletion. Jobs fire
// best-effort: a failed delete is logged and dropped, never retried. The
// persisted read_once flag already keeps the note unreadable, so the timer
// state is not authoritative.
type DeletionScheduler struct {
	repo   notesrepo.Repository
	blobs  blob.Store
	logger logging.Logger

	mu    sync.Mutex
	queue jobQueue
	wake  chan struct{}
}

// NewDeletionScheduler builds an idle scheduler; call Run to start the worker.
func NewDeletionScheduler(repo notesrepo.Repository, blobs blob.Store, logger logging.Logger) *DeletionScheduler {
	return &DeletionScheduler{
		repo:   repo,
		blobs:  blobs,
		logger: logger.With("module", "deletion_scheduler"),
		wake:   make(chan struct{}, 1),
	}
}

// Schedule queues a note for deletion at due. Safe for concurrent use.
func (s *DeletionScheduler) Schedule(noteID, storageKey string, due time.Time) {
	s.mu.Lock()
	heap.Push(&s.queue, &deleteJob{noteID: noteID, storageKey: storageKey, due: due})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run executes the worker loop until ctx is cancelled. Pending jobs are
// abandoned on shutdown; the startup sweep of the next process picks the
// corresponding notes up again via their read_once flag.
func (s *DeletionScheduler) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(s.nextWait())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
			s.deleteDue(ctx)
		}
	}
}

// SweepConsumed deletes every note already marked read but still present.
// Called once at startup so consumed notes never accumulate across restarts.
func (s *DeletionScheduler) SweepConsumed(ctx context.Context) error {
	consumed, err := s.repo.ListConsumed(ctx)
	if err != nil {
		return err
	}
	for _, note := range consumed {
		s.deleteOne(ctx, note.ID, note.StorageKey)
	}
	if len(consumed) > 0 {
		s.logger.Info(ctx, "swept consumed notes", "count", len(consumed))
	}
	return nil
}

// nextWait returns how long the worker may sleep before a job comes due.
func (s *DeletionScheduler) nextWait() time.Duration {
	const idleWait = time.Minute

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return idleWait
	}
	wait := time.Until(s.queue[0].due)
	if wait < 0 {
		return 0
	}
	return wait
}

// deleteDue pops and executes every job whose due time has passed.
func (s *DeletionScheduler) deleteDue(ctx context.Context) {
	now := time.Now()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].due.After(now) {
			s.mu.Unlock()
			return
		}
		job := heap.Pop(&s.queue).(*deleteJob)
		s.mu.Unlock()

		s.deleteOne(ctx, job.noteID, job.storageKey)
	}
}

func (s *DeletionScheduler) deleteOne(ctx context.Context, noteID, storageKey string) {
	if err := s.repo.Delete(ctx, noteID); err != nil {
		s.logger.Error(ctx, "deferred delete failed", "note_id", noteID, "error", err)
		return
	}
	if storageKey != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, storageKey); err != nil {
			s.logger.Error(ctx, "attachment delete failed", "note_id", noteID, "storage_key", storageKey, "error", err)
		}
	}
	s.logger.Debug(ctx, "note deleted", "note_id", noteID)
}
