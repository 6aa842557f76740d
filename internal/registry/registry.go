// Package registry tracks crawl runs from creation through review or
// expiry. Runs still open after the configured TTL become expired and are
// no longer eligible for review; the TTL is a tunable, defaulting to 24h.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"NewsCrawler/internal/domain"
)

// Registry is the shared run store. All status transitions happen under
// the registry lock, so at most one review per run can ever succeed.
type Registry struct {
	mu       sync.Mutex
	runs     map[string]*domain.CrawlRun
	inflight map[string]struct{}
	ttl      time.Duration
	now      func() time.Time

	stop chan struct{}

	logger *slog.Logger
}

// New builds a registry with the given run TTL.
func New(ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Registry{
		runs:     map[string]*domain.CrawlRun{},
		inflight: map[string]struct{}{},
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source; test hook.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Open creates a new run holding the classified candidate set and returns
// it with a collision-resistant identifier.
func (r *Registry) Open(params domain.CrawlParams, records []domain.CandidateRecord, modelVersion int64) *domain.CrawlRun {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := &domain.CrawlRun{
		ID:           uuid.NewString(),
		CreatedAt:    r.now(),
		Params:       params,
		Records:      records,
		ModelVersion: modelVersion,
		Status:       domain.StatusOpen,
	}
	r.runs[run.ID] = run
	return run
}

// Get returns a run by id, applying lazy expiry first.
func (r *Registry) Get(id string) (*domain.CrawlRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	r.expireLocked(run)
	return run, nil
}

// AcquireReview claims a run for reconciliation. Outcomes:
//   - unknown id: ErrRunNotFound
//   - expired run: ErrRunExpired
//   - already reviewed: the run is returned with replay=true so the caller
//     can answer with the memoized result
//   - a concurrent reconciliation in flight: ErrReviewInProgress
//   - open run: claimed; the caller must end with Complete or Release.
func (r *Registry) AcquireReview(id string) (run *domain.CrawlRun, replay bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, false, domain.ErrRunNotFound
	}
	r.expireLocked(run)

	switch run.Status {
	case domain.StatusExpired:
		return nil, false, domain.ErrRunExpired
	case domain.StatusReviewed:
		return run, true, nil
	}

	if _, busy := r.inflight[id]; busy {
		return nil, false, fmt.Errorf("run %s: %w", id, domain.ErrReviewInProgress)
	}
	r.inflight[id] = struct{}{}
	return run, false, nil
}

// Complete marks a claimed run reviewed and memoizes the result for
// replayed submissions.
func (r *Registry) Complete(id string, result *domain.ReviewResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.inflight, id)
	if run, ok := r.runs[id]; ok {
		run.Status = domain.StatusReviewed
		run.Result = result
	}
}

// Release returns a claimed run to open after a failed reconciliation so
// the submission stays retryable.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
}

// expireLocked transitions a stale open run to expired. Caller holds mu.
func (r *Registry) expireLocked(run *domain.CrawlRun) {
	if run.Status == domain.StatusOpen && r.now().Sub(run.CreatedAt) > r.ttl {
		run.Status = domain.StatusExpired
		if r.logger != nil {
			r.logger.Info("run expired", "run_id", run.ID, "created_at", run.CreatedAt)
		}
	}
}

// Start launches the background sweep loop that expires stale runs and
// drops terminal runs older than twice the TTL.
func (r *Registry) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	r.mu.Lock()
	if r.stop != nil {
		r.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	r.stop = stop
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the sweep goroutine.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stop == nil {
		return
	}
	close(r.stop)
	r.stop = nil
}

func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-2 * r.ttl)
	for id, run := range r.runs {
		r.expireLocked(run)
		if run.Status != domain.StatusOpen && run.CreatedAt.Before(cutoff) {
			delete(r.runs, id)
		}
	}
}
