package redis

import (
	"context"

	"github.com/clausehound/citex/internal/domain/job"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
)

// CachedJobRepository decorates a job.Repository with a cached
// context-aggregation read.  Only ListBySearchContext is served from the
// cache; single-job reads always hit the backing store so status is never
// reported from a stale copy.  Every write busts the aggregation key for the
// job's search context as part of the write path.
type CachedJobRepository struct {
	inner  job.Repository
	cache  Cache
	logger logging.Logger
}

// NewCachedJobRepository wraps inner with the context-aggregation cache.
func NewCachedJobRepository(inner job.Repository, cache Cache, log logging.Logger) *CachedJobRepository {
	return &CachedJobRepository{inner: inner, cache: cache, logger: log}
}

var _ job.Repository = (*CachedJobRepository)(nil)

func contextKey(searchContextID string) string {
	return "jobs:context:" + searchContextID
}

// Create persists the job and invalidates its context aggregation.
func (r *CachedJobRepository) Create(ctx context.Context, j *job.CitationJob) error {
	if err := r.inner.Create(ctx, j); err != nil {
		return err
	}
	r.invalidate(ctx, j.SearchContextID)
	return nil
}

// Save persists the job and invalidates its context aggregation.
func (r *CachedJobRepository) Save(ctx context.Context, j *job.CitationJob) error {
	if err := r.inner.Save(ctx, j); err != nil {
		return err
	}
	r.invalidate(ctx, j.SearchContextID)
	return nil
}

// Update applies the partial update and invalidates the returned row's
// context aggregation.
func (r *CachedJobRepository) Update(ctx context.Context, id string, fields job.UpdateFields) (*job.CitationJob, error) {
	updated, err := r.inner.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, updated.SearchContextID)
	return updated, nil
}

// FindByID always reads the backing store.
func (r *CachedJobRepository) FindByID(ctx context.Context, id string) (*job.CitationJob, error) {
	return r.inner.FindByID(ctx, id)
}

// FindByExternalID always reads the backing store.
func (r *CachedJobRepository) FindByExternalID(ctx context.Context, externalID string) (*job.CitationJob, error) {
	return r.inner.FindByExternalID(ctx, externalID)
}

// ListBySearchContext serves the aggregation from cache, loading from the
// backing store on a miss.
func (r *CachedJobRepository) ListBySearchContext(ctx context.Context, searchContextID string) ([]*job.CitationJob, error) {
	var jobs []*job.CitationJob
	err := r.cache.GetOrSet(ctx, contextKey(searchContextID), &jobs, 0, func(ctx context.Context) (interface{}, error) {
		loaded, err := r.inner.ListBySearchContext(ctx, searchContextID)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			// Distinguish "no jobs" from "no value": cache the empty slice.
			loaded = []*job.CitationJob{}
		}
		return loaded, nil
	})
	if err != nil {
		if err == ErrCacheMiss {
			return nil, nil
		}
		return nil, err
	}
	return jobs, nil
}

// invalidate removes the cached aggregation for a search context.  Cache
// unavailability never fails the write that triggered it.
func (r *CachedJobRepository) invalidate(ctx context.Context, searchContextID string) {
	if err := r.cache.Delete(ctx, contextKey(searchContextID)); err != nil {
		r.logger.Warn("failed to invalidate context aggregation cache",
			logging.String("search_context_id", searchContextID), logging.Err(err))
	}
}
