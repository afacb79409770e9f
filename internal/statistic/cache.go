package statistic

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"

	"juju/internal/models"
	"juju/internal/providers"
	"juju/internal/storage"
	"juju/internal/structures"
)

const (
	keyPrefix   = "aggregate:"
	stripeCount = 16
)

// SessionSource is where aggregates are computed from.
type SessionSource interface {
	Load(ctx context.Context, yr *models.YearRange) ([]models.Session, storage.LoadReport, error)
}

type stripe struct {
	mu sync.RWMutex
	// invalidated holds the epoch of the last invalidation per project.
	invalidated map[string]uint64
}

// StatisticsCache serves per-project aggregates for at most ttl. A value
// computed before an invalidation of its project is never stored, so the
// first Get after an invalidation always recomputes.
type StatisticsCache struct {
	backend    providers.CacheProviderInterface
	source     SessionSource
	logger     providers.Logger
	ttl        time.Duration
	batchSize  int
	batchPause time.Duration
	now        func() time.Time

	epoch     atomic.Uint64
	clearedAt atomic.Uint64
	stripes   [stripeCount]stripe
}

func NewStatisticsCache(conf *structures.Config, backend providers.CacheProviderInterface, source SessionSource, logger providers.Logger) *StatisticsCache {
	c := &StatisticsCache{
		backend:    backend,
		source:     source,
		logger:     logger,
		ttl:        conf.CacheTTL(),
		batchSize:  conf.Cache.BatchSize,
		batchPause: conf.Cache.BatchPause,
		now:        time.Now,
	}
	if c.batchSize <= 0 {
		c.batchSize = structures.DefaultCacheBatchSize
	}
	for i := range c.stripes {
		c.stripes[i].invalidated = make(map[string]uint64)
	}
	return c
}

// SetClock replaces the time source used for ComputedAt and staleness checks.
func (c *StatisticsCache) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns the aggregate for projectID, recomputing it synchronously when
// it is missing, stale or invalidated.
func (c *StatisticsCache) Get(ctx context.Context, projectID string) (models.Aggregate, error) {
	if agg, ok := c.lookup(projectID); ok {
		return agg, nil
	}

	start := c.epoch.Load()
	sessions, _, err := c.source.Load(ctx, nil)
	if err != nil {
		return models.Aggregate{}, err
	}
	agg := models.Aggregate{ProjectID: projectID, ComputedAt: c.now()}
	for _, s := range sessions {
		if s.ProjectID == projectID {
			agg.Add(s)
		}
	}
	c.store(projectID, agg, start)
	return agg, nil
}

// Invalidate drops the cached aggregate of one project.
func (c *StatisticsCache) Invalidate(projectID string) {
	if projectID == "" {
		return
	}
	st := c.stripeFor(projectID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.invalidated[projectID] = c.epoch.Inc()
	c.backend.Del(keyPrefix + projectID)
}

// InvalidateAll drops every cached aggregate.
func (c *StatisticsCache) InvalidateAll() {
	for i := range c.stripes {
		c.stripes[i].mu.Lock()
	}
	defer func() {
		for i := range c.stripes {
			c.stripes[i].mu.Unlock()
		}
	}()
	c.clearedAt.Store(c.epoch.Inc())
	c.backend.Clear()
}

// Precompute fills the cache for projectIDs, or for every project with
// sessions when projectIDs is empty, from a single load. Values are stored in
// batches with a pause between them. It returns how many aggregates were stored.
func (c *StatisticsCache) Precompute(ctx context.Context, projectIDs []string) (int, error) {
	start := c.epoch.Load()
	sessions, _, err := c.source.Load(ctx, nil)
	if err != nil {
		return 0, err
	}
	computedAt := c.now()
	aggs := models.AggregateByProject(sessions, computedAt)

	if len(projectIDs) == 0 {
		for id := range aggs {
			projectIDs = append(projectIDs, id)
		}
		sort.Strings(projectIDs)
	}

	stored := 0
	for i := 0; i < len(projectIDs); i += c.batchSize {
		if i > 0 && c.batchPause > 0 {
			select {
			case <-ctx.Done():
				return stored, ctx.Err()
			case <-time.After(c.batchPause):
			}
		}
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		end := min(i+c.batchSize, len(projectIDs))
		for _, id := range projectIDs[i:end] {
			agg, ok := aggs[id]
			if !ok {
				agg = models.Aggregate{ProjectID: id, ComputedAt: computedAt}
			}
			if c.store(id, agg, start) {
				stored++
			}
		}
	}
	c.logger.Debugf(providers.TypeCache, "Precomputed %d of %d aggregates", stored, len(projectIDs))
	return stored, nil
}

func (c *StatisticsCache) lookup(projectID string) (models.Aggregate, bool) {
	st := c.stripeFor(projectID)
	st.mu.RLock()
	defer st.mu.RUnlock()

	raw, ok := c.backend.Get(keyPrefix + projectID)
	if !ok {
		return models.Aggregate{}, false
	}
	var agg models.Aggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		c.logger.Warnf(providers.TypeCache, "Dropping undecodable cache entry for %s: %v", projectID, err)
		return models.Aggregate{}, false
	}
	if c.now().Sub(agg.ComputedAt) >= c.ttl {
		return models.Aggregate{}, false
	}
	return agg, true
}

// store keeps agg unless its project was invalidated after start.
func (c *StatisticsCache) store(projectID string, agg models.Aggregate, start uint64) bool {
	st := c.stripeFor(projectID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if c.clearedAt.Load() > start || st.invalidated[projectID] > start {
		c.logger.Debugf(providers.TypeCache, "Discarding aggregate for %s computed before an invalidation", projectID)
		return false
	}
	raw, err := json.Marshal(agg)
	if err != nil {
		c.logger.Errorf(providers.TypeCache, "Unable to encode aggregate for %s: %v", projectID, err)
		return false
	}
	c.backend.Set(keyPrefix+projectID, raw)
	return true
}

func (c *StatisticsCache) stripeFor(projectID string) *stripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(projectID))
	return &c.stripes[h.Sum32()%stripeCount]
}
