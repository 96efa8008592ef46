package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/terrierbot/registrar/pkg/observability"
)

const l1Size = 256

type l1Entry struct {
	value     []byte
	expiresAt time.Time
}

// CachedService wraps a Service with a read-through cache for catalog
// reads: an in-process LRU in front of redis in front of the store.
// Selections are per-user writes on the hot registration path and pass
// straight through.
type CachedService struct {
	inner   Service
	redis   *redis.Client
	l1      *lru.Cache[string, l1Entry]
	metrics *observability.Metrics
	ttl     map[string]time.Duration
}

// NewCachedService creates a CachedService. metrics may be nil.
func NewCachedService(inner Service, redisClient *redis.Client, metrics *observability.Metrics) (*CachedService, error) {
	l1, err := lru.New[string, l1Entry](l1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}
	return &CachedService{
		inner:   inner,
		redis:   redisClient,
		l1:      l1,
		metrics: metrics,
		ttl: map[string]time.Duration{
			"departments": 1 * time.Hour,
			"courses":     15 * time.Minute,
		},
	}, nil
}

func (c *CachedService) hit(cacheType string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(cacheType).Inc()
	}
}

func (c *CachedService) miss(cacheType string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// lookup checks L1 then redis for the key. A redis hit is promoted into
// L1 with the remaining slice of its TTL approximated by the full TTL.
func (c *CachedService) lookup(key string, ttl time.Duration) ([]byte, bool) {
	if entry, ok := c.l1.Get(key); ok {
		if time.Now().Before(entry.expiresAt) {
			c.hit("catalog_l1")
			return entry.value, true
		}
		c.l1.Remove(key)
	}

	if c.redis != nil {
		cached, err := c.redis.Get(context.Background(), key).Bytes()
		if err == nil {
			c.hit("catalog_redis")
			c.l1.Add(key, l1Entry{value: cached, expiresAt: time.Now().Add(ttl)})
			return cached, true
		}
	}
	return nil, false
}

func (c *CachedService) store(key string, value []byte, ttl time.Duration) {
	c.l1.Add(key, l1Entry{value: value, expiresAt: time.Now().Add(ttl)})
	if c.redis != nil {
		c.redis.Set(context.Background(), key, value, ttl)
	}
}

// Departments lists all departments, served from cache when possible.
func (c *CachedService) Departments() ([]string, error) {
	key := "catalog:departments"
	ttl := c.ttl["departments"]

	if cached, ok := c.lookup(key, ttl); ok {
		var departments []string
		if err := json.Unmarshal(cached, &departments); err == nil {
			return departments, nil
		}
	}
	c.miss("catalog_departments")

	departments, err := c.inner.Departments()
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(departments); err == nil {
		c.store(key, data, ttl)
	}
	return departments, nil
}

// ListCourses returns a semester's course sections, served from cache
// when possible.
func (c *CachedService) ListCourses(semesterSeason string, semesterYear int16) ([]CourseSection, error) {
	key := fmt.Sprintf("catalog:courses:%s:%d", semesterSeason, semesterYear)
	ttl := c.ttl["courses"]

	if cached, ok := c.lookup(key, ttl); ok {
		var courses []CourseSection
		if err := json.Unmarshal(cached, &courses); err == nil {
			return courses, nil
		}
	}
	c.miss("catalog_courses")

	courses, err := c.inner.ListCourses(semesterSeason, semesterYear)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(courses); err == nil {
		c.store(key, data, ttl)
	}
	return courses, nil
}

// AddSelection passes through to the store.
func (c *CachedService) AddSelection(username string, courseID int64, section string) error {
	return c.inner.AddSelection(username, courseID, section)
}

// RemoveSelection passes through to the store.
func (c *CachedService) RemoveSelection(username string, courseID int64, section string) error {
	return c.inner.RemoveSelection(username, courseID, section)
}

// ListSelections passes through to the store. Selections feed session
// creation snapshots, so a stale read here would snapshot the wrong
// targets.
func (c *CachedService) ListSelections(username string) ([]Selection, error) {
	return c.inner.ListSelections(username)
}
