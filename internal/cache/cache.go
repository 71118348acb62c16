package cache

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/JustJay7/case-organizer/internal/records"
)

type Cache interface {
	Get(key string) ([]records.Summary, bool)
	Set(key string, value []records.Summary) error
	Delete(key string)
	Clear()
	Stats() CacheStats
}

type CacheStats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Size       int       `json:"size"`
	LastAccess time.Time `json:"last_access"`
}

type SearchCache struct {
	cache   *cache.Cache
	mu      sync.RWMutex
	stats   CacheStats
	maxSize int
}

func NewCache(maxSize int, ttl time.Duration) Cache {
	return &SearchCache{
		cache:   cache.New(ttl, ttl*2),
		maxSize: maxSize,
		stats:   CacheStats{},
	}
}

func (c *SearchCache) Get(key string) ([]records.Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.LastAccess = time.Now()

	if data, found := c.cache.Get(key); found {
		c.stats.Hits++
		if results, ok := data.([]records.Summary); ok {
			return results, true
		}
	}

	c.stats.Misses++
	return nil, false
}

func (c *SearchCache) Set(key string, value []records.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cache.ItemCount() >= c.maxSize {
		c.removeOldest()
	}

	c.cache.Set(key, value, cache.DefaultExpiration)
	return nil
}

func (c *SearchCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Delete(key)
}

// Clear drops everything. Called after any mutation of the archive so
// stale result sets never outlive the data they summarize.
func (c *SearchCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Flush()
	c.stats = CacheStats{}
}

func (c *SearchCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.stats.Size = c.cache.ItemCount()
	return c.stats
}

func (c *SearchCache) removeOldest() {
	items := c.cache.Items()
	if len(items) == 0 {
		return
	}

	var oldestKey string
	var oldestTime time.Time

	for key, item := range items {
		if oldestTime.IsZero() || item.Expiration < oldestTime.Unix() {
			oldestKey = key
			oldestTime = time.Unix(item.Expiration, 0)
		}
	}

	if oldestKey != "" {
		c.cache.Delete(oldestKey)
	}
}

// GenerateCacheKey derives a stable key from the full filter set
func GenerateCacheKey(f records.Filters) string {
	return fmt.Sprintf("search:%s", strings.Join([]string{
		f.Text, f.Party, f.PartyMode, f.Citation,
		f.PrimaryType, f.Subtype,
		strconv.Itoa(f.Year), strconv.Itoa(f.Limit),
	}, "|"))
}
