package matching

import (
	"container/list"
	"slices"
	"strings"
	"sync"
	"unicode"
)

// DefaultCacheSize bounds a [FIFOCache] created with a non-positive capacity.
const DefaultCacheSize = 1000

// CacheEntry is the remembered outcome for one source track. A nil Best records a miss.
type CacheEntry struct {
	Best  *Candidate
	Score float64
	Query string
}

// Cache memoizes match outcomes. Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (CacheEntry, bool)
	Put(key string, entry CacheEntry)
	Len() int
}

// FIFOCache is a bounded [Cache] that evicts the oldest inserted key, regardless of reads.
type FIFOCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

// clone copies Best so callers never share a candidate with the cache.
func (e CacheEntry) clone() CacheEntry {
	if e.Best != nil {
		best := *e.Best
		best.Artists = slices.Clone(e.Best.Artists)
		e.Best = &best
	}
	return e
}

type fifoItem struct {
	key   string
	entry CacheEntry
}

// NewFIFOCache creates a cache holding at most capacity entries.
func NewFIFOCache(capacity int) *FIFOCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &FIFOCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *FIFOCache) Get(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return CacheEntry{}, false
	}
	return el.Value.(*fifoItem).entry.clone(), true
}

// Put stores entry. Overwriting a key keeps its original position in the eviction order.
func (c *FIFOCache) Put(key string, entry CacheEntry) {
	entry = entry.clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*fifoItem).entry = entry
		return
	}

	c.entries[key] = c.order.PushBack(&fifoItem{key: key, entry: entry})
	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*fifoItem).key)
	}
}

func (c *FIFOCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity returns the maximum number of entries.
func (c *FIFOCache) Capacity() int {
	return c.capacity
}

// CacheKey builds the cache key for src under dir: the direction name followed by the title and
// artist reduced to lowercase letters and digits. Titles with neither keep their trimmed raw text.
func CacheKey(dir Direction, src SourceTrack) string {
	title := keyText(src.Title)
	if title == "" {
		title = strings.TrimSpace(src.Title)
	}
	key := dir.Name + ":" + title
	if artist := keyText(src.Artist); artist != "" {
		key += "-" + artist
	}
	return key
}

func keyText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
