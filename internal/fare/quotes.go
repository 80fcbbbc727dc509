package fare

import (
	"sync"
	"time"

	"github.com/example/ride-hail/internal/models"
)

// QuoteCache keeps recent quotes keyed by pickup/destination so ride
// creation can snapshot the exact fare the rider was shown. Entries expire
// after the TTL; an expired quote means the rider must ask for a new fare.
type QuoteCache struct {
	mu    sync.RWMutex
	store map[string]quoteEntry
	ttl   time.Duration
}

type quoteEntry struct {
	q  *models.Quote
	ts time.Time
}

func NewQuoteCache(ttl time.Duration) *QuoteCache {
	return &QuoteCache{store: make(map[string]quoteEntry), ttl: ttl}
}

func quoteKey(pickup, destination string) string {
	return pickup + "|" + destination
}

func (c *QuoteCache) Put(q *models.Quote) {
	c.mu.Lock()
	c.store[quoteKey(q.Pickup, q.Destination)] = quoteEntry{q: q, ts: time.Now()}
	c.mu.Unlock()
}

func (c *QuoteCache) Get(pickup, destination string) (*models.Quote, bool) {
	k := quoteKey(pickup, destination)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return nil, false
	}
	return e.q, true
}
