package pokeapi

import (
	"sync"
	"time"

	"github.com/RonRicardo/whos-that-pokemon/internal/game"
)

const (
	cacheTTL      = 24 * time.Hour
	cacheCapacity = 256
)

type cacheEntry struct {
	entity    game.Entity
	fetchedAt time.Time
}

// entityCache keeps fetched entities for a bounded time. Eviction under
// capacity pressure drops the least recently inserted entry; lookups do not
// refresh an entry's position.
type entityCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[int]cacheEntry
	order    []int // insertion order, oldest first
	now      func() time.Time
}

func newEntityCache(capacity int, ttl time.Duration) *entityCache {
	return &entityCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[int]cacheEntry),
		now:      time.Now,
	}
}

func (c *entityCache) get(id int) (game.Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok {
		return game.Entity{}, false
	}
	if c.now().Sub(entry.fetchedAt) > c.ttl {
		delete(c.entries, id)
		c.dropFromOrder(id)
		return game.Entity{}, false
	}
	return entry.entity, true
}

func (c *entityCache) put(entity game.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[entity.ID]; !exists {
		for len(c.entries) >= c.capacity && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, entity.ID)
	}
	c.entries[entity.ID] = cacheEntry{entity: entity, fetchedAt: c.now()}
}

// dropFromOrder removes id from the insertion queue so a later re-insert is
// tracked at its new age, not the expired one's.
func (c *entityCache) dropFromOrder(id int) {
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
