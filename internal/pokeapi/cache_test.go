package pokeapi

import (
	"testing"
	"time"

	"github.com/RonRicardo/whos-that-pokemon/internal/game"
)

func cacheEntity(id int) game.Entity {
	return game.Entity{ID: id, Name: "x", FrontSprite: "f", BackSprite: "b"}
}

func TestEntityCache_GetPut(t *testing.T) {
	c := newEntityCache(4, time.Hour)

	if _, ok := c.get(1); ok {
		t.Error("empty cache returned a hit")
	}
	c.put(cacheEntity(1))
	got, ok := c.get(1)
	if !ok {
		t.Fatal("cache missed a fresh entry")
	}
	if got.ID != 1 {
		t.Errorf("got id %d, want 1", got.ID)
	}
}

func TestEntityCache_Expiry(t *testing.T) {
	c := newEntityCache(4, time.Hour)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.put(cacheEntity(1))
	current = current.Add(2 * time.Hour)
	if _, ok := c.get(1); ok {
		t.Error("entry should expire after the TTL")
	}
}

func TestEntityCache_ReinsertAfterExpiryAgesFresh(t *testing.T) {
	c := newEntityCache(2, time.Hour)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.put(cacheEntity(1))
	current = current.Add(30 * time.Minute)
	c.put(cacheEntity(2))

	// Entry 1 expires; entry 2 is still fresh.
	current = current.Add(time.Hour)
	if _, ok := c.get(1); ok {
		t.Fatal("entry 1 should expire after the TTL")
	}

	// Re-fetched after expiry, 1's insertion age restarts: it is now newer
	// than 2, so filling the cache evicts 2, not the re-inserted 1.
	c.put(cacheEntity(1))
	c.put(cacheEntity(3))

	if _, ok := c.get(1); !ok {
		t.Error("re-inserted entry 1 should survive, it is not the oldest")
	}
	if _, ok := c.get(2); ok {
		t.Error("entry 2 should be the oldest insertion and evicted")
	}
	if _, ok := c.get(3); !ok {
		t.Error("entry 3 should be present")
	}
}

func TestEntityCache_EvictsOldestInsertion(t *testing.T) {
	c := newEntityCache(2, time.Hour)
	c.put(cacheEntity(1))
	c.put(cacheEntity(2))

	// Reading does not refresh insertion order.
	c.get(1)

	c.put(cacheEntity(3))
	if _, ok := c.get(1); ok {
		t.Error("oldest insertion should have been evicted")
	}
	if _, ok := c.get(2); !ok {
		t.Error("entry 2 should survive")
	}
	if _, ok := c.get(3); !ok {
		t.Error("entry 3 should be present")
	}
}
