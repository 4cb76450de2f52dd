// Package pokeapi implements game.Source against the public PokéAPI.
package pokeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/RonRicardo/whos-that-pokemon/internal/game"
)

const (
	// DefaultBaseURL is the public PokéAPI endpoint.
	DefaultBaseURL = "https://pokeapi.co/api/v2"

	// Dex ranges per category: the restricted mode sticks to the original
	// 151, full mode spans the whole National Dex.
	maxDexRestricted = 151
	maxDexFull       = 1025

	// pickAttempts bounds how often a random id draw may collide with the
	// exclusion set before the call gives up.
	pickAttempts = 50
)

// Client fetches Pokémon from PokéAPI and caches them locally so repeated
// games don't hammer the API for the same sprites.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *entityCache

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (tests use this).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a PokéAPI-backed entity source.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultBaseURL,
		cache:      newEntityCache(cacheCapacity, cacheTTL),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchOne returns one random entity outside the excluded id set.
func (c *Client) FetchOne(ctx context.Context, category game.CategoryMode, exclude map[int]struct{}) (game.Entity, error) {
	id, err := c.pickID(category, exclude, nil)
	if err != nil {
		return game.Entity{}, err
	}
	return c.fetchEntity(ctx, id)
}

// FetchWithChoices returns a correct entity plus a shuffled option set of
// count entities, answer included. The individual fetches for one round run
// in parallel; the exclusion set is fixed before any of them starts.
func (c *Client) FetchWithChoices(ctx context.Context, category game.CategoryMode, count int, exclude map[int]struct{}) (game.Entity, []game.Entity, error) {
	if count < 1 {
		return game.Entity{}, nil, fmt.Errorf("choice count %d, want at least 1", count)
	}

	taken := make(map[int]struct{}, count)
	ids := make([]int, 0, count)
	for len(ids) < count {
		id, err := c.pickID(category, exclude, taken)
		if err != nil {
			return game.Entity{}, nil, err
		}
		taken[id] = struct{}{}
		ids = append(ids, id)
	}

	entities := make([]game.Entity, len(ids))
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			entities[i], errs[i] = c.fetchEntity(ctx, id)
		}(i, id)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return game.Entity{}, nil, err
		}
	}

	answer := entities[0]
	choices := append([]game.Entity(nil), entities...)
	c.mu.Lock()
	c.rng.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})
	c.mu.Unlock()
	return answer, choices, nil
}

// pickID draws a random dex id for the category that collides with neither
// exclusion set.
func (c *Client) pickID(category game.CategoryMode, exclude, taken map[int]struct{}) (int, error) {
	limit := maxDexFull
	if category == game.CategoryRestricted {
		limit = maxDexRestricted
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < pickAttempts; i++ {
		id := c.rng.Intn(limit) + 1
		if _, ok := exclude[id]; ok {
			continue
		}
		if _, ok := taken[id]; ok {
			continue
		}
		return id, nil
	}
	return 0, fmt.Errorf("%w: no unused id found in %d draws", game.ErrSourceUnavailable, pickAttempts)
}

// pokemonResponse is the slice of the PokéAPI payload this client needs.
type pokemonResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Sprites struct {
		FrontDefault string `json:"front_default"`
		BackDefault  string `json:"back_default"`
	} `json:"sprites"`
}

func (c *Client) fetchEntity(ctx context.Context, id int) (game.Entity, error) {
	if entity, ok := c.cache.get(id); ok {
		return entity, nil
	}

	url := fmt.Sprintf("%s/pokemon/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return game.Entity{}, fmt.Errorf("%w: %v", game.ErrSourceUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return game.Entity{}, fmt.Errorf("%w: %v", game.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return game.Entity{}, fmt.Errorf("%w: pokemon %d returned status %d", game.ErrSourceUnavailable, id, resp.StatusCode)
	}

	var payload pokemonResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return game.Entity{}, fmt.Errorf("%w: decode pokemon %d: %v", game.ErrSourceUnavailable, id, err)
	}

	entity := game.Entity{
		ID:          payload.ID,
		Name:        displayName(payload.Name),
		FrontSprite: payload.Sprites.FrontDefault,
		BackSprite:  payload.Sprites.BackDefault,
	}
	c.cache.put(entity)
	return entity, nil
}

// displayName title-cases the API's lowercase species name.
func displayName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
