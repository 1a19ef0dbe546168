package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/domain/post"
)

const (
	searchKeyPrefix  = "inkwell:search:"
	defaultSearchTTL = 30 * time.Second
	purgeBatchSize   = 500

	// SearchCachePattern matches every cached search result.
	SearchCachePattern = searchKeyPrefix + "*"

	// searchGenerationKey sits outside SearchCachePattern so pattern purges
	// never reset it.
	searchGenerationKey = "inkwell:search-generation"
)

type searchCacheClient interface {
	bytesCacheClient
	GetInt64(ctx context.Context, key string) (int64, error)
	Increment(ctx context.Context, key string) (int64, error)
	DeleteByPattern(ctx context.Context, pattern string, batchSize int64) (int64, error)
}

// SearchCache caches anonymous post search results. Queries bound to a user
// are never stored.
type SearchCache struct {
	store  *jsonStore[[]*post.Post]
	client searchCacheClient
}

// NewSearchCache creates a search cache; ttl<=0 uses 30s.
func NewSearchCache(client searchCacheClient, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = defaultSearchTTL
	}
	return &SearchCache{
		store:  newJSONStore[[]*post.Post](client, ttl),
		client: client,
	}
}

// Generation returns the current purge generation. Results are read and
// written under the generation observed before the store was queried, so a
// result computed across a Purge lands under a key nobody reads again.
func (c *SearchCache) Generation(ctx context.Context) (int64, error) {
	return c.client.GetInt64(ctx, searchGenerationKey)
}

// BuildKey returns a deterministic key for a normalized query in generation.
// Case is folded because matching is case-insensitive.
func (c *SearchCache) BuildKey(generation int64, q post.SearchQuery) string {
	parts := []string{
		strconv.FormatInt(generation, 10),
		strings.ToLower(strings.TrimSpace(q.Title)),
		strings.ToLower(strings.TrimSpace(q.Category)),
		strconv.Itoa(q.Limit),
		strconv.Itoa(q.Offset),
	}
	return searchKeyPrefix + sha256Hex(strings.Join(parts, "|"))
}

// Get returns the cached result for q. ok is false on a miss.
func (c *SearchCache) Get(ctx context.Context, generation int64, q post.SearchQuery) ([]*post.Post, bool, error) {
	if q.Personal() {
		return nil, false, nil
	}
	out, ok, err := c.store.load(ctx, c.BuildKey(generation, q))
	if err != nil || !ok {
		return nil, false, err
	}
	if out == nil {
		out = []*post.Post{}
	}
	return out, true, nil
}

// Set stores the result for q.
func (c *SearchCache) Set(ctx context.Context, generation int64, q post.SearchQuery, posts []*post.Post) error {
	if q.Personal() {
		return nil
	}
	return c.store.store(ctx, c.BuildKey(generation, q), posts)
}

// Purge starts a new generation and drops every cached search result.
func (c *SearchCache) Purge(ctx context.Context) (int64, error) {
	_, incErr := c.client.Increment(ctx, searchGenerationKey)
	n, delErr := c.client.DeleteByPattern(ctx, SearchCachePattern, purgeBatchSize)
	return n, errors.Join(incErr, delErr)
}
