// Package genre lists the genre seeds offered to runners.
package genre

import (
	"context"
	"sort"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultFallback is offered when the music service cannot be reached and no
// fallback list is configured.
var DefaultFallback = []string{
	"electronic", "edm", "house", "techno", "drum-and-bass",
	"hip-hop", "pop", "rock", "metal", "punk",
	"dance", "work-out", "latin", "reggaeton", "funk",
}

// Source fetches the current genre seeds.
type Source interface {
	AvailableGenres(ctx context.Context) ([]string, error)
}

// Listing is a genre list together with its origin.
type Listing struct {
	Genres   []string
	Fallback bool // true when the list is the static fallback
}

// Catalog caches successful genre listings.
type Catalog struct {
	source   Source
	fallback []string
	ttl      time.Duration
	now      func() time.Time

	group     singleflight.Group
	mu        sync.Mutex
	cached    []string
	fetchedAt time.Time
}

// NewCatalog creates a new Catalog. A ttl of zero disables caching.
func NewCatalog(source Source, fallback []string, ttl time.Duration) *Catalog {
	if len(fallback) == 0 {
		fallback = DefaultFallback
	}
	return &Catalog{
		source:   source,
		fallback: append([]string(nil), fallback...),
		ttl:      ttl,
		now:      time.Now,
	}
}

// List returns the available genres. Failures never propagate: the caller
// receives the fallback list instead and the failure is logged. Concurrent
// callers that miss the cache share one upstream fetch.
func (c *Catalog) List(ctx context.Context) Listing {
	if genres, ok := c.cachedGenres(); ok {
		return Listing{Genres: genres}
	}

	v, _, _ := c.group.Do("genres", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx)), nil
	})
	listing := v.(Listing)
	listing.Genres = clone(listing.Genres)
	return listing
}

// cachedGenres returns a copy of the cached listing while it is fresh.
func (c *Catalog) cachedGenres() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.ttl > 0 && c.now().Sub(c.fetchedAt) < c.ttl {
		return clone(c.cached), true
	}
	return nil, false
}

// refresh fetches from the source without holding mu.
func (c *Catalog) refresh(ctx context.Context) Listing {
	if genres, ok := c.cachedGenres(); ok {
		return Listing{Genres: genres}
	}

	if c.source != nil {
		genres, err := c.source.AvailableGenres(ctx)
		if err == nil && len(genres) > 0 {
			sorted := clone(genres)
			sort.Strings(sorted)

			c.mu.Lock()
			c.cached = sorted
			c.fetchedAt = c.now()
			c.mu.Unlock()

			zlog.Debug().Msgf("genre catalog refreshed: count=%d", len(sorted))
			return Listing{Genres: sorted}
		}
		if err != nil {
			zlog.Warn().Msgf("genre listing failed, using fallback: error=%v", err)
		} else {
			zlog.Warn().Msg("genre listing empty, using fallback")
		}
	}

	return Listing{Genres: c.fallback, Fallback: true}
}

// Invalidate drops the cached listing.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.fetchedAt = time.Time{}
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
