package fx

import (
	"context"
	"log/slog"
	"time"

	"sheetledger/internal/cache"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a snapshot stays fresh.
const DefaultTTL = time.Hour

const snapshotKey = "rates"

// Provider serves cached snapshots from a Source. Concurrent refreshes are
// collapsed into one fetch.
type Provider struct {
	source Source
	cache  *cache.LRUCache[Rates]
	group  singleflight.Group
	now    func() time.Time
}

func NewProvider(source Source, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provider{
		source: source,
		cache:  cache.NewLRUCache[Rates](1, ttl),
		now:    time.Now,
	}
}

// WithClock replaces the time source of the provider and its cache.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	p.cache.WithClock(now)
	return p
}

// Cache exposes the snapshot cache so it can be registered with a manager.
func (p *Provider) Cache() *cache.LRUCache[Rates] { return p.cache }

// Rates returns the current snapshot. A failed fetch yields an empty
// snapshot and is not cached, so the next call tries again.
func (p *Provider) Rates(ctx context.Context) Rates {
	if r, ok := p.cache.Get(snapshotKey); ok {
		return r
	}
	v, _, _ := p.group.Do(snapshotKey, func() (any, error) {
		if r, ok := p.cache.Get(snapshotKey); ok {
			return r, nil
		}
		values, err := p.source.Fetch(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Exchange rates unavailable", "error", err)
			return Rates{}, nil
		}
		r := NewRates(values, p.now())
		p.cache.Set(snapshotKey, r)
		slog.InfoContext(ctx, "Exchange rates refreshed", "currencies", len(r.Values))
		return r, nil
	})
	return v.(Rates)
}

// Invalidate drops the cached snapshot.
func (p *Provider) Invalidate() {
	p.cache.Purge()
}
