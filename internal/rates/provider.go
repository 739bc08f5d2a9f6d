package rates

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ledgerly/networth-engine/internal/currency"
	"github.com/ledgerly/networth-engine/internal/metrics"
	"github.com/ledgerly/networth-engine/internal/model"
)

// Store is the slice of store.Store the provider needs.
type Store interface {
	SaveRates(ctx context.Context, rates []model.ExchangeRate) error
	ListRates(ctx context.Context, base string) ([]model.ExchangeRate, error)
}

type cached struct {
	table *currency.RateTable
	at    time.Time
}

// Provider hands out rate tables. A live fetch is tried at most once per
// refresh window per base; on failure the stored history is used, and with no
// history the table holds only the base. Table never fails, so valuation is
// never blocked by rates.
type Provider struct {
	fetcher Fetcher
	store   Store
	refresh time.Duration
	timeout time.Duration
	now     func() time.Time

	// mu guards tables and gen only; loads run outside it.
	mu     sync.Mutex
	tables map[string]cached
	gen    uint64 // bumped by Invalidate
	loads  singleflight.Group
}

// NewProvider creates a provider. fetcher may be nil to serve stored rates only.
func NewProvider(fetcher Fetcher, store Store, refresh, timeout time.Duration) *Provider {
	return &Provider{
		fetcher: fetcher,
		store:   store,
		refresh: refresh,
		timeout: timeout,
		now:     time.Now,
		tables:  make(map[string]cached),
	}
}

// Table returns the current rate table for base. Concurrent callers that miss
// the cache share a single load.
func (p *Provider) Table(ctx context.Context, base string) *currency.RateTable {
	p.mu.Lock()
	c, ok := p.tables[base]
	gen := p.gen
	p.mu.Unlock()
	if ok && p.now().Sub(c.at) < p.refresh {
		return c.table
	}

	// Keyed by generation so a load started before Invalidate is never joined
	// after it.
	v, _, _ := p.loads.Do(fmt.Sprintf("%s@%d", base, gen), func() (any, error) {
		t := p.load(context.WithoutCancel(ctx), base)
		p.mu.Lock()
		if p.gen == gen {
			p.tables[base] = cached{table: t, at: p.now()}
		}
		p.mu.Unlock()
		return t, nil
	})
	return v.(*currency.RateTable)
}

// Refresh drops the cached table for base and loads a new one.
func (p *Provider) Refresh(ctx context.Context, base string) *currency.RateTable {
	p.Invalidate()
	return p.Table(ctx, base)
}

// Invalidate drops every cached table.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables = make(map[string]cached)
	p.gen++
}

// Record stores manually entered quotes and invalidates the cache so the next
// Table call sees them.
func (p *Provider) Record(ctx context.Context, rates []model.ExchangeRate) error {
	if err := p.store.SaveRates(ctx, rates); err != nil {
		return err
	}
	p.Invalidate()
	return nil
}

// Run refreshes base every refresh interval until ctx is cancelled.
func (p *Provider) Run(ctx context.Context, base string) {
	ticker := time.NewTicker(p.refresh)
	defer ticker.Stop()

	p.Refresh(ctx, base)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx, base)
		}
	}
}

// load builds a table from stored history overlaid with a fresh fetch.
func (p *Provider) load(ctx context.Context, base string) *currency.RateTable {
	history, err := p.store.ListRates(ctx, base)
	if err != nil {
		slog.Warn("stored rates unavailable", "base", base, "err", err)
	}
	table := currency.NewRateTable(base, history...)

	if p.fetcher == nil {
		p.fallback(base, "no_fetcher", table)
		return table
	}

	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	fresh, err := p.fetcher.Fetch(fctx, base)
	if err != nil {
		metrics.RateFetches.WithLabelValues("error").Inc()
		slog.Warn("live rate fetch failed, using stored rates", "base", base, "stored", table.Len(), "err", err)
		p.fallback(base, "fetch_error", table)
		return table
	}
	metrics.RateFetches.WithLabelValues("ok").Inc()

	if err := p.store.SaveRates(ctx, fresh); err != nil {
		slog.Warn("persist fetched rates failed", "base", base, "err", err)
	}
	for _, r := range fresh {
		table.Add(r)
	}
	slog.Info("exchange rates refreshed", "base", base, "pairs", len(fresh))
	return table
}

func (p *Provider) fallback(base, reason string, table *currency.RateTable) {
	if table.Len() == 0 {
		reason = "empty_store"
		slog.Warn("no exchange rates available, only same-currency conversions are exact", "base", base)
	}
	metrics.RateFallbacks.WithLabelValues(reason).Inc()
}
