package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"coinbot/internal/domain"
)

// QuotePersister is the write-through sink for full snapshot refreshes.
type QuotePersister interface {
	UpsertQuote(q *domain.Quote) error
}

// QuoteBoard manages the in-memory quote cache. Snapshots from the REST
// poller replace entries and are written through to storage; ticks from the
// live stream patch price and day stats in memory only, the next snapshot
// makes them durable.
type QuoteBoard struct {
	mu     sync.RWMutex
	quotes map[string]*domain.Quote
	store  QuotePersister
	tickCh chan []domain.Tick
}

// NewQuoteBoard creates a new QuoteBoard instance. store may be nil in tests.
func NewQuoteBoard(store QuotePersister) *QuoteBoard {
	return &QuoteBoard{
		quotes: make(map[string]*domain.Quote),
		store:  store,
		tickCh: make(chan []domain.Tick, 1000), // enough buffer for stream bursts
	}
}

// Warm seeds the cache from previously persisted snapshots.
func (b *QuoteBoard) Warm(quotes []*domain.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, q := range quotes {
		b.quotes[strings.ToUpper(q.Symbol)] = q
	}
}

// Quote returns the cached quote for a symbol, or nil. Lookup is
// case-insensitive.
func (b *QuoteBoard) Quote(symbol string) *domain.Quote {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.quotes[strings.ToUpper(symbol)]
}

// All returns every cached quote sorted by symbol.
func (b *QuoteBoard) All() []*domain.Quote {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]*domain.Quote, 0, len(b.quotes))
	for _, q := range b.quotes {
		result = append(result, q)
	}

	// Sort by symbol for consistent ordering
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result
}

// Pages splits the sorted quote listing into fixed-size pages.
func (b *QuoteBoard) Pages(perPage int) [][]*domain.Quote {
	if perPage <= 0 {
		perPage = 99
	}

	all := b.All()
	if len(all) == 0 {
		return nil
	}

	pages := make([][]*domain.Quote, 0, (len(all)+perPage-1)/perPage)
	for start := 0; start < len(all); start += perPage {
		end := start + perPage
		if end > len(all) {
			end = len(all)
		}
		pages = append(pages, all[start:end])
	}
	return pages
}

// ApplySnapshot replaces cached quotes with freshly fetched ones and writes
// them through to storage.
func (b *QuoteBoard) ApplySnapshot(quotes []*domain.Quote) {
	b.mu.Lock()
	for _, q := range quotes {
		q.Symbol = strings.ToUpper(q.Symbol)
		b.quotes[q.Symbol] = q
	}
	b.mu.Unlock()

	if b.store == nil {
		return
	}
	for _, q := range quotes {
		if err := b.store.UpsertQuote(q); err != nil {
			slog.Error("Failed to persist quote", slog.String("symbol", q.Symbol), slog.Any("error", err))
		}
	}
}

// ApplyTicks patches cached quotes with live stream updates. Ticks for
// symbols the poller has not snapshotted yet create a shell entry so price
// lookups work immediately.
func (b *QuoteBoard) ApplyTicks(ticks []domain.Tick) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, tick := range ticks {
		symbol := strings.ToUpper(tick.Symbol)
		q, exists := b.quotes[symbol]
		if !exists {
			q = &domain.Quote{Symbol: symbol, Name: symbol}
			b.quotes[symbol] = q
		}
		q.Price = tick.Price
		q.Change24h = tick.Change24h
		q.Volume24h = tick.Volume24h
	}
}

// TickChan returns the channel for incoming stream ticks
func (b *QuoteBoard) TickChan() chan []domain.Tick {
	return b.tickCh
}

// StartTickProcessor starts a background goroutine to apply ticks from the channel
func (b *QuoteBoard) StartTickProcessor(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ticks := <-b.tickCh:
				b.ApplyTicks(ticks)
			}
		}
	}()
}
