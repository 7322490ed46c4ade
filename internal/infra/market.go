package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"coinbot/internal/domain"

	"github.com/shopspring/decimal"
)

// marketListing represents one instrument in the market data API response
type marketListing struct {
	ID                int64   `json:"id"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	PercentChange24h  float64 `json:"percent_change_24h"`
	Volume24h         float64 `json:"volume_24h"`
	MarketCap         float64 `json:"market_cap"`
	CirculatingSupply float64 `json:"circulating_supply"`
	MaxSupply         float64 `json:"max_supply"`
}

// marketListingResponse represents the market data API envelope
type marketListingResponse struct {
	Data []marketListing `json:"data"`
}

// MarketClient polls the market data API for full quote snapshots and hands
// them to the quote board. It is the durable half of the refresh pair; the
// websocket stream fills the gaps between polls.
type MarketClient struct {
	onSnapshot   func([]*domain.Quote)
	symbols      map[string]bool // uppercase filter; empty means take everything
	pollInterval time.Duration
	apiURL       string
	apiKey       string
	httpClient   *http.Client
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewMarketClient creates a new market data poller
func NewMarketClient(onSnapshot func([]*domain.Quote), apiURL, apiKey string, symbols []string, pollIntervalSec int) *MarketClient {
	filter := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		filter[strings.ToUpper(s)] = true
	}

	interval := 60 * time.Second
	if pollIntervalSec > 0 {
		interval = time.Duration(pollIntervalSec) * time.Second
	}

	return &MarketClient{
		onSnapshot:   onSnapshot,
		symbols:      filter,
		pollInterval: interval,
		apiURL:       apiURL,
		apiKey:       apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Start begins polling for quote snapshots
func (c *MarketClient) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	// Fetch immediately on start
	if err := c.fetchSnapshot(ctx); err != nil {
		slog.Warn("Initial quote snapshot fetch failed", slog.Any("error", err))
		// Continue anyway - will retry on next tick
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Quote polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Quote polling stopped")
				return
			case <-ticker.C:
				if err := c.fetchSnapshot(ctx); err != nil {
					slog.Warn("Quote snapshot fetch failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// fetchSnapshot fetches the current listings with retry and backoff
func (c *MarketClient) fetchSnapshot(ctx context.Context) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			delay := CalculateBackoff(i - 1)
			slog.Info("Retrying quote snapshot fetch", slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.doFetch(ctx)
		if err == nil {
			return nil
		}
		if !domain.IsRetriable(err) {
			return err
		}
		lastErr = err
		slog.Warn("Quote snapshot fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return lastErr
}

func (c *MarketClient) doFetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return domain.NewFatalNetworkError("request", err)
	}

	// Browser-like User-Agent to avoid bot detection
	req.Header.Set("User-Agent", DefaultUserAgent)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError("fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.NewNetworkError("fetch", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewNetworkError("read", err)
	}

	var listing marketListingResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return domain.NewFatalNetworkError("decode", err)
	}

	if len(listing.Data) == 0 {
		return domain.NewNetworkError("fetch", fmt.Errorf("empty listing response"))
	}

	quotes := c.toQuotes(listing.Data)
	if len(quotes) == 0 {
		return nil
	}

	GlobalStats.RecordSnapshot()
	slog.Debug("Quote snapshot fetched", slog.Int("quotes", len(quotes)))
	if c.onSnapshot != nil {
		c.onSnapshot(quotes)
	}
	return nil
}

func (c *MarketClient) toQuotes(listings []marketListing) []*domain.Quote {
	now := time.Now()
	quotes := make([]*domain.Quote, 0, len(listings))
	for _, l := range listings {
		symbol := strings.ToUpper(l.Symbol)
		if len(c.symbols) > 0 && !c.symbols[symbol] {
			continue
		}
		quotes = append(quotes, &domain.Quote{
			Symbol:            symbol,
			Name:              l.Name,
			AssetID:           l.ID,
			Price:             decimal.NewFromFloat(l.Price),
			Change24h:         decimal.NewFromFloat(l.PercentChange24h),
			Volume24h:         decimal.NewFromFloat(l.Volume24h),
			MarketCap:         decimal.NewFromFloat(l.MarketCap),
			CirculatingSupply: decimal.NewFromFloat(l.CirculatingSupply),
			MaxSupply:         decimal.NewFromFloat(l.MaxSupply),
			UpdatedAt:         now,
		})
	}
	return quotes
}

// Stop stops the polling
func (c *MarketClient) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}
}
