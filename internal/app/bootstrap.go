package app

import (
	"context"
	"log/slog"
	"sync"

	"coinbot/internal/bot"
	"coinbot/internal/domain"
	"coinbot/internal/infra"
	"coinbot/internal/infra/storage"
	"coinbot/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Icons   *infra.IconCache
	Board   *service.QuoteBoard
	Ledger  *service.Ledger
	Bot     *bot.Bot
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB, services)
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping coinbot...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Initialize Icon Cache
	icons, err := infra.NewIconCache(cfg.Storage.IconsDir)
	if err != nil {
		return err
	}
	b.Icons = icons

	// 5. Quote board, warm-loaded from persisted snapshots
	b.Board = service.NewQuoteBoard(store)
	cached, err := store.AllQuotes()
	if err != nil {
		return err
	}
	b.Board.Warm(cached)
	slog.Info("✅ Quote board ready", slog.Int("cached", len(cached)))

	// 6. Ledger and command dispatcher
	b.Ledger = service.NewLedger(store, b.Board)
	b.Bot = bot.New(cfg, b.Ledger, b.Board, store)
	if err := b.Bot.LoadSettings(); err != nil {
		return err
	}
	slog.Info("✅ Command dispatcher ready", slog.String("prefix", b.Bot.Prefix()))

	return nil
}

// SyncIcons downloads missing coin icons in the background
func (b *Bootstrap) SyncIcons(ctx context.Context) {
	quotes := b.Board.All()
	if len(quotes) == 0 {
		return
	}
	slog.Info("🔄 Starting icon synchronization...", slog.Int("quotes", len(quotes)))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, q := range quotes {
		wg.Add(1)
		go func(q *domain.Quote) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			if _, err := b.Icons.DownloadIcon(q); err != nil {
				slog.Warn("Failed to download icon", slog.String("symbol", q.Symbol), slog.Any("error", err))
			}
		}(q)
	}

	wg.Wait()
	slog.Info("✨ Icon synchronization completed")
}
