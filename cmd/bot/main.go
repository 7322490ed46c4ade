package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinbot/internal/app"
	"coinbot/internal/infra"
	"coinbot/internal/infra/stream"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootStart := time.Now()
	infra.GlobalStats.MarkStarted()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config
	board := bootstrap.Board

	// 4. Quote refresh collaborators
	board.StartTickProcessor(ctx)

	poller := infra.NewMarketClient(
		board.ApplySnapshot,
		cfg.Market.APIURL,
		cfg.Market.APIKey,
		cfg.Market.Symbols,
		cfg.Market.PollIntervalSec,
	)
	if err := poller.Start(ctx); err != nil {
		slog.Error("Failed to start market poller", slog.Any("error", err))
	}
	defer poller.Stop()
	slog.InfoContext(ctx, "✅ Market poller started", slog.Int("symbols", len(cfg.Market.Symbols)))

	if cfg.Market.Stream.WSURL != "" {
		worker := stream.NewWorker(cfg.Market.Stream.WSURL, cfg.Market.Symbols, board.TickChan())
		if err := worker.Connect(ctx); err != nil {
			slog.Error("Failed to connect ticker stream", slog.Any("error", err))
		}
		defer worker.Disconnect()
		slog.InfoContext(ctx, "✅ Ticker stream started")
	}

	// 5. Background icon sync
	go bootstrap.SyncIcons(ctx)

	// 6. Boot bookkeeping
	if err := bootstrap.Bot.RecordBoot(time.Since(bootStart)); err != nil {
		slog.Warn("Failed to record boot time", slog.Any("error", err))
	}
	slog.InfoContext(ctx, "✨ coinbot fully operational. Type commands below, Ctrl+C to exit.")

	// 7. Console command session
	go runConsole(ctx, bootstrap)

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}

// runConsole feeds stdin lines to the dispatcher as the configured console user.
func runConsole(ctx context.Context, bootstrap *app.Bootstrap) {
	userID := bootstrap.Config.Bot.ConsoleUser
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if reply := bootstrap.Bot.HandleCommand(userID, scanner.Text()); reply != "" {
			fmt.Println(reply)
		}
	}
}
