// papertrade - an A-share paper trading server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hzfeng/papertrade/internal/archive"
	"github.com/hzfeng/papertrade/internal/config"
	"github.com/hzfeng/papertrade/internal/engine"
	"github.com/hzfeng/papertrade/internal/handler"
	"github.com/hzfeng/papertrade/internal/ledger"
	"github.com/hzfeng/papertrade/internal/market"
	"github.com/hzfeng/papertrade/internal/notify"
	"github.com/hzfeng/papertrade/internal/rules"
	"github.com/hzfeng/papertrade/internal/service"
	"github.com/hzfeng/papertrade/internal/store"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "papertrade",
		Short: "A-share paper trading server",
		Long: `papertrade simulates A-share trading against market quotes: virtual
accounts, market and limit orders, T+1 settlement and a group
leaderboard, served over a JSON HTTP API.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to a YAML config file (environment variables take precedence)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(settleCmd())
	rootCmd.AddCommand(healthcheckCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the trading server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	cal, err := market.NewCalendar(cfg.ExchangeTZ, cfg.Holidays)
	if err != nil {
		return err
	}

	feed := newFeed(cfg)
	quotes := market.NewQuoteCache(feed, cfg.QuoteTTL, cfg.FeedTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	arch, closeArchive, err := newArchive(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeArchive()

	// Stores.
	ldg := ledger.NewLedger()
	orderStore := store.NewOrderStore()
	tradeStore := store.NewTradeStore()
	webhookStore := store.NewWebhookStore()

	// Engine.
	books := engine.NewBookManager()
	ruleEngine := rules.NewEngine(cal, cfg.LotSize, cfg.FeeRateBps, cfg.MinFee, cfg.MinOrderValue)
	notifySvc := notify.NewService(webhookStore, ldg, cfg.WebhookTimeout)
	matcher := engine.NewMatcher(books, ldg, orderStore, tradeStore, ruleEngine, quotes, arch, notifySvc, logger)

	// Rehydrate archived state before accepting traffic.
	if err := restoreState(ctx, arch, ldg, orderStore, tradeStore, matcher, logger); err != nil {
		return fmt.Errorf("restore archived state: %w", err)
	}

	// Background loops: the price monitor re-checks resting orders, the
	// settler runs the daily T+1 unlock.
	monitor := engine.NewMonitor(cfg.MonitorInterval, books, matcher, quotes, cal, logger)
	settler := engine.NewSettler(cfg.SettleAt, ldg, quotes, cal, arch, logger)
	monitor.Start(ctx)
	settler.Start(ctx)

	// Services.
	accountSvc := service.NewAccountService(ldg, orderStore, tradeStore, quotes, arch, cfg.InitialCash, logger)
	orderSvc := service.NewOrderService(matcher, orderStore, ldg)
	marketSvc := service.NewMarketService(quotes, cal)
	boardSvc := service.NewLeaderboardService(ldg, quotes, logger)

	router := handler.NewRouter(accountSvc, orderSvc, marketSvc, boardSvc, notifySvc, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("feed", cfg.Feed),
			slog.Bool("archive", cfg.DatabaseURL != ""))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for SIGINT/SIGTERM or a server failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	// Graceful shutdown: stop the HTTP server, then cancel the context
	// so the monitor and settler goroutines exit.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
	return nil
}

func settleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settle",
		Short: "Run the daily settlement pass once and exit",
		Long: `settle promotes T+1 locked shares to available and re-marks positions
for every archived account, then exits. Useful as a cron fallback when
the server is not running at the settlement boundary.`,
		RunE: runSettle,
	}
}

func runSettle(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("settle requires DATABASE_URL: without an archive there is no state to settle")
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	cal, err := market.NewCalendar(cfg.ExchangeTZ, cfg.Holidays)
	if err != nil {
		return err
	}

	feed := newFeed(cfg)
	quotes := market.NewQuoteCache(feed, cfg.QuoteTTL, cfg.FeedTimeout)

	ctx := context.Background()
	arch, closeArchive, err := newArchive(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeArchive()

	ldg := ledger.NewLedger()
	states, err := arch.LoadAccounts(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	ldg.Restore(states)

	settler := engine.NewSettler(cfg.SettleAt, ldg, quotes, cal, arch, logger)
	settled := settler.RunOnce(ctx, time.Now().In(cal.Location()))
	logger.Info("settlement finished", slog.Int("accounts", settled))
	return nil
}

func healthcheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running server's health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("health check returned %d", resp.StatusCode)
			}
			return nil
		},
	}
}

// restoreState loads archived accounts, orders and trades into the
// in-memory stores and puts still-pending orders back on the books.
func restoreState(
	ctx context.Context,
	arch archive.Archive,
	ldg *ledger.Ledger,
	orders *store.OrderStore,
	trades *store.TradeStore,
	matcher *engine.Matcher,
	logger *slog.Logger,
) error {
	states, err := arch.LoadAccounts(ctx)
	if err != nil {
		return err
	}
	ldg.Restore(states)

	archivedOrders, err := arch.LoadOrders(ctx)
	if err != nil {
		return err
	}
	orders.Restore(archivedOrders)

	archivedTrades, err := arch.LoadTrades(ctx)
	if err != nil {
		return err
	}
	trades.Restore(archivedTrades)

	matcher.RestorePending(orders.Pending())

	if len(states) > 0 || len(archivedOrders) > 0 || len(archivedTrades) > 0 {
		logger.Info("state restored from archive",
			slog.Int("accounts", len(states)),
			slog.Int("orders", len(archivedOrders)),
			slog.Int("trades", len(archivedTrades)))
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func newFeed(cfg *config.Config) market.Feed {
	if cfg.Feed == "sim" {
		return market.NewSimFeed(time.Now().UnixNano(), nil)
	}
	return market.NewSinaFeed(cfg.FeedTimeout)
}

// newArchive opens the configured archive. An empty DATABASE_URL keeps
// everything in memory; state then lives only as long as the process.
func newArchive(ctx context.Context, cfg *config.Config) (archive.Archive, func(), error) {
	if cfg.DatabaseURL == "" {
		return archive.NewMemory(), func() {}, nil
	}
	pg, err := archive.OpenPostgres(ctx, cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	return pg, pg.Close, nil
}
