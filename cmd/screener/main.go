package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/screener"
	"github.com/raykavin/screener/internal/config"
	"github.com/raykavin/screener/pkg/access"
	"github.com/raykavin/screener/pkg/coinglass"
	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/exchange"
	"github.com/raykavin/screener/pkg/exchange/binance"
	"github.com/raykavin/screener/pkg/exchange/bybit"
	"github.com/raykavin/screener/pkg/menu"
	"github.com/raykavin/screener/pkg/metrics"
	"github.com/raykavin/screener/pkg/notification"
	"github.com/raykavin/screener/pkg/storage"
	"github.com/spf13/cobra"
)

// Command line flags
var (
	months    int
	count     int
	market    string
	timeframe string
	limit     int
	outputDir string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "screener",
		Short:   "Pump and dump alerts for futures markets",
		Version: "1.0.0",
	}

	rootCmd.AddCommand(buildRunCmd(), buildKeysCmd(), buildRecordCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the Telegram bot and the evaluation loop",
		RunE:  runScreener,
	}
}

func buildKeysCmd() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage access keys",
	}

	addCmd := &cobra.Command{
		Use:   "add <key> <months>",
		Short: "Add an access key valid for a number of months",
		Args:  cobra.ExactArgs(2),
		RunE:  runKeysAdd,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every access key",
		RunE:  runKeysList,
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate random access keys",
		RunE:  runKeysGenerate,
	}
	generateCmd.Flags().IntVarP(&months, "months", "m", 1, "Validity in months once activated")
	generateCmd.Flags().IntVarP(&count, "count", "c", 1, "Number of keys to generate")

	keysCmd.AddCommand(addCmd, listCmd, generateCmd)
	return keysCmd
}

func buildRecordCmd() *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record [symbols...]",
		Short: "Record recent candles to CSV files for replay",
		Long: "Record recent candles of the given symbols, or of the top symbols by volume, " +
			"into <dir>/<exchange>/<SYMBOL>.csv. Set SCREENER_REPLAY_DIR=<dir> to run on them.",
		RunE: runRecord,
	}

	recordCmd.Flags().StringVarP(&market, "exchange", "e", "binance", "Exchange (binance or bybit)")
	recordCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1m", "Timeframe (e.g. 1m)")
	recordCmd.Flags().IntVarP(&limit, "limit", "l", 500, "Number of candles per symbol")
	recordCmd.Flags().StringVarP(&outputDir, "dir", "d", "./replay", "Output directory")

	return recordCmd
}

func runRecord(cmd *cobra.Command, symbols []string) error {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}

	// always record from the live exchange
	cfg.ReplayDir = ""
	cfg.Exchanges.Enabled = []string{strings.ToLower(market)}
	if err := cfg.Validate(); err != nil {
		return err
	}

	feeds, err := buildFeeds(cfg)
	if err != nil {
		return err
	}
	feed := feeds[0]

	if len(symbols) == 0 {
		symbols, err = feed.TopSymbols(cmd.Context(), cfg.Universe.QuoteAsset, cfg.Universe.TopN)
		if err != nil {
			return fmt.Errorf("failed to rank symbols: %w", err)
		}
	}

	dir := filepath.Join(outputDir, strings.ToLower(market))
	_, err = exchange.Record(cmd.Context(), feed, dir, timeframe, limit, symbols, os.Stderr, screener.DefaultLog)
	return err
}

func openStore(cfg *config.AppConfig) (core.Store, error) {
	if cfg.Storage.Driver == config.DriverSQLite {
		return storage.FromSQLite(cfg.Storage.Path)
	}
	return storage.FromFile(cfg.Storage.Path)
}

// withAccess runs fn with the access service over the configured store
func withAccess(fn func(cfg *config.AppConfig, service *access.Service) error) error {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	service := access.NewService(store, screener.DefaultLog, access.WithAdminKey(cfg.AdminAccessKey))
	return fn(cfg, service)
}

func runKeysAdd(cmd *cobra.Command, args []string) error {
	months, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid months %q: %w", args[1], err)
	}

	return withAccess(func(_ *config.AppConfig, service *access.Service) error {
		entitlement, err := service.AddKey(cmd.Context(), args[0], months)
		if err != nil {
			return err
		}
		printKeys(entitlement)
		return nil
	})
}

func runKeysGenerate(cmd *cobra.Command, _ []string) error {
	return withAccess(func(_ *config.AppConfig, service *access.Service) error {
		keys, err := service.GenerateKeys(cmd.Context(), months, count)
		printKeys(keys...)
		return err
	})
}

func runKeysList(cmd *cobra.Command, _ []string) error {
	return withAccess(func(_ *config.AppConfig, service *access.Service) error {
		keys, err := service.Keys(cmd.Context())
		if err != nil {
			return err
		}
		printKeys(keys...)
		return nil
	})
}

func printKeys(keys ...*core.Entitlement) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Months", "Identity", "Username", "Activated", "Expires", "Active"})

	date := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format(time.DateOnly)
	}

	for _, key := range keys {
		identity := "-"
		if key.Identity != 0 {
			identity = strconv.FormatInt(int64(key.Identity), 10)
		}

		table.Append([]string{
			key.Key,
			strconv.Itoa(key.DurationMonths),
			identity,
			key.Username,
			date(key.ActivatedAt),
			date(key.ExpiresAt),
			strconv.FormatBool(key.Active),
		})
	}

	table.Render()
}

func runScreener(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := screener.DefaultLog

	cfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}

	if cfg.Telegram.Token == "" {
		return errors.New("SCREENER_TELEGRAM_TOKEN is required")
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	feeds, err := buildFeeds(cfg)
	if err != nil {
		return err
	}

	service := access.NewService(store, log, access.WithAdminKey(cfg.AdminAccessKey))
	machine := menu.NewMachine(menu.DefaultTree(), store, service, log)

	telegramOptions := []notification.Option{}
	if cfg.ProxyURL != "" {
		client, err := proxyClient(cfg.ProxyURL)
		if err != nil {
			return err
		}
		telegramOptions = append(telegramOptions, notification.WithHTTPClient(client))
	}

	telegram, err := notification.NewTelegram(cfg.Telegram.Token, machine, log, telegramOptions...)
	if err != nil {
		return err
	}

	recorder := metrics.New()
	options := []screener.Option{
		screener.WithListener(telegram),
		screener.WithMetrics(recorder),
		screener.WithEvalInterval(cfg.EvalInterval),
		screener.WithUniverse(cfg.Universe.Symbols...),
		screener.WithUniverseRefresh(cfg.Universe.TopN, cfg.Universe.Interval),
		screener.WithQuoteAsset(cfg.Universe.QuoteAsset),
		screener.WithCacheTTL(cfg.CacheTTL),
		screener.WithExchangeLimits(cfg.Exchanges.MaxConcurrency, cfg.Exchanges.RequestTimeout),
	}

	if cfg.CoinGlassAPIKey != "" {
		client, err := coinglass.NewClient(cfg.CoinGlassAPIKey,
			coinglass.WithProxy(cfg.ProxyURL),
			coinglass.WithTimeout(cfg.Exchanges.RequestTimeout),
		)
		if err != nil {
			return err
		}
		options = append(options, screener.WithMetered(client))
	} else {
		log.Warn("no CoinGlass key configured, indicators come from the exchanges only")
	}

	bot, err := screener.NewScreener(store, service, feeds, telegram, options...)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, recorder)
	}

	return bot.Run(ctx)
}

var exchangeNames = map[string]core.ExchangeName{
	"binance": core.ExchangeBinance,
	"bybit":   core.ExchangeBybit,
}

// buildFeeds creates the exchange adapters in the configured order
func buildFeeds(cfg *config.AppConfig) ([]core.MarketFeed, error) {
	feeds := make([]core.MarketFeed, 0, len(cfg.Exchanges.Enabled))

	for _, name := range cfg.Exchanges.Enabled {
		if cfg.ReplayDir != "" {
			feed, err := exchange.NewCSVFeed(exchangeNames[name], filepath.Join(cfg.ReplayDir, name))
			if err != nil {
				return nil, fmt.Errorf("failed to load %s replay: %w", name, err)
			}
			feeds = append(feeds, feed)
			continue
		}

		switch name {
		case "binance":
			feed, err := binance.NewFutures(
				binance.WithProxy(cfg.ProxyURL),
				binance.WithTimeout(cfg.Exchanges.RequestTimeout),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create binance client: %w", err)
			}
			feeds = append(feeds, feed)

		case "bybit":
			feed, err := bybit.NewClient(
				bybit.WithProxy(cfg.ProxyURL),
				bybit.WithTimeout(cfg.Exchanges.RequestTimeout),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create bybit client: %w", err)
			}
			feeds = append(feeds, feed)
		}
	}

	return feeds, nil
}

func proxyClient(proxyURL string) (*http.Client, error) {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}

	return &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(parsed)},
		Timeout:   time.Minute,
	}, nil
}

func serveMetrics(ctx context.Context, addr string, recorder *metrics.Recorder) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdown)
	}()

	screener.DefaultLog.Infof("metrics available on %s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		screener.DefaultLog.WithError(err).Error("metrics server stopped")
	}
}
