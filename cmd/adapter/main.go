package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"futures-adapter/internal/alert"
	"futures-adapter/internal/config"
	"futures-adapter/internal/core"
	"futures-adapter/internal/exchange"
	"futures-adapter/internal/exchange/binance"
	"futures-adapter/internal/retry"
	"futures-adapter/internal/store"
)

type cliArgs struct {
	configPath string
	op         string
	symbol     string
	side       string
	qty        string
	stopPrice  string
	notional   string
	interval   string
	since      string
	leverage   int
	newPair    bool
}

func main() {
	var args cliArgs
	flag.StringVar(&args.configPath, "config", "config/config.yaml", "config yaml path")
	flag.StringVar(&args.op, "op", "brackets", "operation: brackets, stoploss, candles")
	flag.StringVar(&args.symbol, "symbol", "BTCUSDT", "instrument symbol")
	flag.StringVar(&args.side, "side", "SELL", "order side for stoploss")
	flag.StringVar(&args.qty, "qty", "0", "order quantity for stoploss")
	flag.StringVar(&args.stopPrice, "stop", "0", "stop price for stoploss")
	flag.StringVar(&args.notional, "notional", "", "position notional for bracket lookup")
	flag.StringVar(&args.interval, "interval", "1m", "candle interval")
	flag.StringVar(&args.since, "since", "", "candle window start, RFC3339")
	flag.IntVar(&args.leverage, "leverage", 0, "leverage to apply before stoploss")
	flag.BoolVar(&args.newPair, "new-pair", false, "probe listing date before backfill")
	flag.Parse()

	if err := run(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args cliArgs) error {
	cfg, err := config.Load(args.configPath)
	if err != nil {
		return err
	}
	log, err := buildLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	alerts := buildAlertManager(cfg, log)
	if alerts != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := alerts.Close(closeCtx); err != nil {
				fmt.Fprintf(os.Stderr, "close alert manager failed: %v\n", err)
			}
		}()
	}

	var audit *store.AuditLog
	if cfg.Audit.Dir != "" {
		audit, err = store.NewAuditLog(cfg.Audit.Dir)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter, err := buildAdapter(cfg, log, audit, alerts)
	if err != nil {
		return err
	}
	if cfg.TradingMode == config.TradingFutures {
		if err := adapter.RefreshBrackets(ctx); err != nil {
			return fmt.Errorf("leverage bracket bootstrap failed: %w", err)
		}
	}

	switch args.op {
	case "brackets":
		return runBrackets(adapter, args.symbol, args.notional)
	case "stoploss":
		return runStopLoss(ctx, adapter, args)
	case "candles":
		return runCandles(ctx, adapter, args)
	default:
		return fmt.Errorf("unknown op %q", args.op)
	}
}

func buildAdapter(cfg config.Config, log *zap.Logger, audit *store.AuditLog, alerts *alert.Manager) (*exchange.Adapter, error) {
	var venue exchange.VenueClient
	switch cfg.Mode {
	case config.ModeDryRun:
		venue = binance.NewPaperVenue(core.Rules{
			MinQty:      cfg.DryRunRules.MinQty.Decimal,
			MinNotional: cfg.DryRunRules.MinNotional.Decimal,
			PriceTick:   cfg.DryRunRules.PriceTick.Decimal,
			QtyStep:     cfg.DryRunRules.QtyStep.Decimal,
		})
	case config.ModeTestnet, config.ModeLive:
		venue = binance.NewClient(binance.Options{
			APIKey:      cfg.Exchange.APIKey,
			APISecret:   cfg.Exchange.APISecret,
			BaseURL:     cfg.Exchange.RestBaseURL,
			HTTPTimeout: cfg.HTTPTimeout(),
			Logger:      log,
			Audit:       audit,
		})
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	var alerter alert.Alerter
	if alerts != nil {
		alerter = alerts
	}
	return exchange.New(exchange.Options{
		Venue:      venue,
		Quirks:     binance.Quirks{},
		Logger:     log,
		Audit:      audit,
		Alerts:     alerter,
		DryRun:     cfg.Mode == config.ModeDryRun,
		Futures:    cfg.TradingMode == config.TradingFutures,
		LimitRatio: cfg.StopLoss.LimitRatio.Decimal,
		RetryPolicy: retry.Policy{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: time.Duration(cfg.Retry.InitialDelayMs) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
			Multiplier:   cfg.Retry.Multiplier,
		},
	})
}

func runBrackets(adapter *exchange.Adapter, symbol, notionalStr string) error {
	if notionalStr == "" {
		return errors.New("-notional required for op brackets")
	}
	notional, err := decimal.NewFromString(notionalStr)
	if err != nil {
		return fmt.Errorf("bad notional: %w", err)
	}
	lookup, err := adapter.MaintenanceRatioAndAmt(symbol, &notional)
	if err != nil {
		return err
	}
	fmt.Printf("symbol=%s notional=%s max_leverage=%s maint_ratio=%s maint_amount=%s found=%v\n",
		symbol,
		notional.String(),
		adapter.MaxLeverage(symbol, notional).StringFixed(2),
		lookup.Ratio.String(),
		lookup.Amount.String(),
		lookup.Found,
	)
	return nil
}

func runStopLoss(ctx context.Context, adapter *exchange.Adapter, args cliArgs) error {
	qty, err := decimal.NewFromString(args.qty)
	if err != nil {
		return fmt.Errorf("bad qty: %w", err)
	}
	stop, err := decimal.NewFromString(args.stopPrice)
	if err != nil {
		return fmt.Errorf("bad stop price: %w", err)
	}
	order, err := adapter.PlaceStopLoss(ctx, exchange.StopLossRequest{
		Symbol:    args.symbol,
		Side:      core.Side(args.side),
		Qty:       qty,
		StopPrice: stop,
		Leverage:  args.leverage,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	fmt.Printf("order id=%s symbol=%s stop=%s limit=%s qty=%s dry_run=%v\n",
		order.ID, order.Symbol, order.StopPrice.String(), order.Price.String(), order.Qty.String(), order.DryRun)
	return nil
}

func runCandles(ctx context.Context, adapter *exchange.Adapter, args cliArgs) error {
	since := time.Now().Add(-24 * time.Hour).UTC()
	if args.since != "" {
		parsed, err := time.Parse(time.RFC3339, args.since)
		if err != nil {
			return fmt.Errorf("bad since: %w", err)
		}
		since = parsed
	}
	candles, err := adapter.HistoricCandles(ctx, args.symbol, args.interval, since, args.newPair)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	fmt.Printf("candles symbol=%s interval=%s count=%d", args.symbol, args.interval, len(candles))
	if len(candles) > 0 {
		fmt.Printf(" first=%s last=%s",
			candles[0].OpenTime.Format(time.RFC3339),
			candles[len(candles)-1].OpenTime.Format(time.RFC3339))
	}
	fmt.Println()
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func buildAlertManager(cfg config.Config, log *zap.Logger) *alert.Manager {
	if !cfg.Alert.Enabled {
		return nil
	}
	notifier := alert.NewTelegramNotifier(alert.TelegramOptions{
		BotToken:   cfg.Alert.BotToken,
		ChatID:     cfg.Alert.ChatID,
		APIBaseURL: cfg.Alert.APIBaseURL,
		Timeout:    time.Duration(cfg.Alert.TimeoutSec) * time.Second,
	})
	return alert.NewManager(string(cfg.Mode), notifier, log)
}
