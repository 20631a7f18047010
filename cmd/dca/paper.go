package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rxtech-lab/argo-dca/internal/config"
	"github.com/rxtech-lab/argo-dca/internal/metrics"
	"github.com/rxtech-lab/argo-dca/internal/paper"
	"github.com/rxtech-lab/argo-dca/internal/persistence"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata/provider"
)

func paperCommand() *cli.Command {
	return &cli.Command{
		Name:  "paper",
		Usage: "Trade the configured strategy against live bars with simulated fills",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML config",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address of the state and metrics endpoint, overrides paper.listen",
			},
		},
		Action: paperAction,
	}
}

func paperAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	market, err := provider.NewMarketDataProvider(cfg.Market.Provider, provider.Config{
		PolygonApiKey:     cfg.Market.PolygonApiKey,
		RequestsPerSecond: cfg.Market.RequestsPerSecond,
		BinanceBaseURL:    cfg.Market.BaseURL,
	})
	if err != nil {
		return err
	}

	store, err := persistence.Open(cfg.Persistence.Backend, cfg.Persistence.Path, cfg.Persistence.HistoryLimit, log.Named("persistence"))
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	indicators, err := cfg.IndicatorProvider(log.Named("indicators"))
	if err != nil {
		return err
	}

	var opts []paper.Option
	if cfg.MetricsEnabled() {
		opts = append(opts, paper.WithRecorder(metrics.NewRecorder(cfg.Strategy.Symbol)))
	}

	runParams := cfg.RunParams(nil)

	runner, err := paper.NewRunner(paper.Config{
		Timeframe:        cfg.Market.Timeframe,
		PollInterval:     cfg.Paper.PollInterval,
		InitialCash:      cfg.Paper.InitialCash,
		SaveEvery:        cfg.Paper.SaveEvery,
		WindowSize:       runParams.WindowSize,
		MinLookback:      runParams.MinLookback,
		DecimalPrecision: runParams.DecimalPrecision,
	}, cfg.NewStrategy, indicators, market, store, log.Named("paper"), opts...)
	if err != nil {
		return err
	}

	listen := cfg.Paper.Listen
	if cmd.IsSet("listen") {
		listen = cmd.String("listen")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Paper trading started",
		zap.String("symbol", cfg.Strategy.Symbol),
		zap.String("strategy", string(cfg.Strategy.Type)),
		zap.String("timeframe", string(cfg.Market.Timeframe)),
		zap.Duration("poll_interval", cfg.Paper.PollInterval),
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return runner.Run(ctx)
	})

	if listen != "" {
		group.Go(func() error {
			return runner.Serve(ctx, listen)
		})
	}

	return group.Wait()
}
