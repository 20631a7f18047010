package main

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/backtest"
	"github.com/rxtech-lab/argo-dca/internal/backtest/results"
	"github.com/rxtech-lab/argo-dca/internal/config"
	"github.com/rxtech-lab/argo-dca/internal/datasource"
	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/metrics"
	"github.com/rxtech-lab/argo-dca/internal/report"
	"github.com/rxtech-lab/argo-dca/internal/strategy"
)

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Replay historical bars through the configured strategy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML config",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "CSV or parquet file with bars, overrides backtest.data_path",
			},
			&cli.StringFlag{
				Name:    "symbol",
				Aliases: []string{"s"},
				Usage:   "Symbol of the bars, overrides strategy.symbol",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Result folder, overrides backtest.output_dir",
			},
			&cli.IntFlag{
				Name:  "trades",
				Usage: "Number of trades to print",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Hide the progress bar",
			},
		},
		Action: backtestAction,
	}
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if cmd.IsSet("symbol") {
		cfg.Strategy.Symbol = cmd.String("symbol")
	}

	dataPath := cfg.Backtest.DataPath
	if cmd.IsSet("data") {
		dataPath = cmd.String("data")
	}

	if dataPath == "" {
		return fmt.Errorf("no data file, pass --data or set backtest.data_path")
	}

	outputDir := cfg.Backtest.OutputDir
	if cmd.IsSet("out") {
		outputDir = cmd.String("out")
	}

	bars, err := datasource.Load(dataPath, cfg.Strategy.Symbol, log.Named("datasource"))
	if err != nil {
		return err
	}

	start, end := cfg.BacktestRange()
	bars = datasource.Filter(bars, start, end)

	indicators, err := cfg.IndicatorProvider(log.Named("indicators"))
	if err != nil {
		return err
	}

	var sinks []strategy.EventSink
	if cfg.MetricsEnabled() {
		sinks = append(sinks, metrics.NewRecorder(cfg.Strategy.Symbol))
	}

	sim, err := backtest.NewSimulator(cfg.NewStrategy, indicators, log.Named("backtest"), sinks...)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !cmd.Bool("no-progress") {
		bar = progressbar.Default(int64(len(bars)), "backtesting")
	}

	result, runErr := sim.Run(ctx, bars, cfg.RunParams(func(current int, _ int) {
		if bar != nil {
			_ = bar.Set(current)
		}
	}))

	if bar != nil {
		_ = bar.Finish()
	}

	// a partial report is still worth keeping
	if result != nil {
		if err := writeResults(result, outputDir, dataPath, log); err != nil {
			return err
		}

		if err := newPresenter(cmd).Render(result); err != nil {
			return err
		}
	}

	return runErr
}

func writeResults(r *backtest.Report, outputDir string, dataPath string, log *logger.Logger) error {
	dir, err := results.NewSessionManager(outputDir, log.Named("results")).NextRun()
	if err != nil {
		return err
	}

	stats, err := results.NewWriter(log.Named("results")).Write(r, dir, dataPath)
	if err != nil {
		return err
	}

	log.Info("Backtest results written",
		zap.String("dir", dir),
		zap.Int("sells", stats.TradeResult.NumberOfSells),
	)

	return nil
}

func newPresenter(cmd *cli.Command) *report.Presenter {
	return report.NewPresenter(os.Stdout, report.WithTradeLimit(int(cmd.Int("trades"))))
}
