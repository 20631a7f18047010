package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/config"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata"
)

func downloadCommand() *cli.Command {
	providers := make([]string, 0)
	for _, name := range marketdata.GetSupportedProviders() {
		providers = append(providers, name)
	}

	return &cli.Command{
		Name:  "download",
		Usage: "Download historical bars into a CSV or parquet file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"ticker", "t"},
				Usage:    "Ticker or trading pair, e.g. BTCUSDT",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start date in `YYYY-MM-DD` format (or RFC3339)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format (or RFC3339). Defaults to today.",
				Value:   time.Now().UTC().Format("2006-01-02"),
			},
			&cli.StringFlag{
				Name:    "timeframe",
				Aliases: []string{"interval", "i"},
				Usage:   "Bar interval (1m, 5m, 15m, 1h, 4h, 1d)",
				Value:   "1h",
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Data provider (%s)", strings.Join(providers, ", ")),
				Value:   string(marketdata.ProviderBinance),
			},
			&cli.StringFlag{
				Name:    "writer",
				Aliases: []string{"w"},
				Usage:   fmt.Sprintf("Output format (%s, %s)", marketdata.WriterDuckDB, marketdata.WriterCSV),
				Value:   string(marketdata.WriterDuckDB),
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Output directory",
				Value:   "data",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Polygon API key",
				Sources: cli.EnvVars(config.EnvPolygonAPIKey),
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Download again even if the file exists",
			},
		},
		Action: downloadAction,
	}
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd, nil)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	downloadConfig := marketdata.DownloadConfig{
		Provider:  cmd.String("provider"),
		Ticker:    cmd.String("symbol"),
		StartDate: cmd.String("start"),
		EndDate:   cmd.String("end"),
		Interval:  cmd.String("timeframe"),
		Writer:    cmd.String("writer"),
		ApiKey:    cmd.String("api-key"),
		Force:     cmd.Bool("force"),
	}

	if err := downloadConfig.Validate(); err != nil {
		return err
	}

	params, err := downloadConfig.ToDownloadParams()
	if err != nil {
		return err
	}

	bar := progressbar.Default(100, "downloading")
	onProgress := func(current float64, total float64, message string) {
		if total <= 0 {
			return
		}

		bar.Describe(message)
		_ = bar.Set(int(current / total * 100))
	}

	client, err := marketdata.NewClient(downloadConfig.ToClientConfig(cmd.String("data")), onProgress, log.Named("marketdata"))
	if err != nil {
		return err
	}

	log.Info("Starting download",
		zap.String("ticker", params.Ticker),
		zap.Time("start", params.StartDate),
		zap.Time("end", params.EndDate),
		zap.String("interval", string(params.Timeframe)),
		zap.String("provider", downloadConfig.Provider),
	)

	path, err := client.Download(ctx, params)
	if err != nil {
		return err
	}

	_ = bar.Finish()

	fmt.Println(path)

	return nil
}
