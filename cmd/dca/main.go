package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-dca/internal/config"
	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/version"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "dca",
		Usage:   "Backtest and paper trade dollar cost averaging strategies",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error), overrides the config file",
				Sources: cli.EnvVars(config.EnvLogLevel),
			},
		},
		Commands: []*cli.Command{
			backtestCommand(),
			downloadCommand(),
			paperCommand(),
			schemaCommand(),
			generateCommand(),
			versionCommand(),
		},
	}
}

// newLogger prefers the --log-level flag over the configured level.
func newLogger(cmd *cli.Command, cfg *config.Config) (*logger.Logger, error) {
	level := cmd.String("log-level")
	if level == "" && cfg != nil {
		level = cfg.Log.Level
	}

	if level == "" {
		return logger.NewLogger()
	}

	return logger.NewLoggerWithLevel(level)
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
