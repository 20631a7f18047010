package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-dca/internal/config"
	"github.com/rxtech-lab/argo-dca/internal/version"
)

const (
	schemaFile       = "dca-config.schema.json"
	sampleConfigFile = "dca-config.yaml"
)

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of the config file",
		Action: func(_ context.Context, _ *cli.Command) error {
			schemaJSON, err := config.SchemaJSON()
			if err != nil {
				return err
			}

			fmt.Println(schemaJSON)

			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the version and the persisted state version",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Printf("dca %s (state %s)\n", version.GetVersion(), version.StateVersion)

			return nil
		},
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Write the config JSON schema and a sample config",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Output directory",
				Value: "config",
			},
			&cli.StringFlag{
				Name:  "symbol",
				Usage: "Symbol of the sample config",
				Value: "BTCUSDT",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			schemaPath, samplePath, err := generate(cmd.String("dir"), cmd.String("symbol"))
			if err != nil {
				return err
			}

			fmt.Printf("Schema written to %s\n", schemaPath)

			if samplePath != "" {
				fmt.Printf("Sample config written to %s\n", samplePath)
			}

			return nil
		},
	}
}

// generate writes the schema into dir and, unless it already exists, a sample
// config pointing at it. The returned sample path is empty when it was kept.
func generate(dir string, symbol string) (string, string, error) {
	schemaJSON, err := config.SchemaJSON()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate schema: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create directory: %w", err)
	}

	schemaPath := filepath.Join(dir, schemaFile)
	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write schema: %w", err)
	}

	samplePath := filepath.Join(dir, sampleConfigFile)
	if _, err := os.Stat(samplePath); err == nil {
		return schemaPath, "", nil
	}

	sample, err := yaml.Marshal(config.Default(symbol))
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal sample config: %w", err)
	}

	sample = append([]byte("# yaml-language-server: $schema="+schemaFile+"\n"), sample...)
	if err := os.WriteFile(samplePath, sample, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write sample config: %w", err)
	}

	return schemaPath, samplePath, nil
}
