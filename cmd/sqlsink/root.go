package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sqlsink/internal/config"
)

// app carries the state shared by subcommands after the root's
// PersistentPreRunE has loaded the configuration.
type app struct {
	cfgPath string
	envFile string
	verbose bool

	cfg config.Sink
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "sqlsink",
		Short: "buffered relational record sink",
		Long: `sqlsink writes structured records to SQL tables.

Records are grouped by destination and written in batches. A failed batch
is retried row by row; rows that still fail are logged and dropped.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "sqlsink.yaml", "config file (json, yaml or toml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "dotenv file with SQLSINK_* overrides (default .env when present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logs")

	root.AddCommand(newValidateCmd(a), newIngestCmd(a), newDestinationsCmd(a))
	return root
}

// load reads the dotenv file and the config.
func (a *app) load() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil {
			return fmt.Errorf("env file %s: %w", a.envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("env file .env: %w", err)
	}

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.verbose {
		log.Printf("config: path=%s job=%s storage=%s destinations=%d", a.cfgPath, cfg.Job, cfg.Storage.Kind, len(cfg.Destinations))
	}
	return nil
}

// checkConfig prints issues to stderr and fails when any is an error.
func (a *app) checkConfig(cmd *cobra.Command) error {
	issues := config.Validate(a.cfg)
	for _, iss := range issues {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid: %s", a.cfgPath)
	}
	return nil
}
