package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moodiary/moodiary/internal/client"
	"github.com/moodiary/moodiary/internal/config"
	"github.com/moodiary/moodiary/internal/events"
)

var (
	cfgPath    string
	jsonOutput bool
	verbose    bool

	cfg    *config.Config
	logger *events.Logger
	app    *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "moodiary",
	Short: "Offline-first mood diary with background sync",
	Long: `Moodiary keeps a daily journal on this device and reconciles it
with your other devices in the background. Entries are always written
locally first; sync happens when the network allows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initApp()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app != nil {
			return app.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		"Config file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
}

func initApp() error {
	var err error
	cfg, err = config.NewLoader(cfgPath).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	app, err = client.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	return nil
}
