package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/moodiary/moodiary/internal/models"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local entries with the sync service",
	Long: `Sync pushes unsynced local entries and pulls changes made on other
devices. One-shot by default; --watch keeps the background scheduler
and realtime feed running until interrupted.`,
	Example: `  moodiary sync
  moodiary sync --watch`,
	RunE: runSync,
}

var syncWatch bool

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVarP(&syncWatch, "watch", "w", false,
		"Keep syncing in the background until interrupted")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		if !jsonOutput {
			printWarning("\nInterrupted, shutting down...")
		}
		cancel()
	}()

	if _, err := app.CurrentUser(); err != nil {
		return fmt.Errorf("not authenticated, run 'moodiary login' first: %w", err)
	}

	if syncWatch {
		if !jsonOutput {
			printInfo("Watching for changes (Ctrl-C to stop)")
		}
		app.Run(ctx)
		return nil
	}

	report, err := app.SyncNow(ctx)
	if err != nil {
		if errors.Is(err, models.ErrSyncInProgress) {
			printWarning("A sync cycle is already running")
			return nil
		}
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
		} else {
			printError("Sync failed: %v", err)
		}
		return err
	}

	if jsonOutput {
		printJSON(report)
	} else {
		printSuccess("Synced: %d pushed, %d pulled in %v",
			report.Pushed, report.Pulled, report.Duration.Round(time.Millisecond))
	}
	return nil
}
