package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moodiary/moodiary/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show account, journal and sync state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	stats, err := app.Stats(ctx)
	if err != nil {
		return err
	}
	syncStatus := app.SyncStatus()

	user, userErr := app.CurrentUser()

	if jsonOutput {
		out := map[string]interface{}{
			"logged_in": userErr == nil,
			"stats":     stats,
			"sync":      syncStatus,
		}
		if user != nil {
			out["email"] = user.Email
		}
		printJSON(out)
		return nil
	}

	if userErr == nil {
		printInfo("Logged in as %s", user.Email)
	} else {
		printWarning("Not logged in")
	}

	fmt.Printf("\nEntries: %d (%d photos)\n", stats.Entries, stats.Photos)
	for _, mood := range models.Moods {
		if n := stats.ByMood[mood]; n > 0 {
			fmt.Printf("  %-10s %d\n", moodLabel(string(mood)), n)
		}
	}

	fmt.Println()
	switch {
	case syncStatus.Syncing:
		printInfo("Sync in progress")
	case stats.Pending > 0:
		printWarning("%d entries waiting to sync", stats.Pending)
	default:
		printSuccess("Everything synced")
	}
	if !syncStatus.LastSync.IsZero() {
		fmt.Printf("Last sync: %s\n", syncStatus.LastSync.Local().Format("2006-01-02 15:04:05"))
	}
	if syncStatus.LastError != "" {
		if syncStatus.Retryable {
			printWarning("Last sync error (will retry): %s", syncStatus.LastError)
		} else {
			printError("Last sync error: %s", syncStatus.LastError)
		}
	}
	return nil
}
