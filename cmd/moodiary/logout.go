package main

import (
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session",
	Long:  `Logout removes the session from this device. Diary entries stay local.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Logout(); err != nil {
			printError("Logout failed: %v", err)
			return err
		}
		if jsonOutput {
			printJSON(map[string]interface{}{"success": true})
		} else {
			printSuccess("Logged out")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
