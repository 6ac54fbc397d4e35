/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sheetlytics",
	Short: "Spreadsheet analytics API server",
	Long: `sheetlytics is the backend for the spreadsheet analytics platform:
signup/login, spreadsheet upload and parsing, chart configuration, and
admin reporting.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
