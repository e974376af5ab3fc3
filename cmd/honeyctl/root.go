package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashureev/honeypot/internal/store"
)

var dbPath string

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "honeyctl",
		Short:         "Inspect honeypot sessions and indicators",
		Long:          `honeyctl extracts indicators from text and reads the honeypot SQLite archive.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	defaultDB := os.Getenv("DB_PATH")
	if defaultDB == "" {
		defaultDB = "./data/honeypot.db"
	}
	root.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "path to the SQLite archive")

	root.AddCommand(newExtractCmd(), newSessionCmd(), newTopCmd(), newRulesCmd())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openArchive() (*store.SQLiteStore, error) {
	return store.NewSQLite(dbPath)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
