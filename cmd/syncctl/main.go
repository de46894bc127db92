package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wakti/whoopsync/internal/version"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "syncctl",
		Short:   "Operate the WHOOP sync service",
		Version: version.Get(),
	}

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(connectCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
