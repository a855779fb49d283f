package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/centralrestaurante/amigo-central/utils/log"
)

var rootCmd = &cobra.Command{
	Use:          "concierge",
	Short:        "Amigo Central restaurant concierge backend",
	SilenceUsage: true,
}

func main() {
	defer log.Sync()

	rootCmd.AddCommand(newServeCmd(), newMigrateCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
