package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "nebnav",
		Short:   "Nebby Navigator - cosmic task lifecycle service",
		Version: Version,
	}

	rootCmd.PersistentFlags().String("config", "", "path to TOML config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(evaporateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
