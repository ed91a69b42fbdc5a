package main

import (
	"fmt"
	"os"

	"github.com/spartanq/spartanq/cmd/spartanq/subcommands"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "spartanq",
		Short: "spartanq message broker",
		Long:  "spartanq is a persistent, multi-queue message broker with optional replication.",
	}
	rootCmd.PersistentFlags().String("config", "spartanq.yaml", "configuration file path")

	rootCmd.AddCommand(subcommands.CmdStart())
	rootCmd.AddCommand(subcommands.CmdInit())
	rootCmd.AddCommand(subcommands.CmdReplica())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
