package subcommands

import (
	"fmt"
	"os"

	"github.com/spartanq/spartanq/config"
	"github.com/spf13/cobra"
)

// CmdInit returns the "init" subcommand: writes a starter configuration
// file at the --config path, refusing to overwrite an existing one.
func CmdInit() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config: %s already exists", path)
			}
			return config.Save(path, config.Default())
		},
	}
}
