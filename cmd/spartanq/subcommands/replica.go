package subcommands

import (
	"fmt"
	"log/slog"

	"github.com/spartanq/spartanq/config"
	"github.com/spartanq/spartanq/replication"
	"github.com/spf13/cobra"
)

// CmdReplica returns the "replica" subcommand: runs the broker with the
// configuration's replication role forced to replica, regardless of
// what the file names, so a single config can be shared between a
// primary and its replicas and started with the matching subcommand.
func CmdReplica() *cobra.Command {
	return &cobra.Command{
		Use:   "replica",
		Short: "Start spartanq as a replication replica",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Replication == nil || cfg.Replication.Bind == "" {
				return fmt.Errorf("%w: replication.bind is required to run as a replica", replication.ErrConfigNotFound)
			}
			cfg.Replication.Role = config.ReplicationRoleReplica
			return runBroker(cmd.Context(), cfg, slog.Default())
		},
	}
}
