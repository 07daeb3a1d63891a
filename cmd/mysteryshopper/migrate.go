package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/BaSui01/mysteryshopper/internal/migration"
)

// =============================================================================
// 🗄️ 数据库迁移命令
// =============================================================================

func (a *app) migrateCommand() *cobra.Command {
	var dbType string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQL journey store schema",
		Example: `  mysteryshopper migrate up
  mysteryshopper migrate up --config /etc/mysteryshopper/config.yaml
  mysteryshopper migrate down
  mysteryshopper migrate status
  mysteryshopper migrate goto 1
  mysteryshopper migrate force 0
  mysteryshopper migrate reset`,
	}
	cmd.PersistentFlags().StringVar(&dbType, "db-type", "", "Database type: postgres, mysql, sqlite (default from store.database.driver)")

	// withCLI 打开迁移器并在命令结束后关闭
	withCLI := func(fn func(cmd *cobra.Command, cli *migration.CLI, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if dbType != "" {
				cfg.Store.Database.Driver = dbType
			}
			m, err := migration.NewMigratorFromConfig(cfg, a.newLogger(cfg.Log))
			if err != nil {
				return fmt.Errorf("failed to create migrator: %w", err)
			}
			defer m.Close()

			cli := migration.NewCLI(m)
			cli.SetOutput(cmd.OutOrStdout())
			return fn(cmd, cli, args)
		}
	}

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Rollback the last migration",
		Args:  cobra.NoArgs,
		RunE: withCLI(func(cmd *cobra.Command, cli *migration.CLI, _ []string) error {
			if all {
				return cli.RunDownAll(cmd.Context())
			}
			return cli.RunDown(cmd.Context())
		}),
	}
	down.Flags().BoolVar(&all, "all", false, "Rollback all migrations")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withCLI(func(cmd *cobra.Command, cli *migration.CLI, _ []string) error {
				return cli.RunUp(cmd.Context())
			}),
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			Args:  cobra.NoArgs,
			RunE: withCLI(func(cmd *cobra.Command, cli *migration.CLI, _ []string) error {
				return cli.RunStatus(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show current migration version",
			Args:  cobra.NoArgs,
			RunE: withCLI(func(cmd *cobra.Command, cli *migration.CLI, _ []string) error {
				return cli.RunVersion(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "goto VERSION",
			Short: "Migrate to a specific version",
			Args:  cobra.ExactArgs(1),
			RunE: withCLI(func(cmd *cobra.Command, cli *migration.CLI, args []string) error {
				version, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version: %s", args[0])
				}
				return cli.RunGoto(cmd.Context(), uint(version))
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Force set migration version (use with caution)",
			Args:  cobra.ExactArgs(1),
			RunE: withCLI(func(cmd *cobra.Command, cli *migration.CLI, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version: %s", args[0])
				}
				return cli.RunForce(cmd.Context(), version)
			}),
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Rollback all migrations",
			Args:  cobra.NoArgs,
			RunE: withCLI(func(cmd *cobra.Command, cli *migration.CLI, _ []string) error {
				return cli.RunDownAll(cmd.Context())
			}),
		},
	)
	return cmd
}
