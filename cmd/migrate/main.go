package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/comitanigiacomo/kanso-streak/internal/config"
	"github.com/comitanigiacomo/kanso-streak/internal/db"
	"github.com/comitanigiacomo/kanso-streak/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("migrate failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the kanso-streak database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newUpCmd(), newDownCmd(), newVersionCmd())
	return root
}

func load() (config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger.New(cfg.AppName+"-migrate", cfg.Env), nil
}

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all up migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if err := db.MigrateUp(cfg); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

func newDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1 step)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}

			cfg, log, err := load()
			if err != nil {
				return err
			}
			if err := db.MigrateDown(cfg, steps); err != nil {
				return err
			}
			log.WithField("steps", steps).Info("migrations rolled back")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			version, dirty, err := db.Version(cfg)
			if err != nil {
				return err
			}
			cmd.Printf("version=%d dirty=%t\n", version, dirty)
			return nil
		},
	}
}
