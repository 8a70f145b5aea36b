package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/plexsphere/vipsync/internal/packaging"
)

var installOpts packaging.InstallConfig

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install vipsync as a systemd service",
	RunE:  runInstall,
}

func init() {
	f := installCmd.Flags()
	f.StringVar(&installOpts.RouteTableFilter, "route-table-tag", "", "route table filter written to the default config")
	f.BoolVar(&installOpts.SubnetLoopbacks, "subnet-loopbacks", false, "enable subnet loopbacks in the default config")
	f.BoolVar(&installOpts.Enable, "enable", false, "enable the service to start on boot")
	f.BoolVar(&installOpts.Start, "now", false, "start the service after installing, or restart it if it is running")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	installer := packaging.NewInstaller(installOpts, packaging.NewSystemdController(), packaging.NewRootChecker(), logger)

	if err := installer.Install(); err != nil {
		return fmt.Errorf("vipsync install: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "vipsync installed successfully")
	return nil
}
