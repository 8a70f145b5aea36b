package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexsphere/vipsync/internal/reconcile"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last applied interface state",
	Long:  "Read the state file written by the run command and display the last applied observation.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("vipsync status: %w", err)
	}
	if cfg.Reconcile.DisableStateFile {
		return fmt.Errorf("vipsync status: state file is disabled in %s", cfgFile)
	}

	st, err := reconcile.ReadStatus(cfg.Reconcile.StateFile)
	if err != nil {
		return fmt.Errorf("vipsync status: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Instance:     %s\n", st.InstanceID)
	fmt.Fprintf(w, "Region:       %s\n", st.Region)
	fmt.Fprintf(w, "Route tables: %s\n", strings.Join(st.RouteTables, ", "))
	fmt.Fprintf(w, "Updated:      %s\n", st.UpdatedAt.Format(time.RFC3339))

	if len(st.Interfaces) == 0 {
		fmt.Fprintln(w, "\nNo interfaces applied.")
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MAC\tDEVICE\tENI\tADDRESSES")
	for _, iface := range st.Interfaces {
		eni := iface.ENIID
		if eni == "" {
			eni = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", iface.MAC, iface.Device, eni, strings.Join(iface.Addresses, ","))
	}
	return tw.Flush()
}
