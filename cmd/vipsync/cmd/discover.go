package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/plexsphere/vipsync/internal/discovery"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run one discovery bootstrap and print the result",
	Long: "Read the instance identity from the metadata service, select the route\n" +
		"tables matching the configured filter and, with subnet loopbacks enabled,\n" +
		"load the VPC subnet catalog. Nothing is modified.",
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

// discoveryReport is the YAML document printed by discover.
type discoveryReport struct {
	InstanceID       string            `yaml:"instance_id"`
	Region           string            `yaml:"region"`
	RouteTableFilter string            `yaml:"route_table_filter"`
	RouteTables      []string          `yaml:"route_tables"`
	Interfaces       []reportInterface `yaml:"interfaces"`
	SubnetAware      bool              `yaml:"subnet_aware"`
	Subnets          []reportSubnet    `yaml:"subnets,omitempty"`
}

type reportInterface struct {
	MAC         string `yaml:"mac"`
	ENIID       string `yaml:"eni_id"`
	VPCID       string `yaml:"vpc_id"`
	Subnet      string `yaml:"subnet"`
	DeviceIndex string `yaml:"device_index"`
}

type reportSubnet struct {
	ID   string `yaml:"id"`
	CIDR string `yaml:"cidr"`
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("vipsync discover: %w", err)
	}
	logger := setupLogger(cfg.LogLevel)

	disc, err := discovery.NewDiscoverer(cfg.Discovery, discovery.NewMetadataClient(), discovery.AWSClients, logger)
	if err != nil {
		return fmt.Errorf("vipsync discover: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	state, err := disc.Discover(ctx)
	if err != nil {
		return fmt.Errorf("vipsync discover: %w", err)
	}
	return writeDiscoveryReport(cmd.OutOrStdout(), state)
}

func newDiscoveryReport(state *discovery.State) discoveryReport {
	r := discoveryReport{
		RouteTableFilter: state.Filter.String(),
	}
	if state.Identity != nil {
		r.InstanceID = state.Identity.InstanceID
		r.Region = state.Identity.Region
		for _, info := range state.Identity.Interfaces {
			r.Interfaces = append(r.Interfaces, reportInterface{
				MAC:         info.MAC,
				ENIID:       info.ENIID,
				VPCID:       info.VPCID,
				Subnet:      info.Subnet.String(),
				DeviceIndex: info.DeviceIndex,
			})
		}
		sort.Slice(r.Interfaces, func(i, j int) bool {
			return r.Interfaces[i].MAC < r.Interfaces[j].MAC
		})
	}
	if state.Pool != nil {
		r.RouteTables = state.Pool.IDs()
	}
	if state.Resolver != nil {
		r.SubnetAware = state.Resolver.SubnetAware()
		if catalog := state.Resolver.Catalog(); catalog != nil {
			for _, s := range catalog.Subnets() {
				r.Subnets = append(r.Subnets, reportSubnet{ID: s.ID, CIDR: s.CIDR.String()})
			}
		}
	}
	return r
}

func writeDiscoveryReport(w io.Writer, state *discovery.State) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDiscoveryReport(state)); err != nil {
		return fmt.Errorf("vipsync discover: encode: %w", err)
	}
	return enc.Close()
}
