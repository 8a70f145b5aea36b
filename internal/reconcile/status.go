package reconcile

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/vipsync/internal/discovery"
	"github.com/plexsphere/vipsync/internal/fsutil"
	"github.com/plexsphere/vipsync/internal/ifstate"
)

// Status is the persisted record of the last applied observation.
type Status struct {
	InstanceID  string            `yaml:"instance_id"`
	Region      string            `yaml:"region"`
	RouteTables []string          `yaml:"route_tables"`
	UpdatedAt   time.Time         `yaml:"updated_at"`
	Interfaces  []StatusInterface `yaml:"interfaces"`
}

// StatusInterface is one interface entry of Status.
type StatusInterface struct {
	MAC       string   `yaml:"mac"`
	Device    string   `yaml:"device"`
	ENIID     string   `yaml:"eni_id,omitempty"`
	Addresses []string `yaml:"addresses"`
}

// NewStatus builds a Status from the bootstrap state and an observation.
func NewStatus(state *discovery.State, obs ifstate.Observation, now time.Time) *Status {
	s := &Status{UpdatedAt: now.UTC()}
	if state != nil {
		if state.Identity != nil {
			s.InstanceID = state.Identity.InstanceID
			s.Region = state.Identity.Region
		}
		if state.Pool != nil {
			s.RouteTables = state.Pool.IDs()
		}
	}
	for _, iface := range obs {
		entry := StatusInterface{MAC: iface.MAC, Device: iface.Device}
		if state != nil && state.Identity != nil {
			if info, ok := state.Identity.Interface(iface.MAC); ok {
				entry.ENIID = info.ENIID
			}
		}
		for _, a := range iface.Addrs {
			entry.Addresses = append(entry.Addresses, a.String())
		}
		s.Interfaces = append(s.Interfaces, entry)
	}
	return s
}

// Observation converts the persisted interfaces back to an observation.
func (s *Status) Observation() (ifstate.Observation, error) {
	ifaces := make([]ifstate.Interface, 0, len(s.Interfaces))
	for _, entry := range s.Interfaces {
		iface := ifstate.Interface{MAC: entry.MAC, Device: entry.Device}
		for _, a := range entry.Addresses {
			p, err := netip.ParsePrefix(a)
			if err != nil {
				return nil, fmt.Errorf("reconcile: status: interface %s: %w", entry.MAC, err)
			}
			iface.Addrs = append(iface.Addrs, p)
		}
		ifaces = append(ifaces, iface)
	}
	return ifstate.NewObservation(ifaces...), nil
}

// WriteStatus atomically writes s to path as YAML.
func WriteStatus(path string, s *Status) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("reconcile: marshal status: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("reconcile: write status: %w", err)
	}
	return nil
}

// ReadStatus reads a Status written by WriteStatus.
func ReadStatus(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reconcile: read status: %w", err)
	}
	var s Status
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("reconcile: parse status %s: %w", path, err)
	}
	return &s, nil
}
