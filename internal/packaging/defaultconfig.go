package packaging

import (
	"fmt"
	"strconv"

	"github.com/plexsphere/vipsync/internal/routetable"
)

// GenerateDefaultConfig renders the config.yaml written on first install.
// The reconciler runs in sidecar mode and persists its state under RunDir;
// peer routes and the metrics listener are left commented out.
func GenerateDefaultConfig(cfg InstallConfig) string {
	cfg.ApplyDefaults()

	filter := cfg.RouteTableFilter
	if filter == "" {
		filter = routetable.MatchAll
	}

	return fmt.Sprintf(`# vipsync configuration

log_level: info
discovery:
  route_table_filter: %s
  subnet_loopbacks: %t
reconcile:
  mode: sidecar
  state_file: %s
# peer_routes:
#   peers:
#     "1": ["10.10.0.0/16"]
# metrics:
#   listen_addr: 127.0.0.1:9120
`, strconv.Quote(filter), cfg.SubnetLoopbacks, cfg.StateFilePath())
}
