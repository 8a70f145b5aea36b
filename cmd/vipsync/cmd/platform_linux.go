//go:build linux

package cmd

import (
	"log/slog"

	"github.com/plexsphere/vipsync/internal/hostroute"
)

func newRouteController(logger *slog.Logger) (hostroute.RouteController, error) {
	return hostroute.NewNetlinkRouteController(logger), nil
}
