//go:build !linux

package cmd

import (
	"errors"
	"log/slog"

	"github.com/plexsphere/vipsync/internal/hostroute"
)

func newRouteController(_ *slog.Logger) (hostroute.RouteController, error) {
	return nil, errors.New("host routes are only supported on linux")
}
