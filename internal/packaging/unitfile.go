package packaging

import "fmt"

// GenerateUnitFile renders the systemd unit for vipsync in sidecar mode.
// The service reports readiness over sd_notify once bootstrap completes and
// `systemctl reload` forces a full resync through SIGHUP. CAP_NET_ADMIN is
// the only capability kept, for the peer routes.
func GenerateUnitFile(cfg InstallConfig) string {
	cfg.ApplyDefaults()

	return fmt.Sprintf(`[Unit]
Description=vipsync VPC route synchronizer
After=network-online.target
Wants=network-online.target
StartLimitBurst=5
StartLimitIntervalSec=60

[Service]
Type=notify
ExecStart=%s run --config %s --run-as-sidecar
ExecReload=/bin/kill -HUP $MAINPID
Restart=always
RestartSec=5s
EnvironmentFile=-%s
AmbientCapabilities=CAP_NET_ADMIN
CapabilityBoundingSet=CAP_NET_ADMIN
ProtectSystem=full
ProtectHome=true
ReadWritePaths=%s

[Install]
WantedBy=multi-user.target
`, cfg.BinaryPath, cfg.ConfigPath(), cfg.EnvironmentPath(), cfg.RunDir)
}
