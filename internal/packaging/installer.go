package packaging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/plexsphere/vipsync/internal/agent"
	"github.com/plexsphere/vipsync/internal/fsutil"
)

// Installer installs and removes the vipsync systemd service.
type Installer struct {
	cfg     InstallConfig
	systemd SystemdController
	root    RootChecker
	logger  *slog.Logger

	// executable returns the binary to install. Tests replace it.
	executable func() (string, error)
}

// NewInstaller creates a new Installer with defaults applied.
func NewInstaller(cfg InstallConfig, systemd SystemdController, root RootChecker, logger *slog.Logger) *Installer {
	cfg.ApplyDefaults()
	return &Installer{
		cfg:        cfg,
		systemd:    systemd,
		root:       root,
		logger:     logger.With("component", "packaging"),
		executable: os.Executable,
	}
}

type step struct {
	name string
	run  func() error
}

// runSteps runs steps in order and stops at the first failure.
func (ins *Installer) runSteps(steps []step) error {
	for _, s := range steps {
		if err := s.run(); err != nil {
			return fmt.Errorf("packaging: %s: %w", s.name, err)
		}
		ins.logger.Debug("step done", "step", s.name)
	}
	return nil
}

// Install copies the running binary into place, seeds the config unless one
// exists, writes the unit and reloads systemd. Re-running Install upgrades an
// existing installation in place.
func (ins *Installer) Install() error {
	if err := ins.cfg.Validate(); err != nil {
		return err
	}
	if !ins.root.IsRoot() {
		return errors.New("packaging: install requires root privileges")
	}
	if !ins.systemd.IsAvailable() {
		return errors.New("packaging: systemd is not available")
	}

	return ins.runSteps([]step{
		{"create directories", ins.createDirs},
		{"install binary", ins.installBinary},
		{"write config", ins.writeConfig},
		{"write unit file", ins.writeUnit},
		{"daemon-reload", ins.systemd.DaemonReload},
		{"activate service", ins.activate},
	})
}

// Uninstall stops and removes the service and its binary. With purge the
// config and runtime directories are removed as well. Uninstalling a host
// without the unit file is a no-op.
func (ins *Installer) Uninstall(purge bool) error {
	if !ins.root.IsRoot() {
		return errors.New("packaging: uninstall requires root privileges")
	}
	if _, err := os.Stat(ins.cfg.UnitFilePath); errors.Is(err, os.ErrNotExist) {
		ins.logger.Info("vipsync is not installed, nothing to do", "unit", ins.cfg.UnitFilePath)
		return nil
	}

	steps := []step{
		{"deactivate service", ins.deactivate},
		{"remove unit file", func() error { return ins.remove(ins.cfg.UnitFilePath) }},
		{"daemon-reload", ins.systemd.DaemonReload},
		{"remove binary", func() error { return ins.remove(ins.cfg.BinaryPath) }},
	}
	if purge {
		steps = append(steps, step{"purge directories", ins.purgeDirs})
	}
	return ins.runSteps(steps)
}

func (ins *Installer) createDirs() error {
	for _, dir := range []string{ins.cfg.ConfigDir, ins.cfg.RunDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// installBinary replaces BinaryPath by rename, so upgrading over a binary the
// running service holds open does not fail.
func (ins *Installer) installBinary() error {
	src, err := ins.executable()
	if err != nil {
		return err
	}
	if src, err = filepath.EvalSymlinks(src); err != nil {
		return err
	}
	if dst, err := filepath.EvalSymlinks(ins.cfg.BinaryPath); err == nil && dst == src {
		ins.logger.Info("binary already at install path", "path", src)
		return nil
	}
	if err := fsutil.CopyFileAtomic(src, ins.cfg.BinaryPath, 0o755); err != nil {
		return err
	}
	ins.logger.Info("binary installed", "src", src, "dst", ins.cfg.BinaryPath)
	return nil
}

// writeConfig seeds the default config. An existing config is kept, but it
// must load; a service started on a broken config would only crash-loop.
func (ins *Installer) writeConfig() error {
	path := ins.cfg.ConfigPath()
	_, err := os.Stat(path)
	switch {
	case err == nil:
		if _, err := agent.ParseConfig(path); err != nil {
			return fmt.Errorf("existing config is invalid: %w", err)
		}
		ins.logger.Info("existing config preserved", "path", path)
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return err
	}

	if err := fsutil.WriteFileAtomic(path, []byte(GenerateDefaultConfig(ins.cfg)), 0o644); err != nil {
		return err
	}
	ins.logger.Info("default config written",
		"path", path,
		"route_table_filter", ins.cfg.RouteTableFilter,
		"subnet_loopbacks", ins.cfg.SubnetLoopbacks,
	)
	return nil
}

func (ins *Installer) writeUnit() error {
	if err := fsutil.WriteFileAtomic(ins.cfg.UnitFilePath, []byte(GenerateUnitFile(ins.cfg)), 0o644); err != nil {
		return err
	}
	ins.logger.Info("unit file written", "path", ins.cfg.UnitFilePath)
	return nil
}

func (ins *Installer) activate() error {
	name := ins.cfg.ServiceName
	if ins.cfg.Enable {
		if err := ins.systemd.Enable(name); err != nil {
			return err
		}
		ins.logger.Info("service enabled", "service", name)
	}
	if !ins.cfg.Start {
		return nil
	}
	if ins.systemd.IsActive(name) {
		if err := ins.systemd.Restart(name); err != nil {
			return err
		}
		ins.logger.Info("service restarted", "service", name)
		return nil
	}
	if err := ins.systemd.Start(name); err != nil {
		return err
	}
	ins.logger.Info("service started", "service", name)
	return nil
}

// deactivate stops and disables the service. Failures are logged only, so a
// half-broken unit can still be removed.
func (ins *Installer) deactivate() error {
	name := ins.cfg.ServiceName
	if ins.systemd.IsActive(name) {
		if err := ins.systemd.Stop(name); err != nil {
			ins.logger.Warn("stop service failed", "service", name, "error", err)
		}
	}
	if err := ins.systemd.Disable(name); err != nil {
		ins.logger.Warn("disable service failed", "service", name, "error", err)
	}
	return nil
}

func (ins *Installer) remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	ins.logger.Info("file removed", "path", path)
	return nil
}

func (ins *Installer) purgeDirs() error {
	for _, dir := range []string{ins.cfg.RunDir, ins.cfg.ConfigDir} {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		ins.logger.Info("directory removed", "path", dir)
	}
	return nil
}
