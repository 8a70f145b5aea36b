package packaging

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// systemctlTimeout bounds every systemctl invocation.
const systemctlTimeout = 30 * time.Second

// systemctl implements SystemdController by shelling out to systemctl.
type systemctl struct {
	path    string
	timeout time.Duration
}

// NewSystemdController returns a SystemdController that calls the real systemctl binary.
func NewSystemdController() SystemdController {
	return &systemctl{path: "systemctl", timeout: systemctlTimeout}
}

func (c *systemctl) IsAvailable() bool {
	if _, err := exec.LookPath(c.path); err != nil {
		return false
	}
	// systemctl may be installed in containers that were not booted by systemd.
	_, err := os.Stat("/run/systemd/system")
	return err == nil
}

func (c *systemctl) DaemonReload() error {
	return c.run("daemon-reload")
}

func (c *systemctl) Enable(service string) error {
	return c.run("enable", service)
}

func (c *systemctl) Disable(service string) error {
	return c.run("disable", service)
}

func (c *systemctl) Start(service string) error {
	return c.run("start", service)
}

func (c *systemctl) Restart(service string) error {
	return c.run("restart", service)
}

func (c *systemctl) Stop(service string) error {
	return c.run("stop", service)
}

func (c *systemctl) IsActive(service string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return exec.CommandContext(ctx, c.path, "is-active", "--quiet", service).Run() == nil
}

func (c *systemctl) run(args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, c.path, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("packaging: systemctl %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(output)), err)
	}
	return nil
}

// uidRootChecker implements RootChecker using os.Geteuid.
type uidRootChecker struct{}

// NewRootChecker returns a RootChecker that checks the effective UID of the process.
func NewRootChecker() RootChecker {
	return uidRootChecker{}
}

func (uidRootChecker) IsRoot() bool {
	return os.Geteuid() == 0
}
