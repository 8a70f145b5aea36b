package packaging

// SystemdController manages the vipsync unit. Mutating methods are
// idempotent: repeating an operation that is already applied returns nil.
type SystemdController interface {
	// IsAvailable reports whether the host is running under systemd.
	IsAvailable() bool

	// DaemonReload reloads unit files after they change on disk.
	DaemonReload() error

	// Enable enables the named service to start on boot.
	Enable(service string) error

	// Disable disables the named service from starting on boot.
	Disable(service string) error

	// Start starts the named service.
	Start(service string) error

	// Restart restarts the named service.
	Restart(service string) error

	// Stop stops the named service. Returns nil if the service is not running.
	Stop(service string) error

	// IsActive reports whether the named service is currently running.
	IsActive(service string) bool
}

// RootChecker reports whether the process may write system paths.
type RootChecker interface {
	IsRoot() bool
}
