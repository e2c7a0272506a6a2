package domain

import "time"

// ConfigStore persists the duration and blocklist.
// Implementation: two-part plain text file (duration line, then one domain per line).
type ConfigStore interface {
	// Load returns the stored config, or defaults when the file is missing or empty.
	// A non-nil error is returned alongside defaults when the file exists but cannot be read.
	Load() (Config, error)

	// Save overwrites the config file.
	Save(cfg Config) error

	// Path returns the config file path.
	Path() string
}

// HostBlocker applies and removes redirect entries in the hosts file.
type HostBlocker interface {
	// Block appends a redirect line for every domain not already present.
	Block(blocklist Blocklist) error

	// Unblock removes every line matching a blocklisted domain.
	Unblock(blocklist Blocklist) error

	// Path returns the hosts file path.
	Path() string
}

// Notifier delivers desktop notifications.
type Notifier interface {
	Notify(n Notification) error
}

// Surface receives display updates from the controller.
type Surface interface {
	Publish(s Snapshot)
}

// SessionStore keeps a record of temporary unblocks.
// Implementation: SQLCipher encrypted database.
type SessionStore interface {
	// Begin records a newly started session.
	Begin(s Session) error

	// Complete marks a session as finished.
	Complete(id string, endedAt time.Time) error

	// List returns the most recent sessions first.
	List(limit int) ([]Session, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Terminate asks a process to exit (SIGTERM).
	Terminate(pid int) error

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// InstanceRegistry lets CLI invocations discover the resident process.
// Implementation: hidden JSON file in the data directory.
type InstanceRegistry interface {
	// Register records the resident's PID and control socket.
	Register(entry InstanceEntry) error

	// Get returns the registered entry, or nil if none.
	Get() (*InstanceEntry, error)

	// IsAlive checks whether the registered PID is still running.
	IsAlive() (bool, error)

	// Clear removes the registry file.
	Clear() error

	// GetRegistryPath returns the registry file path (for tests).
	GetRegistryPath() string
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// AutostartManager installs the resident as a login or boot service.
// Implementation: launchd plist on macOS, systemd unit on Linux.
type AutostartManager interface {
	// Install writes and loads the service definition.
	Install(execPath string) error

	// Uninstall unloads and removes the service definition.
	Uninstall() error

	// IsInstalled checks if the service definition exists.
	IsInstalled() bool

	// NeedsUpdate checks if the installed definition differs from the expected one.
	NeedsUpdate(execPath string) bool

	// Path returns the service definition path.
	Path() string
}
