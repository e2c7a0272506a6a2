package infra

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs without root; the hosts file must be writable by the user.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root and can edit the system hosts file.
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds default paths for an execution mode.
type ExecModeConfig struct {
	Mode      ExecMode
	DataDir   string // config, history, registry and socket live here
	HostsFile string
	IsRoot    bool
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return &ExecModeConfig{
			Mode:      ExecModeSystem,
			DataDir:   "/var/lib/sitemon",
			HostsFile: DefaultHostsPath(runtime.GOOS),
			IsRoot:    true,
		}
	}
	return GetUserModeConfig()
}

// GetUserModeConfig returns user mode paths regardless of current euid.
// Under sudo the invoking user's home directory is used.
func GetUserModeConfig() *ExecModeConfig {
	return &ExecModeConfig{
		Mode:      ExecModeUser,
		DataDir:   filepath.Join(GetRealUserHome(), ".sitemon"),
		HostsFile: DefaultHostsPath(runtime.GOOS),
		IsRoot:    os.Geteuid() == 0,
	}
}

// DefaultHostsPath returns the system hosts file location for goos.
func DefaultHostsPath(goos string) string {
	if goos == "windows" {
		return `C:\Windows\System32\drivers\etc\hosts`
	}
	return "/etc/hosts"
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
