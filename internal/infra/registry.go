package infra

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// registryVersion is bumped when InstanceEntry changes shape.
const registryVersion = 1

// FileRegistry implements domain.InstanceRegistry using a hidden JSON file.
// The filename is derived from a hash of the hostname.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileRegistry creates a registry inside dataDir.
func NewFileRegistry(dataDir string, pm domain.ProcessManager) domain.InstanceRegistry {
	hostname, _ := os.Hostname()
	hash := md5.Sum([]byte("sitemon-registry-" + hostname))
	filename := ".sitemon_instance_" + hex.EncodeToString(hash[:])[:8]

	return &FileRegistry{
		path:           filepath.Join(dataDir, filename),
		processManager: pm,
	}
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string, pm domain.ProcessManager) domain.InstanceRegistry {
	return &FileRegistry{
		path:           path,
		processManager: pm,
	}
}

// GetRegistryPath returns the hidden registry file path.
func (r *FileRegistry) GetRegistryPath() string {
	return r.path
}

// Register records the resident process. The write happens under an exclusive
// flock so two residents starting together cannot interleave.
func (r *FileRegistry) Register(entry domain.InstanceEntry) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	lockFile, err := os.OpenFile(r.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	entry.Version = registryVersion
	if entry.StartedAt == 0 {
		entry.StartedAt = time.Now().Unix()
	}
	if entry.Mode == "" {
		if os.Geteuid() == 0 {
			entry.Mode = "system"
		} else {
			entry.Mode = "user"
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return writeFileAtomic(r.path, data, 0600)
}

// Get returns the registered entry, or nil when nothing is registered.
func (r *FileRegistry) Get() (*domain.InstanceEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.InstanceEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt registry file: %w", err)
	}
	return &entry, nil
}

// IsAlive reports whether the registered PID is still running.
func (r *FileRegistry) IsAlive() (bool, error) {
	entry, err := r.Get()
	if err != nil {
		return false, err
	}
	if entry == nil || entry.PID == 0 {
		return false, nil
	}
	return r.processManager.IsRunning(entry.PID), nil
}

// Clear removes the registry file. A missing file is not an error.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.InstanceRegistry.
var _ domain.InstanceRegistry = (*FileRegistry)(nil)
