package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

func TestFileRegistry_RegisterAndGet(t *testing.T) {
	registryPath := filepath.Join(t.TempDir(), ".test_registry")
	registry := NewFileRegistryWithPath(registryPath, newMockProcessManager())

	err := registry.Register(domain.InstanceEntry{
		PID:        12345,
		Socket:     "/tmp/sitemon.sock",
		AppVersion: "v1.2.3",
	})
	require.NoError(t, err)

	entry, err := registry.Get()
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 12345, entry.PID)
	assert.Equal(t, "/tmp/sitemon.sock", entry.Socket)
	assert.Equal(t, "v1.2.3", entry.AppVersion)
	assert.Equal(t, 1, entry.Version)
	assert.NotZero(t, entry.StartedAt)
	assert.Contains(t, []string{"user", "system"}, entry.Mode)

	info, err := os.Stat(registryPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileRegistry_RegisterReplacesPreviousEntry(t *testing.T) {
	registry := NewFileRegistryWithPath(filepath.Join(t.TempDir(), ".test_registry"), newMockProcessManager())

	require.NoError(t, registry.Register(domain.InstanceEntry{PID: 1, Socket: "a.sock"}))
	require.NoError(t, registry.Register(domain.InstanceEntry{PID: 2, Socket: "b.sock"}))

	entry, err := registry.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, entry.PID)
	assert.Equal(t, "b.sock", entry.Socket)
}

func TestFileRegistry_GetMissingReturnsNil(t *testing.T) {
	registry := NewFileRegistryWithPath(filepath.Join(t.TempDir(), ".missing"), newMockProcessManager())

	entry, err := registry.Get()
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestFileRegistry_GetCorruptFile(t *testing.T) {
	registryPath := filepath.Join(t.TempDir(), ".test_registry")
	require.NoError(t, os.WriteFile(registryPath, []byte("{not json"), 0600))

	_, err := NewFileRegistryWithPath(registryPath, newMockProcessManager()).Get()
	assert.Error(t, err)
}

func TestFileRegistry_IsAlive(t *testing.T) {
	pm := newMockProcessManager()
	registry := NewFileRegistryWithPath(filepath.Join(t.TempDir(), ".test_registry"), pm)

	alive, err := registry.IsAlive()
	require.NoError(t, err)
	assert.False(t, alive, "nothing registered")

	require.NoError(t, registry.Register(domain.InstanceEntry{PID: 4242}))

	pm.SetRunning(4242, true)
	alive, err = registry.IsAlive()
	require.NoError(t, err)
	assert.True(t, alive)

	pm.SetRunning(4242, false)
	alive, err = registry.IsAlive()
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestFileRegistry_Clear(t *testing.T) {
	registry := NewFileRegistryWithPath(filepath.Join(t.TempDir(), ".test_registry"), newMockProcessManager())
	require.NoError(t, registry.Register(domain.InstanceEntry{PID: 12345}))

	require.NoError(t, registry.Clear())

	entry, err := registry.Get()
	require.NoError(t, err)
	assert.Nil(t, entry)

	assert.NoError(t, registry.Clear(), "clearing twice is fine")
}

func TestNewFileRegistry_HiddenPathInDataDir(t *testing.T) {
	dir := t.TempDir()
	registry := NewFileRegistry(dir, newMockProcessManager())

	path := registry.GetRegistryPath()
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, `^\.sitemon_instance_[0-9a-f]{8}$`, filepath.Base(path))
}

func TestProcessManager_CurrentProcess(t *testing.T) {
	pm := NewProcessManager()

	assert.Equal(t, os.Getpid(), pm.GetCurrentPID())
	assert.True(t, pm.IsRunning(os.Getpid()))
	assert.False(t, pm.IsRunning(0))
	assert.False(t, pm.IsRunning(-1))
}
