package infra

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs    map[int]bool
	terminatedPIDs []int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
	}
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) Terminate(pid int) error {
	m.terminatedPIDs = append(m.terminatedPIDs, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// mockCommandRunner records commands instead of executing them
type mockCommandRunner struct {
	mu       sync.Mutex
	commands []string
	runErr   error
}

func (m *mockCommandRunner) Run(name string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, fmt.Sprintf("%s %s", name, strings.Join(args, " ")))
	return m.runErr
}

func (m *mockCommandRunner) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.commands))
	copy(out, m.commands)
	return out
}
