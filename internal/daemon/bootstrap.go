package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// StartResident spawns `sitemon daemon` from the current executable.
// The child is detached from the parent process (runs independently).
func StartResident() error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	return StartResidentWithPath(executable)
}

// StartResidentWithPath spawns the resident from a specific binary path.
func StartResidentWithPath(binaryPath string) error {
	return residentCommand(binaryPath).Start()
}

func residentCommand(binaryPath string) *exec.Cmd {
	cmd := exec.Command(binaryPath, "daemon")

	// New session, no controlling terminal.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	// Fully detached; the resident logs to its own files.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Env = os.Environ()

	return cmd
}
