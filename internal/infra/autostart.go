package infra

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// AutostartLabel names the launchd job and the systemd unit.
const AutostartLabel = "com.focusd.sitemon"

// launchd plist: user LaunchAgent or root LaunchDaemon, both restart on crash.
const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>daemon</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>
{{- if not .System}}

    <key>ProcessType</key>
    <string>Interactive</string>
{{- end}}

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=sitemon website blocker
After=network.target

[Service]
ExecStart={{.ExecutablePath}} daemon
Restart=on-failure
RestartSec=10
StandardOutput=append:{{.LogPath}}
StandardError=append:{{.ErrorLogPath}}

[Install]
WantedBy={{if .System}}multi-user.target{{else}}default.target{{end}}
`

type unitConfig struct {
	Label          string
	ExecutablePath string
	LogPath        string
	ErrorLogPath   string
	System         bool
}

// ServiceAutostart installs sitemon as a login/boot service: a launchd job
// on darwin, a systemd unit on linux.
type ServiceAutostart struct {
	goos    string
	mode    ExecMode
	dir     string
	path    string
	dataDir string
	runner  CommandRunner
}

// NewServiceAutostart creates an autostart manager for the current platform
// and execution mode.
func NewServiceAutostart(config *ExecModeConfig) *ServiceAutostart {
	return NewServiceAutostartWithDeps(runtime.GOOS, config, GetRealUserHome(), &RealCommandRunner{})
}

// NewServiceAutostartWithDeps creates an autostart manager with explicit
// platform, home directory and command runner (for testing).
func NewServiceAutostartWithDeps(goos string, config *ExecModeConfig, home string, runner CommandRunner) *ServiceAutostart {
	a := &ServiceAutostart{
		goos:    goos,
		mode:    config.Mode,
		dataDir: config.DataDir,
		runner:  runner,
	}
	system := config.Mode == ExecModeSystem

	switch {
	case goos == "darwin" && system:
		a.dir = "/Library/LaunchDaemons"
		a.path = filepath.Join(a.dir, AutostartLabel+".plist")
	case goos == "darwin":
		a.dir = filepath.Join(home, "Library/LaunchAgents")
		a.path = filepath.Join(a.dir, AutostartLabel+".plist")
	case system:
		a.dir = "/etc/systemd/system"
		a.path = filepath.Join(a.dir, "sitemon.service")
	default:
		a.dir = filepath.Join(home, ".config/systemd/user")
		a.path = filepath.Join(a.dir, "sitemon.service")
	}
	return a
}

// Path returns the service file path.
func (a *ServiceAutostart) Path() string {
	return a.path
}

// IsInstalled checks if the service file exists.
func (a *ServiceAutostart) IsInstalled() bool {
	_, err := os.Stat(a.path)
	return err == nil
}

// NeedsUpdate checks if the service file exists with different content.
func (a *ServiceAutostart) NeedsUpdate(execPath string) bool {
	if !a.IsInstalled() {
		return false
	}
	current, err := os.ReadFile(a.path)
	if err != nil {
		return true
	}
	expected, err := a.render(execPath)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

// Install writes the service file and loads it.
func (a *ServiceAutostart) Install(execPath string) error {
	if a.goos != "darwin" && a.goos != "linux" {
		return fmt.Errorf("autostart not supported on %s", a.goos)
	}
	content, err := a.render(execPath)
	if err != nil {
		return err
	}

	if a.IsInstalled() {
		_ = a.unload()
	}
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return err
	}
	if err := writeFileAtomic(a.path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", a.path, err)
	}
	return a.load()
}

// Uninstall unloads and removes the service file.
func (a *ServiceAutostart) Uninstall() error {
	_ = a.unload()
	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if a.goos == "linux" {
		return a.systemctl("daemon-reload")
	}
	return nil
}

func (a *ServiceAutostart) render(execPath string) ([]byte, error) {
	tmplStr := systemdTemplate
	if a.goos == "darwin" {
		tmplStr = launchdTemplate
	}

	config := unitConfig{
		Label:          AutostartLabel,
		ExecutablePath: execPath,
		LogPath:        filepath.Join(a.dataDir, "sitemon.stdout.log"),
		ErrorLogPath:   filepath.Join(a.dataDir, "sitemon.stderr.log"),
		System:         a.mode == ExecModeSystem,
	}

	tmpl, err := template.New("unit").Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("failed to execute service template: %w", err)
	}
	return buf.Bytes(), nil
}

func (a *ServiceAutostart) load() error {
	if a.goos == "darwin" {
		return a.runner.Run("launchctl", "load", a.path)
	}
	if err := a.systemctl("daemon-reload"); err != nil {
		return err
	}
	return a.systemctl("enable", "sitemon.service")
}

func (a *ServiceAutostart) unload() error {
	if a.goos == "darwin" {
		return a.runner.Run("launchctl", "unload", a.path)
	}
	return a.systemctl("disable", "sitemon.service")
}

func (a *ServiceAutostart) systemctl(args ...string) error {
	if a.mode != ExecModeSystem {
		args = append([]string{"--user"}, args...)
	}
	return a.runner.Run("systemctl", args...)
}

// Ensure ServiceAutostart implements domain.AutostartManager.
var _ domain.AutostartManager = (*ServiceAutostart)(nil)
