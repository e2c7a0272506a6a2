package infra

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// CommandNotifier implements domain.Notifier by shelling out to the
// platform's notification tool: osascript on macOS, notify-send on Linux.
type CommandNotifier struct {
	goos   string
	runner CommandRunner
}

// NewCommandNotifier creates a notifier for the current platform.
func NewCommandNotifier() *CommandNotifier {
	return &CommandNotifier{goos: runtime.GOOS, runner: &RealCommandRunner{}}
}

// NewCommandNotifierWithDeps creates a notifier with injectable dependencies (for testing)
func NewCommandNotifierWithDeps(goos string, runner CommandRunner) *CommandNotifier {
	return &CommandNotifier{goos: goos, runner: runner}
}

// Notify shows n and returns once the tool has exited.
func (c *CommandNotifier) Notify(n domain.Notification) error {
	switch c.goos {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s",
			appleScriptQuote(n.Message), appleScriptQuote(n.Title))
		if err := c.runner.Run("osascript", "-e", script); err != nil {
			return fmt.Errorf("osascript notification failed: %w", err)
		}
		return nil
	case "linux":
		args := []string{}
		if n.AppName != "" {
			args = append(args, "-a", n.AppName)
		}
		if n.Timeout > 0 {
			args = append(args, "-t", strconv.FormatInt(n.Timeout.Milliseconds(), 10))
		}
		args = append(args, n.Title, n.Message)
		if err := c.runner.Run("notify-send", args...); err != nil {
			return fmt.Errorf("notify-send failed: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("notifications not supported on %s", c.goos)
	}
}

// appleScriptQuote renders s as an AppleScript string literal.
func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// Ensure CommandNotifier implements domain.Notifier.
var _ domain.Notifier = (*CommandNotifier)(nil)
