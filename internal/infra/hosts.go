package infra

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// DefaultRedirectIP is the loopback address blocked domains resolve to.
const DefaultRedirectIP = "127.0.0.1"

// HostsFileBlocker implements domain.HostBlocker by editing the hosts file.
//
// Block appends "\n<redirect> <domain>" for each missing domain; Unblock splits
// the content on "\n", drops matching lines and joins the rest back. Applied in
// that order the two are exact inverses, so Unblock(Block(H)) == H.
type HostsFileBlocker struct {
	path     string
	redirect string
	matcher  Matcher
	logger   *zap.Logger
}

// NewHostsFileBlocker creates a blocker for the hosts file at path.
func NewHostsFileBlocker(path, redirect string, mode domain.MatchMode, logger *zap.Logger) *HostsFileBlocker {
	if redirect == "" {
		redirect = DefaultRedirectIP
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostsFileBlocker{
		path:     path,
		redirect: redirect,
		matcher:  NewMatcher(mode),
		logger:   logger,
	}
}

// Path returns the hosts file path.
func (h *HostsFileBlocker) Path() string {
	return h.path
}

// Block appends a redirect entry for every blocklisted domain not already present.
// Nothing is written when every domain is already present.
func (h *HostsFileBlocker) Block(blocklist domain.Blocklist) error {
	content, perm, err := h.read()
	if err != nil {
		return err
	}

	updated := ApplyBlock(content, blocklist, h.redirect, h.matcher)
	if updated == content {
		h.logger.Debug("hosts file already blocked", zap.String("path", h.path))
		return nil
	}

	if err := h.write(updated, perm); err != nil {
		return err
	}
	h.logger.Info("hosts file blocked",
		zap.String("path", h.path),
		zap.Int("domains", len(blocklist)))
	return nil
}

// Unblock removes every line that matches a blocklisted domain.
func (h *HostsFileBlocker) Unblock(blocklist domain.Blocklist) error {
	content, perm, err := h.read()
	if err != nil {
		return err
	}

	updated, removed := ApplyUnblock(content, blocklist, h.matcher)
	if removed == 0 {
		h.logger.Debug("hosts file already unblocked", zap.String("path", h.path))
		return nil
	}

	if err := h.write(updated, perm); err != nil {
		return err
	}
	h.logger.Info("hosts file unblocked",
		zap.String("path", h.path),
		zap.Int("lines_removed", removed))
	return nil
}

// ApplyBlock returns content with a redirect line appended for each missing domain.
func ApplyBlock(content string, blocklist domain.Blocklist, redirect string, m Matcher) string {
	var sb strings.Builder
	sb.WriteString(content)
	for _, d := range blocklist {
		// Check against the original content only, like a single read-then-append pass.
		if m.Present(content, d) {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(redirect)
		sb.WriteString(" ")
		sb.WriteString(d)
	}
	return sb.String()
}

// ApplyUnblock returns content without lines matching any blocklisted domain,
// plus the number of lines dropped.
func ApplyUnblock(content string, blocklist domain.Blocklist, m Matcher) (string, int) {
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		if m.LineMatches(line, blocklist) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), removed
}

func (h *HostsFileBlocker) read() (string, os.FileMode, error) {
	info, err := os.Stat(h.path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat hosts file: %w", err)
	}
	data, err := os.ReadFile(h.path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read hosts file: %w", err)
	}
	return string(data), info.Mode().Perm(), nil
}

// write replaces the hosts file atomically, falling back to an in-place
// overwrite when rename is not possible (bind-mounted or locked hosts files).
func (h *HostsFileBlocker) write(content string, perm os.FileMode) error {
	err := writeFileAtomic(h.path, []byte(content), perm)
	if err == nil {
		return nil
	}

	h.logger.Debug("atomic hosts write failed, writing in place",
		zap.String("path", h.path),
		zap.Error(err))
	if err := os.WriteFile(h.path, []byte(content), perm); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("failed to write hosts file (permission denied, run as root): %w", err)
		}
		return fmt.Errorf("failed to write hosts file: %w", err)
	}
	return nil
}

// Ensure HostsFileBlocker implements domain.HostBlocker.
var _ domain.HostBlocker = (*HostsFileBlocker)(nil)
