package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// TextConfigStore implements domain.ConfigStore on a line-oriented text file:
// line 1 is the duration in minutes, every following non-blank line is a domain.
type TextConfigStore struct {
	path string
}

// NewTextConfigStore creates a config store backed by path.
func NewTextConfigStore(path string) *TextConfigStore {
	return &TextConfigStore{path: path}
}

// Path returns the config file path.
func (s *TextConfigStore) Path() string {
	return s.path
}

// Load reads the config file. A missing or empty file yields defaults with no error.
// Read failures yield defaults plus the error so the caller can decide how loud to be.
func (s *TextConfigStore) Load() (domain.Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.DefaultConfig(), nil
		}
		return domain.DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(string(data)), nil
}

// Save overwrites the config file with the duration followed by one domain per line.
func (s *TextConfigStore) Save(cfg domain.Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := writeFileAtomic(s.path, []byte(FormatConfig(cfg)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ParseConfig decodes config text. Lines are trimmed and blank lines ignored.
// A file with only a duration line keeps the default blocklist.
func ParseConfig(text string) domain.Config {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return domain.DefaultConfig()
	}

	cfg := domain.Config{DurationMinutes: lines[0]}
	cfg.Blocklist = domain.NewBlocklist(lines[1:]...)
	if len(cfg.Blocklist) == 0 {
		cfg.Blocklist = domain.NewBlocklist(domain.DefaultDomains()...)
	}
	return cfg
}

// FormatConfig encodes config text. An empty duration is written as the default.
func FormatConfig(cfg domain.Config) string {
	duration := strings.TrimSpace(cfg.DurationMinutes)
	if duration == "" {
		duration = domain.DefaultDurationMinutes
	}

	var sb strings.Builder
	sb.WriteString(duration)
	sb.WriteString("\n")
	for _, d := range cfg.Blocklist {
		sb.WriteString(d)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Ensure TextConfigStore implements domain.ConfigStore.
var _ domain.ConfigStore = (*TextConfigStore)(nil)
