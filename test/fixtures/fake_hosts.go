// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultHostsContent mimics a stock hosts file.
const DefaultHostsContent = `##
# Host Database
##
127.0.0.1	localhost
255.255.255.255	broadcasthost
::1             localhost
`

// FakeHosts is a hosts file in a temp directory plus the sitemon data dir next to it.
type FakeHosts struct {
	Dir     string
	Path    string
	DataDir string
	Initial string
}

// NewFakeHosts creates the hosts file under dir with content.
func NewFakeHosts(dir, content string) (*FakeHosts, error) {
	f := &FakeHosts{
		Dir:     dir,
		Path:    filepath.Join(dir, "hosts"),
		DataDir: filepath.Join(dir, "sitemon"),
		Initial: content,
	}
	if err := os.WriteFile(f.Path, []byte(content), 0644); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(f.DataDir, 0700); err != nil {
		return nil, err
	}
	return f, nil
}

// Read returns the current hosts file content.
func (f *FakeHosts) Read() (string, error) {
	data, err := os.ReadFile(f.Path)
	return string(data), err
}

// MustRead is Read that panics on error.
func (f *FakeHosts) MustRead() string {
	s, err := f.Read()
	if err != nil {
		panic(err)
	}
	return s
}

// IsBlocked reports whether a "<ip> <domain>" line is present.
func (f *FakeHosts) IsBlocked(ip, domain string) bool {
	want := fmt.Sprintf("%s %s", ip, domain)
	for _, line := range strings.Split(f.MustRead(), "\n") {
		if strings.TrimSpace(line) == want {
			return true
		}
	}
	return false
}

// ConfigPath is where the config file lives.
func (f *FakeHosts) ConfigPath() string {
	return filepath.Join(f.DataDir, "config.txt")
}

// WriteConfig writes a config file with the two-part text format.
func (f *FakeHosts) WriteConfig(duration string, domains ...string) error {
	content := duration + "\n" + strings.Join(domains, "\n")
	if len(domains) > 0 {
		content += "\n"
	}
	return os.WriteFile(f.ConfigPath(), []byte(content), 0644)
}
