package infra

import (
	"strings"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// Matcher decides whether hosts content already carries a domain and which
// lines belong to blocklisted domains.
type Matcher interface {
	// Present reports whether content already has an entry for domain.
	Present(content, domain string) bool

	// LineMatches reports whether a single hosts line refers to any blocklisted domain.
	LineMatches(line string, blocklist domain.Blocklist) bool
}

// NewMatcher returns the matcher for mode. Unknown modes fall back to hostname matching.
func NewMatcher(mode domain.MatchMode) Matcher {
	if mode == domain.MatchSubstring {
		return SubstringMatcher{}
	}
	return HostnameMatcher{}
}

// SubstringMatcher matches domain text anywhere, so "youtube.com" also
// matches "faketube.com"-style neighbours and comments.
type SubstringMatcher struct{}

func (SubstringMatcher) Present(content, d string) bool {
	return strings.Contains(content, d)
}

func (SubstringMatcher) LineMatches(line string, blocklist domain.Blocklist) bool {
	for _, d := range blocklist {
		if strings.Contains(line, d) {
			return true
		}
	}
	return false
}

// HostnameMatcher compares domains against the hostname fields of each
// hosts line, case-insensitively. Comments are ignored.
type HostnameMatcher struct{}

func (HostnameMatcher) Present(content, d string) bool {
	for _, line := range strings.Split(content, "\n") {
		for _, name := range hostnames(line) {
			if strings.EqualFold(name, d) {
				return true
			}
		}
	}
	return false
}

func (HostnameMatcher) LineMatches(line string, blocklist domain.Blocklist) bool {
	for _, name := range hostnames(line) {
		for _, d := range blocklist {
			if strings.EqualFold(name, d) {
				return true
			}
		}
	}
	return false
}

// hostnames returns the names following the address field of a hosts line.
// Whole-line and inline comments are stripped first.
func hostnames(line string) []string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil
	}
	return fields[1:]
}
