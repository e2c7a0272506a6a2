// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// BlockState tells whether redirect entries are currently applied to the hosts file.
type BlockState string

const (
	StateBlocked   BlockState = "blocked"
	StateUnblocked BlockState = "unblocked"
)

// TimerState is the countdown lifecycle: idle -> running -> idle.
type TimerState string

const (
	TimerIdle    TimerState = "idle"
	TimerRunning TimerState = "running"
)

// MatchMode selects how blocklisted domains are matched against hosts file content.
type MatchMode string

const (
	// MatchHostname compares against the hostname fields of each hosts line.
	MatchHostname MatchMode = "hostname"
	// MatchSubstring treats any occurrence of the domain text as a match.
	MatchSubstring MatchMode = "substring"
)

// DefaultDurationMinutes is the unblock duration used when no config exists.
const DefaultDurationMinutes = "15"

// DefaultDomains returns the blocklist used when no config exists.
func DefaultDomains() []string {
	return []string{
		"youtube.com",
		"www.youtube.com",
		"instagram.com",
		"www.instagram.com",
	}
}

// Blocklist is an ordered set of domain names. Insertion order is kept for display.
type Blocklist []string

// NewBlocklist builds a blocklist from raw entries, trimming whitespace and
// dropping blanks and duplicates.
func NewBlocklist(domains ...string) Blocklist {
	b := make(Blocklist, 0, len(domains))
	for _, d := range domains {
		b.Add(d)
	}
	return b
}

// Contains reports whether the domain is already in the list.
func (b Blocklist) Contains(domain string) bool {
	for _, d := range b {
		if d == domain {
			return true
		}
	}
	return false
}

// Add appends a trimmed domain. Returns false for blank or duplicate entries.
func (b *Blocklist) Add(domain string) bool {
	domain = strings.TrimSpace(domain)
	if domain == "" || b.Contains(domain) {
		return false
	}
	*b = append(*b, domain)
	return true
}

// Clone returns an independent copy.
func (b Blocklist) Clone() Blocklist {
	out := make(Blocklist, len(b))
	copy(out, b)
	return out
}

// Equal reports whether both lists hold the same domains in the same order.
func (b Blocklist) Equal(other Blocklist) bool {
	if len(b) != len(other) {
		return false
	}
	for i := range b {
		if b[i] != other[i] {
			return false
		}
	}
	return true
}

// Config is the persisted user state: last unblock duration and the blocklist.
type Config struct {
	DurationMinutes string
	Blocklist       Blocklist
}

// DefaultConfig returns the config used when the config file is missing or empty.
func DefaultConfig() Config {
	return Config{
		DurationMinutes: DefaultDurationMinutes,
		Blocklist:       NewBlocklist(DefaultDomains()...),
	}
}

// Snapshot is what the interactive surface displays.
// Published by the controller after every state change and every tick.
type Snapshot struct {
	BlockState       BlockState `json:"block_state"`
	TimerState       TimerState `json:"timer_state"`
	Remaining        string     `json:"remaining"` // MM:SS
	RemainingSeconds int        `json:"remaining_seconds"`
	DurationMinutes  string     `json:"duration_minutes"`
	Domains          []string   `json:"domains"`
	Visible          bool       `json:"visible"`
	LastError        string     `json:"last_error,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Session records one temporary unblock.
type Session struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int       `json:"duration_seconds"`
	EndedAt         time.Time `json:"ended_at,omitempty"`
	Completed       bool      `json:"completed"`
}

// InstanceEntry describes the running resident process.
// Persisted to a hidden file so CLI invocations can find it.
type InstanceEntry struct {
	Version    int    `json:"version"`
	PID        int    `json:"pid"`
	Socket     string `json:"socket"`
	StartedAt  int64  `json:"started_at"`
	Mode       string `json:"mode,omitempty"` // "user" or "system"
	AppVersion string `json:"app_version,omitempty"`
}

// Notification is a fire-and-forget desktop message.
type Notification struct {
	Title   string
	Message string
	AppName string
	Timeout time.Duration
}

// FormatClock renders seconds as zero-padded MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
