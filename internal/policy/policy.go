// Package policy holds named domain presets that can be added to the blocklist in one go.
package policy

import "github.com/eliteGoblin/focusd/site_mon/internal/domain"

// SitePolicy is a named group of domains.
type SitePolicy interface {
	// ID returns unique identifier (e.g., "video", "social_media").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// Domains returns the hostnames to block, www variants included.
	Domains() []string
}

// ToBlocklist converts a SitePolicy to a normalized blocklist.
func ToBlocklist(p SitePolicy) domain.Blocklist {
	return domain.NewBlocklist(p.Domains()...)
}
