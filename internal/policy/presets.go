package policy

import "github.com/eliteGoblin/focusd/site_mon/internal/domain"

// categoryPolicy is a SitePolicy backed by a fixed domain list.
type categoryPolicy struct {
	id      string
	name    string
	domains []string
}

// NewCategoryPolicy creates a preset from a static domain list.
func NewCategoryPolicy(id, name string, domains ...string) SitePolicy {
	return &categoryPolicy{id: id, name: name, domains: domains}
}

func (p *categoryPolicy) ID() string   { return p.id }
func (p *categoryPolicy) Name() string { return p.name }

func (p *categoryPolicy) Domains() []string {
	out := make([]string, len(p.domains))
	copy(out, p.domains)
	return out
}

func builtinPresets() []SitePolicy {
	return []SitePolicy{
		NewCategoryPolicy("default", "Default", domain.DefaultDomains()...),
		NewCategoryPolicy("video", "Video",
			"youtube.com", "www.youtube.com",
			"m.youtube.com",
			"netflix.com", "www.netflix.com",
			"twitch.tv", "www.twitch.tv",
			"tiktok.com", "www.tiktok.com",
			"vimeo.com", "www.vimeo.com",
		),
		NewCategoryPolicy("social_media", "Social media",
			"facebook.com", "www.facebook.com",
			"twitter.com", "www.twitter.com",
			"x.com", "www.x.com",
			"instagram.com", "www.instagram.com",
			"reddit.com", "www.reddit.com",
			"linkedin.com", "www.linkedin.com",
			"pinterest.com", "www.pinterest.com",
			"snapchat.com", "www.snapchat.com",
		),
		NewCategoryPolicy("gaming", "Gaming",
			"store.steampowered.com", "steamcommunity.com",
			"epicgames.com", "www.epicgames.com",
			"roblox.com", "www.roblox.com",
			"battle.net", "www.battle.net",
		),
		NewCategoryPolicy("news", "News",
			"news.ycombinator.com",
			"bbc.com", "www.bbc.com",
			"cnn.com", "www.cnn.com",
			"nytimes.com", "www.nytimes.com",
		),
		NewCategoryPolicy("shopping", "Shopping",
			"amazon.com", "www.amazon.com",
			"ebay.com", "www.ebay.com",
			"aliexpress.com", "www.aliexpress.com",
			"etsy.com", "www.etsy.com",
		),
	}
}
