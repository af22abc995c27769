// Package sites holds the fixed list of tracked doomscroll sites and the
// hostname matcher used to map a tab URL onto one of them.
package sites

import (
	"net/url"
	"strings"
)

var tracked = []string{
	"youtube.com",
	"reddit.com",
	"x.com",
	"twitter.com",
	"facebook.com",
	"instagram.com",
	"tiktok.com",
}

// Tracked returns a copy of the tracked site list in configuration order.
func Tracked() []string {
	out := make([]string, len(tracked))
	copy(out, tracked)
	return out
}

// Match returns the tracked site that hostname belongs to. A hostname matches
// a site when it equals it or ends with "." + site. The first entry in
// configuration order wins.
func Match(hostname string) (string, bool) {
	return matchIn(tracked, hostname)
}

func matchIn(list []string, hostname string) (string, bool) {
	if hostname == "" {
		return "", false
	}
	for _, site := range list {
		if hostname == site || strings.HasSuffix(hostname, "."+site) {
			return site, true
		}
	}
	return "", false
}

// MatchURL parses raw and matches its hostname. Unparseable URLs and URLs
// without a host never match.
func MatchURL(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	return Match(u.Hostname())
}
