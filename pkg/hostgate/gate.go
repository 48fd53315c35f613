// Package hostgate decides which canonical hosts may be associated with a
// proxy automatically.
package hostgate

import (
	"strings"

	"mercator-hq/callisto/pkg/model"
)

// Pattern matches a hostname either exactly or by domain suffix.
//
// A pattern that starts with a dot is a suffix pattern: ".edu" matches
// "www.example.edu" but not "edu". Any other pattern matches the host itself
// and all of its subdomains: "google.com" matches "google.com" and
// "math.google.com".
type Pattern string

// Matches reports whether host is covered by the pattern.
func (p Pattern) Matches(host string) bool {
	pat := strings.ToLower(string(p))
	if pat == "" {
		return false
	}
	if strings.HasPrefix(pat, ".") {
		return strings.HasSuffix(host, pat)
	}
	return host == pat || strings.HasSuffix(host, "."+pat)
}

// DefaultBlacklist lists hosts that are never auto-associated.
var DefaultBlacklist = []Pattern{
	".edu",
	"google.com",
	"wikipedia.org",
	"doubleclick.net",
}

// DefaultWhitelist lists hosts that are legitimately proxied even though a
// blacklist pattern covers them. The whitelist always wins.
var DefaultWhitelist = []Pattern{
	"scholar.google.com",
	"books.google.com",
}

// Gate is a pure host predicate built from a blacklist and a whitelist.
type Gate struct {
	blacklist []Pattern
	whitelist []Pattern
}

// New returns a Gate using the default lists extended by extraBlack and
// extraWhite.
func New(extraBlack, extraWhite []string) *Gate {
	g := &Gate{
		blacklist: append([]Pattern(nil), DefaultBlacklist...),
		whitelist: append([]Pattern(nil), DefaultWhitelist...),
	}
	for _, p := range extraBlack {
		g.blacklist = append(g.blacklist, Pattern(p))
	}
	for _, p := range extraWhite {
		g.whitelist = append(g.whitelist, Pattern(p))
	}
	return g
}

// Default returns a Gate with only the built-in lists.
func Default() *Gate {
	return New(nil, nil)
}

// IsBlacklisted reports whether host must not be auto-associated.
// Single-label hosts such as "intranet" are always blacklisted unless
// whitelisted.
func (g *Gate) IsBlacklisted(host string) bool {
	host = model.NormalizeHost(host)
	if host == "" {
		return true
	}
	for _, p := range g.whitelist {
		if p.Matches(host) {
			return false
		}
	}
	if !strings.Contains(host, ".") {
		return true
	}
	for _, p := range g.blacklist {
		if p.Matches(host) {
			return true
		}
	}
	return false
}

// IsBlacklisted applies the default gate.
func IsBlacklisted(host string) bool {
	return defaultGate.IsBlacklisted(host)
}

var defaultGate = Default()
