// Package model defines proxy definitions and the URL transforms between the
// proxied and canonical forms of a resource.
package model

import (
	"slices"
	"strings"

	"mercator-hq/callisto/pkg/scheme"
)

// Record is the persisted form of a Proxy. Compiled state is never stored.
type Record struct {
	Template      string   `yaml:"template" json:"template"`
	MultiHost     bool     `yaml:"multi_host" json:"multiHost"`
	AutoAssociate bool     `yaml:"auto_associate" json:"autoAssociate"`
	Hosts         []string `yaml:"hosts" json:"hosts"`
}

// Proxy is a proxy definition: a URL template, the canonical hosts it serves
// and its compiled matcher.
//
// A Proxy owned by a registry must only be mutated through the registry, which
// recompiles and reindexes it under its lock.
type Proxy struct {
	Template      string
	MultiHost     bool
	AutoAssociate bool

	// Hosts is ordered and duplicate free. For single-host proxies Hosts[0]
	// is the authoritative canonical host.
	Hosts []string

	matcher *scheme.Matcher
}

// New builds and compiles a Proxy.
func New(template string, multiHost, autoAssociate bool, hosts ...string) (*Proxy, error) {
	p := &Proxy{
		Template:      template,
		MultiHost:     multiHost,
		AutoAssociate: autoAssociate,
	}
	for _, h := range hosts {
		p.AddHost(h)
	}
	if err := p.Compile(); err != nil {
		return nil, err
	}
	return p, nil
}

// FromRecord builds and compiles a Proxy from its persisted form.
func FromRecord(r Record) (*Proxy, error) {
	return New(r.Template, r.MultiHost, r.AutoAssociate, r.Hosts...)
}

// Record returns the persisted form of p.
func (p *Proxy) Record() Record {
	return Record{
		Template:      p.Template,
		MultiHost:     p.MultiHost,
		AutoAssociate: p.AutoAssociate,
		Hosts:         slices.Clone(p.Hosts),
	}
}

// Compile regenerates the matcher from Template and MultiHost. On failure the
// previous matcher is kept and a *scheme.MalformedTemplateError is returned.
func (p *Proxy) Compile() error {
	m, err := scheme.Compile(p.Template, p.MultiHost)
	if err != nil {
		return err
	}
	p.matcher = m
	return nil
}

// SetMatcher installs a matcher compiled elsewhere. It is used by callers that
// compile outside a lock and swap the result in under it.
func (p *Proxy) SetMatcher(m *scheme.Matcher) {
	p.matcher = m
}

// Matcher returns the compiled matcher, or nil if p was never compiled.
func (p *Proxy) Matcher() *scheme.Matcher {
	return p.matcher
}

// Stale reports whether the matcher no longer reflects Template and MultiHost.
func (p *Proxy) Stale() bool {
	return p.matcher == nil ||
		p.matcher.Template() != p.Template ||
		p.matcher.MultiHost() != p.MultiHost
}

// HasHost reports whether host is one of p's canonical hosts.
func (p *Proxy) HasHost(host string) bool {
	return slices.Contains(p.Hosts, NormalizeHost(host))
}

// AddHost appends host if it is not already present. It returns true when
// the host was added.
func (p *Proxy) AddHost(host string) bool {
	host = NormalizeHost(host)
	if host == "" || slices.Contains(p.Hosts, host) {
		return false
	}
	p.Hosts = append(p.Hosts, host)
	return true
}

// RemoveHost drops host from p.Hosts.
func (p *Proxy) RemoveHost(host string) bool {
	host = NormalizeHost(host)
	i := slices.Index(p.Hosts, host)
	if i < 0 {
		return false
	}
	p.Hosts = slices.Delete(p.Hosts, i, i+1)
	return true
}

// NormalizeHost lower-cases a hostname and strips a trailing dot.
func NormalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}
