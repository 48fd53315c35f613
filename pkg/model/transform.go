package model

import (
	"fmt"
	"net/url"
	"strings"

	"mercator-hq/callisto/pkg/scheme"
)

// ConversionError reports a URL that lacks the components a transform needs.
// Callers treat it as "not proxied".
type ConversionError struct {
	URL    string
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot convert %q: %s: %v", e.URL, e.Reason, e.Cause)
	}
	return fmt.Sprintf("cannot convert %q: %s", e.URL, e.Reason)
}

// Unwrap returns the underlying cause error.
func (e *ConversionError) Unwrap() error {
	return e.Cause
}

// Match matches rawURL against p's compiled template.
func (p *Proxy) Match(rawURL string) (scheme.Groups, bool) {
	if p.Stale() {
		return nil, false
	}
	return p.matcher.Match(rawURL)
}

// ToCanonical rebuilds the canonical URL from groups captured by p's own
// matcher. The result is always an http:// URL. Its output is undefined for
// groups that did not come from a successful Match.
func (p *Proxy) ToCanonical(groups scheme.Groups) (string, error) {
	m := p.matcher
	if p.Stale() {
		return "", &ConversionError{URL: p.Template, Reason: "proxy is not compiled"}
	}

	var host string
	if p.MultiHost && m.Has(scheme.Host) {
		host = NormalizeHost(groups[scheme.Host])
	} else if len(p.Hosts) > 0 {
		host = p.Hosts[0]
	}
	if host == "" {
		return "", &ConversionError{URL: p.Template, Reason: "no canonical host"}
	}

	var path string
	switch {
	case m.Has(scheme.Path):
		path = groups[scheme.Path]
	case m.Has(scheme.Dir) || m.Has(scheme.File):
		if dir := strings.TrimSuffix(groups[scheme.Dir], "/"); dir != "" {
			path = dir + "/" + groups[scheme.File]
		} else {
			path = groups[scheme.File]
		}
	case m.Has(scheme.Any):
		path = groups[scheme.Any]
	}

	return "http://" + host + "/" + strings.TrimPrefix(path, "/"), nil
}

// ToProxied renders rawURL through p's template.
func (p *Proxy) ToProxied(rawURL string) (string, error) {
	if p.Stale() {
		return "", &ConversionError{URL: rawURL, Reason: "proxy is not compiled"}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &ConversionError{URL: rawURL, Reason: "unparsable URL", Cause: err}
	}
	if u.Hostname() == "" {
		return "", &ConversionError{URL: rawURL, Reason: "URL has no host"}
	}

	m := p.matcher
	path := strings.TrimPrefix(u.EscapedPath(), "/")
	var query string
	if u.RawQuery != "" {
		query = "?" + u.RawQuery
	}

	values := make(scheme.Groups, len(m.Order()))
	if m.Has(scheme.Host) {
		values[scheme.Host] = NormalizeHost(u.Hostname())
	}
	switch {
	case m.Has(scheme.Path):
		values[scheme.Path] = path + query
	case m.Has(scheme.Dir) || m.Has(scheme.File):
		dir, file := "", path
		if i := strings.LastIndex(path, "/"); i >= 0 {
			dir, file = path[:i], path[i+1:]
		}
		values[scheme.Dir] = dir
		values[scheme.File] = file + query
	case m.Has(scheme.Any):
		values[scheme.Any] = path + query
	}

	return m.Expand(values), nil
}
