package model

import (
	"errors"
	"testing"

	"mercator-hq/callisto/pkg/scheme"
)

func mustProxy(t *testing.T, template string, multiHost bool, hosts ...string) *Proxy {
	t.Helper()
	p, err := New(template, multiHost, false, hosts...)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", template, err)
	}
	return p
}

func canonicalize(t *testing.T, p *Proxy, rawURL string) string {
	t.Helper()
	groups, ok := p.Match(rawURL)
	if !ok {
		t.Fatalf("%q does not match %q", rawURL, p.Template)
	}
	got, err := p.ToCanonical(groups)
	if err != nil {
		t.Fatalf("ToCanonical failed: %v", err)
	}
	return got
}

func TestToCanonical(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		multiHost bool
		hosts     []string
		url       string
		want      string
	}{
		{
			name:     "single host path",
			template: "https://proxy.example.com/%p",
			hosts:    []string{"journal.example.org"},
			url:      "https://proxy.example.com/articles/1",
			want:     "http://journal.example.org/articles/1",
		},
		{
			name:      "host first arbitrary span",
			template:  "https://%h.proxy.example.com/%a",
			multiHost: true,
			url:       "https://journal.example.org.proxy.example.com/abstract",
			want:      "http://journal.example.org/abstract",
		},
		{
			name:     "directory and file",
			template: "https://proxy.example.com:2048/%d/%f",
			hosts:    []string{"journal.example.org"},
			url:      "https://proxy.example.com:2048/volume/3/issue.html",
			want:     "http://journal.example.org/volume/3/issue.html",
		},
		{
			name:     "empty directory omitted",
			template: "https://proxy.example.com:2048/%d/%f",
			hosts:    []string{"journal.example.org"},
			url:      "https://proxy.example.com:2048//index.html",
			want:     "http://journal.example.org/index.html",
		},
		{
			name:      "query is kept",
			template:  "http://%h.proxy.example.edu/%p",
			multiHost: true,
			url:       "http://journal.example.org.proxy.example.edu/search?q=go",
			want:      "http://journal.example.org/search?q=go",
		},
		{
			name:      "vpn gateway",
			template:  "https://vpn.example.edu/,DanaInfo=%h,SSL+%p",
			multiHost: true,
			url:       "https://vpn.example.edu/,DanaInfo=journal.example.org,SSL+a/b.pdf",
			want:      "http://journal.example.org/a/b.pdf",
		},
		{
			name:      "vpn gateway directory before token",
			template:  "https://vpn.example.edu/%d,DanaInfo=%h%a+%f",
			multiHost: true,
			url:       "https://vpn.example.edu/doi/abs/,DanaInfo=pubs.acs.org,SSL+10.1021",
			want:      "http://pubs.acs.org/doi/abs/10.1021",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustProxy(t, tt.template, tt.multiHost, tt.hosts...)
			if got := canonicalize(t, p, tt.url); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestToCanonical_NoHost(t *testing.T) {
	p := mustProxy(t, "https://proxy.example.com/%p", false)
	groups, ok := p.Match("https://proxy.example.com/x")
	if !ok {
		t.Fatal("expected match")
	}
	_, err := p.ToCanonical(groups)
	var ce *ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
}

func TestToProxied(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		multiHost bool
		url       string
		want      string
	}{
		{
			name:     "path",
			template: "https://proxy.example.com/%p",
			url:      "http://journal.example.org/articles/1?page=2",
			want:     "https://proxy.example.com/articles/1?page=2",
		},
		{
			name:      "host",
			template:  "https://%h.proxy.example.com/%p",
			multiHost: true,
			url:       "https://Journal.Example.org/a",
			want:      "https://journal.example.org.proxy.example.com/a",
		},
		{
			name:     "directory and file",
			template: "https://proxy.example.com/%d/%f",
			url:      "http://journal.example.org/a/b/c.html",
			want:     "https://proxy.example.com/a/b/c.html",
		},
		{
			name:     "file template reordered",
			template: "https://proxy.example.com/get?file=%f&dir=%d",
			url:      "http://journal.example.org/a/b/c.html",
			want:     "https://proxy.example.com/get?file=c.html&dir=a/b",
		},
		{
			name:      "escaped percent survives",
			template:  "https://%h.proxy.example.com/100%%/%p",
			multiHost: true,
			url:       "http://journal.example.org/x",
			want:      "https://journal.example.org.proxy.example.com/100%/x",
		},
		{
			name:      "captured span left empty",
			template:  "https://vpn.example.edu/%d,DanaInfo=%h%a+%f",
			multiHost: true,
			url:       "http://pubs.acs.org/doi/abs/10.1021",
			want:      "https://vpn.example.edu/doi/abs,DanaInfo=pubs.acs.org+10.1021",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustProxy(t, tt.template, tt.multiHost, "journal.example.org")
			got, err := p.ToProxied(tt.url)
			if err != nil {
				t.Fatalf("ToProxied failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestToProxied_ConversionError(t *testing.T) {
	p := mustProxy(t, "https://proxy.example.com/%p", false, "journal.example.org")

	for _, raw := range []string{"/relative/only", "http://%zz", "mailto:someone"} {
		_, err := p.ToProxied(raw)
		var ce *ConversionError
		if !errors.As(err, &ce) {
			t.Errorf("ToProxied(%q): expected ConversionError, got %v", raw, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		template  string
		multiHost bool
		urls      []string
	}{
		{
			template: "https://proxy.example.com/%p",
			urls: []string{
				"https://proxy.example.com/articles/1",
				"https://proxy.example.com/",
				"https://proxy.example.com/a?b=c",
			},
		},
		{
			template:  "https://%h.proxy.example.com/%a",
			multiHost: true,
			urls:      []string{"https://journal.example.org.proxy.example.com/abstract"},
		},
		{
			template: "http://proxy.example.com:2050/%d/%f",
			urls: []string{
				"http://proxy.example.com:2050/a/b/c.html",
				"http://proxy.example.com:2050//c.html",
			},
		},
		{
			template:  "https://vpn.example.edu/,DanaInfo=%h,SSL+%p",
			multiHost: true,
			urls:      []string{"https://vpn.example.edu/,DanaInfo=www.example.com,SSL+doc/x.pdf"},
		},
	}

	for _, tt := range tests {
		p := mustProxy(t, tt.template, tt.multiHost, "journal.example.org")
		for _, raw := range tt.urls {
			canonical := canonicalize(t, p, raw)

			proxied, err := p.ToProxied(canonical)
			if err != nil {
				t.Fatalf("ToProxied(%q) failed: %v", canonical, err)
			}
			if _, ok := p.Match(proxied); !ok {
				t.Fatalf("%q does not re-match %q", proxied, tt.template)
			}
			if again := canonicalize(t, p, proxied); again != canonical {
				t.Errorf("round trip of %q: %q != %q", raw, again, canonical)
			}
		}
	}
}

func TestMatch_Stale(t *testing.T) {
	p := mustProxy(t, "https://proxy.example.com/%p", false, "journal.example.org")
	p.Template = "https://other.example.com/%p"

	if !p.Stale() {
		t.Fatal("expected stale matcher after template edit")
	}
	if _, ok := p.Match("https://proxy.example.com/x"); ok {
		t.Error("stale proxy must not match")
	}
	if err := p.Compile(); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if _, ok := p.Match("https://other.example.com/x"); !ok {
		t.Error("recompiled proxy must match its new template")
	}
}

func TestCompile_KeepsPreviousMatcherOnError(t *testing.T) {
	p := mustProxy(t, "https://proxy.example.com/%p", false, "journal.example.org")
	p.Template = "https://proxy.example.com/%q"

	err := p.Compile()
	var mte *scheme.MalformedTemplateError
	if !errors.As(err, &mte) {
		t.Fatalf("expected MalformedTemplateError, got %v", err)
	}
	if p.Matcher() == nil || p.Matcher().Template() != "https://proxy.example.com/%p" {
		t.Error("previous matcher should be kept")
	}
}

func TestHosts(t *testing.T) {
	p := mustProxy(t, "https://%h.proxy.example.com/%p", true, "A.example.org", "a.example.org.", "b.example.org")

	if len(p.Hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %v", p.Hosts)
	}
	if !p.HasHost("A.EXAMPLE.ORG") {
		t.Error("host lookup should be case-insensitive")
	}
	if p.AddHost("b.example.org") {
		t.Error("duplicate host must not be added")
	}
	if !p.RemoveHost("a.example.org") || p.HasHost("a.example.org") {
		t.Error("RemoveHost failed")
	}

	rec := p.Record()
	rec.Hosts[0] = "mutated"
	if p.Hosts[0] == "mutated" {
		t.Error("Record must not alias Hosts")
	}
}
