package detect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"mercator-hq/callisto/pkg/exchange"
	"mercator-hq/callisto/pkg/model"
)

// EZproxyName is the name of the EZproxy detector.
const EZproxyName = "ezproxy"

// Known answers questions about already registered proxies.
// *registry.Registry implements it.
type Known interface {
	OwnerOf(host string) *model.Proxy
	ToCanonical(rawURL string, strict bool) (string, *model.Proxy, error)
}

// ProbeStarter starts a fire-and-forget host probe. It reports whether a
// probe was started.
type ProbeStarter interface {
	Start(target string) bool
}

// loginParams carry the canonical target in an EZproxy login URL.
var loginParams = []string{"url", "qurl"}

type ezproxy struct {
	known  Known
	prober ProbeStarter
}

// NewEZproxy returns the detector for EZproxy port and host rewriting. A nil
// prober disables probing of chained proxies.
func NewEZproxy(known Known, prober ProbeStarter) Detector {
	d := &ezproxy{known: known, prober: prober}
	return Detector{Name: EZproxyName, Detect: d.detect}
}

func (d *ezproxy) detect(ctx context.Context, ex *exchange.Exchange) (*model.Proxy, error) {
	reqURL, err := url.Parse(ex.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid request url: %w", err)
	}

	var locURL *url.URL
	if isRedirect(ex.StatusCode) {
		if location := ex.ResponseHeaders.Get("location"); location != "" {
			if locURL, err = reqURL.Parse(location); err != nil {
				return nil, fmt.Errorf("invalid location %q: %w", location, err)
			}
		}
	}

	// A hop from a known proxy to another port of its host is either a
	// redirect or a link followed from a proxied page.
	if locURL != nil {
		d.chain(ex.URL, reqURL, locURL)
	} else if ref := ex.RequestHeaders.Get("referer"); ref != "" {
		if refURL, err := url.Parse(ref); err == nil {
			d.chain(ref, refURL, reqURL)
		}
	}

	if locURL == nil || !strings.Contains(strings.ToLower(ex.ResponseHeaders.Get("server")), "ezproxy") {
		return nil, nil
	}

	// Usually a proxied URL bounces to the login page. An authenticated login
	// request bounces the other way.
	if canonical := loginTarget(locURL); canonical != nil {
		return d.infer(reqURL, locURL, canonical)
	}
	if canonical := loginTarget(reqURL); canonical != nil {
		return d.infer(locURL, reqURL, canonical)
	}
	return nil, nil
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect:
		return true
	}
	return false
}

// infer builds a port-keyed or host-keyed proxy from a proxied URL, the login
// URL it redirected through and the canonical URL named by the login.
func (d *ezproxy) infer(proxied, login, canonical *url.URL) (*model.Proxy, error) {
	canonHost := model.NormalizeHost(canonical.Hostname())
	proxiedHost := model.NormalizeHost(proxied.Hostname())
	loginHost := model.NormalizeHost(login.Hostname())
	if canonHost == "" || proxiedHost == "" {
		return nil, nil
	}
	if exchange.LastTwoLabels(proxiedHost) != exchange.LastTwoLabels(loginHost) {
		return nil, nil
	}
	if d.known.OwnerOf(canonHost) != nil {
		return nil, nil
	}

	origin := escape(strings.ToLower(proxied.Scheme)) + "://"
	switch {
	case proxiedHost == loginHost && proxied.Port() != login.Port():
		template := origin + escape(strings.ToLower(proxied.Host)) + "/%p"
		return model.New(template, false, false, canonHost)

	case proxiedHost != canonHost && strings.Contains(proxiedHost, canonHost):
		i := strings.Index(proxiedHost, canonHost)
		host := escape(proxiedHost[:i]) + "%h" + escape(proxiedHost[i+len(canonHost):])
		if port := proxied.Port(); port != "" {
			host += ":" + port
		}
		return model.New(origin+host+"/%p", true, true, canonHost)
	}
	return nil, nil
}

// chain probes a second proxy reached from a known one. The probe carries no
// cookies, so the proxy answers with its login redirect, which names the
// canonical host. Hops to or from a login page are left to infer.
func (d *ezproxy) chain(rawSource string, source, target *url.URL) {
	if d.prober == nil {
		return
	}
	if !strings.EqualFold(source.Hostname(), target.Hostname()) || source.Port() == target.Port() {
		return
	}
	if loginTarget(source) != nil || loginTarget(target) != nil {
		return
	}
	if _, _, err := d.known.ToCanonical(rawSource, true); err != nil {
		return
	}
	dest := target.String()
	if _, _, err := d.known.ToCanonical(dest, true); err == nil {
		return
	}
	d.prober.Start(dest)
}

// loginTarget returns the canonical URL carried by a login URL, or nil.
func loginTarget(u *url.URL) *url.URL {
	if !strings.HasPrefix(strings.ToLower(u.Path), "/login") {
		return nil
	}
	q := u.Query()
	for _, name := range loginParams {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		target, err := url.Parse(raw)
		if err != nil || target.Hostname() == "" {
			continue
		}
		return target
	}
	return nil
}

// escape protects literal percent signs in template text.
func escape(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}
