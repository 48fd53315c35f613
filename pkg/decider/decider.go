// Package decider implements the loop-safe redirect decision applied to every
// intercepted exchange.
package decider

import (
	"log/slog"

	"mercator-hq/callisto/pkg/exchange"
	"mercator-hq/callisto/pkg/model"
	"mercator-hq/callisto/pkg/notify"
)

// Resolver translates URLs between their canonical and proxied forms.
// *registry.Registry implements it.
type Resolver interface {
	ToCanonical(rawURL string, strict bool) (string, *model.Proxy, error)
	ToProxied(rawURL string, strict bool) (string, *model.Proxy, error)
}

// Reason explains a decision.
type Reason string

const (
	ReasonRedirect         Reason = "redirect"
	ReasonFailedStatus     Reason = "failed_status"
	ReasonNotProxied       Reason = "not_proxied"
	ReasonReferrerProxied  Reason = "referrer_proxied"
	ReasonReferrerSameHost Reason = "referrer_same_host"
	ReasonOriginProxied    Reason = "origin_proxied"
	ReasonOriginSameHost   Reason = "origin_same_host"
	ReasonSameSite         Reason = "same_site"
)

// Decision is the outcome for one exchange.
type Decision struct {
	Verdict exchange.Verdict
	Reason  Reason
}

// Redirect reports whether the decision is a redirect.
func (d Decision) Redirect() bool {
	return d.Verdict.Redirect()
}

// Decider decides whether an exchange is redirected through a known proxy.
type Decider struct {
	resolver Resolver
	notifier notify.Notifier
	notify   bool
	logger   *slog.Logger
}

// Option configures a Decider.
type Option func(*Decider)

// WithNotifier emits a notification for each redirect.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Decider) {
		if n != nil {
			d.notifier = n
			d.notify = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decider) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Decider backed by resolver.
func New(resolver Resolver, opts ...Option) *Decider {
	d := &Decider{
		resolver: resolver,
		notifier: notify.Nop,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "decider")
	return d
}

// Decide evaluates ex. Any lookup failure results in no redirect.
func (d *Decider) Decide(ex *exchange.Exchange) Decision {
	if ex.Failed() {
		return d.pass(ex, ReasonFailedStatus)
	}

	target, _, err := d.resolver.ToProxied(ex.URL, true)
	if err != nil {
		return d.pass(ex, ReasonNotProxied)
	}
	targetHost := exchange.Hostname(target)

	if ex.Referrer != "" {
		if _, _, err := d.resolver.ToProxied(ex.Referrer, true); err == nil {
			return d.pass(ex, ReasonReferrerProxied)
		}
		if exchange.Hostname(ex.Referrer) == targetHost {
			return d.pass(ex, ReasonReferrerSameHost)
		}
	}

	if ex.OriginURL != "" {
		if _, _, err := d.resolver.ToCanonical(ex.OriginURL, true); err == nil {
			return d.pass(ex, ReasonOriginProxied)
		}
		if exchange.Hostname(ex.OriginURL) == targetHost {
			return d.pass(ex, ReasonOriginSameHost)
		}
	}

	if exchange.LastTwoLabels(ex.Host()) == exchange.LastTwoLabels(targetHost) {
		return d.pass(ex, ReasonSameSite)
	}

	d.logger.Debug("redirecting through proxy",
		"request_id", ex.RequestID,
		"url", ex.URL,
		"target", target,
	)
	if d.notify {
		d.notifier.Notify("Redirected " + ex.Host() + " through proxy " + targetHost)
	}
	return Decision{Verdict: exchange.Verdict{RedirectTo: target}, Reason: ReasonRedirect}
}

func (d *Decider) pass(ex *exchange.Exchange, reason Reason) Decision {
	d.logger.Debug("no redirect",
		"request_id", ex.RequestID,
		"url", ex.URL,
		"reason", string(reason),
	)
	return Decision{Reason: reason}
}
