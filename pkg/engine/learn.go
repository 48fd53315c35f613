package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/callisto/pkg/detect"
	"mercator-hq/callisto/pkg/exchange"
	"mercator-hq/callisto/pkg/model"
	"mercator-hq/callisto/pkg/telemetry/tracing"
)

// learn runs auto-association and detection for one exchange. Failures are
// logged; they never surface to the transport.
func (e *Engine) learn(ctx context.Context, ex *exchange.Exchange) {
	if ex.Failed() {
		return
	}

	ctx, span := e.tracer.Start(ctx, "engine.learn", trace.WithAttributes(tracing.ExchangeAttributes(ex)...))
	defer span.End()

	e.autoAssociate(ctx, ex)

	cand, ok := e.pipeline.Run(ctx, ex)
	if !ok {
		return
	}
	span.SetAttributes(tracing.CandidateAttributes(cand.Detector, cand.Proxy.Template, cand.Proxy.MultiHost)...)
	e.adopt(ctx, cand)
	e.RefreshStats()
}

// autoAssociate adds the canonical host of a request made through a
// multi-host proxy to that proxy's host list.
func (e *Engine) autoAssociate(ctx context.Context, ex *exchange.Exchange) {
	canonical, p, err := e.registry.ToCanonical(ex.URL, true)
	if err != nil || !p.MultiHost {
		return
	}
	host := exchange.Hostname(canonical)
	if host == "" || e.registry.OwnerOf(host) != nil {
		return
	}

	if !p.AutoAssociate {
		if _, asked := e.confirmations.LoadOrStore(host, struct{}{}); asked {
			return
		}
		e.metrics.RecordAssociation(AssociationConfirm)
		e.notifier.Notify(fmt.Sprintf("%s is reachable through proxy %s; add it to redirect automatically", host, p.Template))
		return
	}

	e.associate(ctx, p, host)
	e.RefreshStats()
}

// adopt registers a detector candidate. A candidate whose template is already
// known merges its hosts into the existing proxy instead.
func (e *Engine) adopt(ctx context.Context, cand *detect.Candidate) {
	if existing := e.registry.FindTemplate(cand.Proxy.Template, cand.Proxy.MultiHost); existing != nil {
		for _, h := range cand.Proxy.Hosts {
			e.associate(ctx, existing, h)
		}
		return
	}

	hosts := make([]string, 0, len(cand.Proxy.Hosts))
	for _, h := range cand.Proxy.Hosts {
		switch {
		case e.gate.IsBlacklisted(h):
			e.metrics.RecordAssociation(AssociationBlacklisted)
		case e.registry.OwnerOf(h) != nil:
			e.metrics.RecordAssociation(AssociationKnown)
		default:
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		e.logger.Info("detected proxy rejected, no eligible hosts",
			"detector", cand.Detector,
			"template", cand.Proxy.Template,
			"hosts", cand.Proxy.Hosts,
		)
		return
	}
	cand.Proxy.Hosts = hosts

	if err := e.registry.Add(ctx, cand.Proxy); err != nil {
		e.metrics.RecordAssociation(AssociationError)
		tracing.SetError(trace.SpanFromContext(ctx), err)
		e.logger.Error("failed to add detected proxy",
			"detector", cand.Detector,
			"template", cand.Proxy.Template,
			"error", err,
		)
		return
	}
	for range hosts {
		e.metrics.RecordAssociation(AssociationAdded)
	}
	e.logger.Info("learned proxy",
		"detector", cand.Detector,
		"template", cand.Proxy.Template,
		"multi_host", cand.Proxy.MultiHost,
		"hosts", hosts,
	)
	e.notifier.Notify(fmt.Sprintf("Learned proxy %s for %v", cand.Proxy.Template, hosts))
}

func (e *Engine) associate(ctx context.Context, p *model.Proxy, host string) {
	if e.gate.IsBlacklisted(host) {
		e.metrics.RecordAssociation(AssociationBlacklisted)
		return
	}
	added, err := e.registry.Associate(ctx, p, host)
	switch {
	case err != nil:
		e.metrics.RecordAssociation(AssociationError)
		tracing.SetError(trace.SpanFromContext(ctx), err)
		e.logger.Error("host association failed", "host", host, "template", p.Template, "error", err)
	case added:
		e.metrics.RecordAssociation(AssociationAdded)
	default:
		e.metrics.RecordAssociation(AssociationKnown)
	}
}
