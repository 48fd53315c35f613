package tracing

import (
	"go.opentelemetry.io/otel/attribute"

	"mercator-hq/callisto/pkg/exchange"
)

// Span attribute keys.
const (
	AttrRequestID  = "callisto.request_id"
	AttrStage      = "callisto.stage"
	AttrHost       = "callisto.host"
	AttrStatusCode = "http.response.status_code"
	AttrVerdict    = "callisto.verdict"
	AttrReason     = "callisto.reason"
	AttrRedirectTo = "callisto.redirect_to"
	AttrDetector   = "callisto.detector"
	AttrTemplate   = "callisto.proxy.template"
	AttrMultiHost  = "callisto.proxy.multi_host"
)

// ExchangeAttributes describes ex. The full URL is left out; only its host
// is recorded.
func ExchangeAttributes(ex *exchange.Exchange) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRequestID, ex.RequestID),
		attribute.String(AttrStage, string(ex.Stage)),
		attribute.String(AttrHost, ex.Host()),
	}
	if ex.StatusCode > 0 {
		attrs = append(attrs, attribute.Int(AttrStatusCode, ex.StatusCode))
	}
	return attrs
}

// DecisionAttributes describes a verdict and the reason it was reached.
func DecisionAttributes(v exchange.Verdict, reason string) []attribute.KeyValue {
	verdict := "pass"
	if v.Redirect() {
		verdict = "redirect"
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrVerdict, verdict),
		attribute.String(AttrReason, reason),
	}
	if v.Redirect() {
		attrs = append(attrs, attribute.String(AttrRedirectTo, v.RedirectTo))
	}
	return attrs
}

// CandidateAttributes describes a proxy found by a detector.
func CandidateAttributes(detector, template string, multiHost bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDetector, detector),
		attribute.String(AttrTemplate, template),
		attribute.Bool(AttrMultiHost, multiHost),
	}
}
