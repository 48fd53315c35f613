// Package detect infers new proxy definitions from observed traffic.
//
// Detectors are plain functions registered in a fixed order. The Pipeline
// runs them one after another and the first detector that proposes a proxy
// wins. A detector that fails or panics is logged and treated as declined.
//
// Detectors never touch the registry. They return a Candidate which the
// caller deduplicates, filters and adds.
package detect

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/callisto/pkg/exchange"
	"mercator-hq/callisto/pkg/model"
)

// Func inspects an exchange and returns a proposed proxy, or nil to decline.
type Func func(ctx context.Context, ex *exchange.Exchange) (*model.Proxy, error)

// Detector is a named detection function.
type Detector struct {
	Name   string
	Detect Func
}

// Candidate is a proxy proposed by a detector. The proxy is compiled but not
// registered.
type Candidate struct {
	Proxy    *model.Proxy
	Detector string
}

// Detection results reported to the observer.
const (
	ResultMatch   = "match"
	ResultDecline = "decline"
	ResultError   = "error"
)

// Observer is notified of every detector outcome.
type Observer func(detector, result string)

// Pipeline runs detectors in order.
type Pipeline struct {
	detectors []Detector
	observer  Observer
	logger    *slog.Logger
}

// NewPipeline creates a pipeline running detectors in the given order.
func NewPipeline(logger *slog.Logger, detectors ...Detector) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		detectors: detectors,
		observer:  func(string, string) {},
		logger:    logger.With("component", "detect"),
	}
}

// SetObserver installs a callback for detector outcomes.
func (p *Pipeline) SetObserver(o Observer) {
	if o != nil {
		p.observer = o
	}
}

// Detectors returns the detector names in evaluation order.
func (p *Pipeline) Detectors() []string {
	names := make([]string, len(p.detectors))
	for i, d := range p.detectors {
		names[i] = d.Name
	}
	return names
}

// Run evaluates the detectors against ex and returns the first candidate.
func (p *Pipeline) Run(ctx context.Context, ex *exchange.Exchange) (*Candidate, bool) {
	for _, d := range p.detectors {
		if ctx.Err() != nil {
			return nil, false
		}

		proxy, err := p.invoke(ctx, d, ex)
		if err != nil {
			p.observer(d.Name, ResultError)
			p.logger.Warn("detector failed",
				"detector", d.Name,
				"request_id", ex.RequestID,
				"error", err,
			)
			continue
		}
		if proxy == nil {
			p.observer(d.Name, ResultDecline)
			continue
		}

		p.observer(d.Name, ResultMatch)
		p.logger.Info("proxy detected",
			"detector", d.Name,
			"template", proxy.Template,
			"hosts", proxy.Hosts,
		)
		return &Candidate{Proxy: proxy, Detector: d.Name}, true
	}
	return nil, false
}

// invoke calls a detector, converting errors and panics to *DetectorError.
func (p *Pipeline) invoke(ctx context.Context, d Detector, ex *exchange.Exchange) (proxy *model.Proxy, err error) {
	defer func() {
		if r := recover(); r != nil {
			proxy = nil
			err = &DetectorError{Detector: d.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	proxy, err = d.Detect(ctx, ex)
	if err != nil {
		return nil, &DetectorError{Detector: d.Name, Err: err}
	}
	return proxy, nil
}
