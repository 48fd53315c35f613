// Package exchange defines the intercepted HTTP exchange records delivered by
// the transport and the verdict returned to it.
package exchange

import (
	"log/slog"
	"net/url"
	"sort"
	"strings"
)

// Stage is the interception point an exchange was delivered at.
type Stage string

const (
	StageBeforeRequest   Stage = "before-request"
	StageHeadersReceived Stage = "headers-received"
	StageCompleted       Stage = "completed"
	StageError           Stage = "error"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageBeforeRequest, StageHeadersReceived, StageCompleted, StageError:
		return true
	}
	return false
}

// Header is a single header as delivered by the transport.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers maps lower-cased header names to values. When a header repeats, the
// last value wins.
type Headers map[string]string

// NewHeaders lower-cases the names of hs into a Headers mapping.
func NewHeaders(hs []Header) Headers {
	h := make(Headers, len(hs))
	for _, hdr := range hs {
		h[strings.ToLower(hdr.Name)] = hdr.Value
	}
	return h
}

// Get returns the value of the named header, matching case-insensitively.
func (h Headers) Get(name string) string {
	return h[strings.ToLower(name)]
}

// LogValue renders the headers as a group sorted by name.
func (h Headers) LogValue() slog.Value {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	attrs := make([]slog.Attr, len(names))
	for i, name := range names {
		attrs[i] = slog.String(name, h[name])
	}
	return slog.GroupValue(attrs...)
}

// Exchange is one intercepted request/response pair.
type Exchange struct {
	RequestID string
	URL       string
	// StatusCode is zero before response headers are received.
	StatusCode      int
	RequestHeaders  Headers
	ResponseHeaders Headers
	Referrer        string
	// OriginURL is the URL of the page that initiated the request.
	OriginURL string
	Stage     Stage
}

// Record is the wire form of an Exchange.
type Record struct {
	RequestID       string   `json:"requestId"`
	URL             string   `json:"url"`
	StatusCode      int      `json:"statusCode,omitempty"`
	RequestHeaders  []Header `json:"requestHeaders,omitempty"`
	ResponseHeaders []Header `json:"responseHeaders,omitempty"`
	Referrer        string   `json:"referrer,omitempty"`
	OriginURL       string   `json:"originUrl,omitempty"`
}

// Exchange converts the record, lower-casing header names. A missing referrer
// falls back to the request's referer header.
func (r Record) Exchange(stage Stage) *Exchange {
	ex := &Exchange{
		RequestID:       r.RequestID,
		URL:             r.URL,
		StatusCode:      r.StatusCode,
		RequestHeaders:  NewHeaders(r.RequestHeaders),
		ResponseHeaders: NewHeaders(r.ResponseHeaders),
		Referrer:        r.Referrer,
		OriginURL:       r.OriginURL,
		Stage:           stage,
	}
	if ex.Referrer == "" {
		ex.Referrer = ex.RequestHeaders.Get("referer")
	}
	return ex
}

// Failed reports whether the response status indicates an error.
func (e *Exchange) Failed() bool {
	return e.StatusCode >= 400
}

// Host returns the lower-cased hostname of the request URL, or "".
func (e *Exchange) Host() string {
	return Hostname(e.URL)
}

// Verdict is the engine's answer to the transport. An empty RedirectTo means
// pass through.
type Verdict struct {
	RedirectTo string `json:"redirectTo,omitempty"`
}

// Redirect reports whether the verdict asks for a redirect.
func (v Verdict) Redirect() bool {
	return v.RedirectTo != ""
}

// Hostname returns the lower-cased hostname of rawURL without port, or "" if
// rawURL does not parse or has no host.
func Hostname(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}

// LastTwoLabels returns the last two dot-separated labels of host. Hosts with
// fewer labels are returned whole.
func LastTwoLabels(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
