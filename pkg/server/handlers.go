package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"mercator-hq/callisto/pkg/exchange"
	"mercator-hq/callisto/pkg/model"
	"mercator-hq/callisto/pkg/registry"
	"mercator-hq/callisto/pkg/scheme"
	"mercator-hq/callisto/pkg/server/middleware"
)

// maxBodyBytes bounds exchange and proxy request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx API answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProxyResponse describes one registered proxy.
type ProxyResponse struct {
	Index int `json:"index"`
	model.Record
}

// ConvertResponse is the answer of /v1/convert.
type ConvertResponse struct {
	URL      string `json:"url"`
	Template string `json:"template"`
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	stage := exchange.Stage(r.PathValue("stage"))
	if !stage.Valid() {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown stage %q", stage))
		return
	}

	var rec exchange.Record
	if err := decodeBody(w, r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if rec.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	// The middleware id only tags logs. An exchange without its own id is
	// never guarded against repeat redirects.
	ex := rec.Exchange(stage)
	writeJSON(w, http.StatusOK, s.deps.Engine.Handle(r.Context(), ex))
}

func (s *Server) handleListProxies(w http.ResponseWriter, r *http.Request) {
	records := s.deps.Registry.Records()
	out := make([]ProxyResponse, len(records))
	for i, rec := range records {
		out[i] = ProxyResponse{Index: i, Record: rec}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddProxy(w http.ResponseWriter, r *http.Request) {
	var rec model.Record
	if err := decodeBody(w, r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := model.FromRecord(rec)
	if err == nil {
		err = s.deps.Registry.Add(r.Context(), p)
	}
	var mte *scheme.MalformedTemplateError
	switch {
	case errors.As(err, &mte):
		writeError(w, http.StatusUnprocessableEntity, mte.Error())
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "failed to add proxy", "template", rec.Template, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add proxy")
		return
	}

	s.logger.InfoContext(r.Context(), "proxy added", "template", p.Template, "hosts", p.Hosts, "by", caller(r))
	writeJSON(w, http.StatusCreated, p.Record())
}

// handleEditProxy replaces every field of the proxy at {index}. The proxy
// keeps its position in the list.
func (s *Server) handleEditProxy(w http.ResponseWriter, r *http.Request) {
	index, p, ok := s.proxyAt(w, r)
	if !ok {
		return
	}

	var rec model.Record
	if err := decodeBody(w, r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.deps.Registry.Edit(r.Context(), p, func(p *model.Proxy) {
		p.Template = rec.Template
		p.MultiHost = rec.MultiHost
		p.AutoAssociate = rec.AutoAssociate
		p.Hosts = rec.Hosts
	})
	var mte *scheme.MalformedTemplateError
	switch {
	case errors.As(err, &mte):
		writeError(w, http.StatusUnprocessableEntity, mte.Error())
		return
	case errors.Is(err, registry.ErrUnknownProxy):
		writeError(w, http.StatusConflict, "proxy list changed, retry")
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "failed to edit proxy", "index", index, "template", rec.Template, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to edit proxy")
		return
	}

	s.logger.InfoContext(r.Context(), "proxy edited", "index", index, "template", p.Template, "hosts", p.Hosts, "by", caller(r))
	writeJSON(w, http.StatusOK, ProxyResponse{Index: index, Record: p.Record()})
}

func (s *Server) handleRemoveProxy(w http.ResponseWriter, r *http.Request) {
	_, p, ok := s.proxyAt(w, r)
	if !ok {
		return
	}

	if err := s.deps.Registry.Remove(r.Context(), p); err != nil {
		if errors.Is(err, registry.ErrUnknownProxy) {
			writeError(w, http.StatusConflict, "proxy list changed, retry")
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to remove proxy", "template", p.Template, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove proxy")
		return
	}

	s.logger.InfoContext(r.Context(), "proxy removed", "template", p.Template, "by", caller(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawURL := q.Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	var (
		out string
		p   *model.Proxy
		err error
	)
	switch q.Get("direction") {
	case "canonical":
		out, p, err = s.deps.Registry.ToCanonical(rawURL, true)
	case "proxied":
		out, p, err = s.deps.Registry.ToProxied(rawURL, true)
	default:
		writeError(w, http.StatusBadRequest, "direction must be canonical or proxied")
		return
	}

	var ce *model.ConversionError
	switch {
	case errors.Is(err, registry.ErrNotProxied):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ce):
		writeError(w, http.StatusUnprocessableEntity, ce.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, ConvertResponse{URL: out, Template: p.Template})
	}
}

// proxyAt resolves the {index} path value. It writes the error response and
// returns false when there is no such proxy.
func (s *Server) proxyAt(w http.ResponseWriter, r *http.Request) (int, *model.Proxy, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return 0, nil, false
	}
	p, ok := s.deps.Registry.At(index)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no proxy at index %d", index))
		return 0, nil, false
	}
	return index, p, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}

// caller names the API key behind r, or "anonymous" when auth is off.
func caller(r *http.Request) string {
	if name, ok := middleware.GetAPIKeyName(r.Context()); ok {
		return name
	}
	return "anonymous"
}
