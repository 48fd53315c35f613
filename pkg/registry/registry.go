// Package registry holds the ordered proxy list and the host index used to
// translate URLs in both directions.
//
// All mutation goes through Add, Associate, Edit, Remove and Load. Each of
// them recompiles the affected proxy and updates the host index under the
// same lock, so a reader never sees a proxy host that is missing from the
// index or an index entry whose proxy no longer lists the host. A mutation
// whose snapshot cannot be saved is rolled back before the error returns.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"

	"mercator-hq/callisto/pkg/hostgate"
	"mercator-hq/callisto/pkg/model"
	"mercator-hq/callisto/pkg/scheme"
)

// ErrNotProxied is returned by strict lookups when no proxy applies.
var ErrNotProxied = errors.New("url is not proxied")

// ErrUnknownProxy is returned when a proxy is not part of the registry.
var ErrUnknownProxy = errors.New("proxy is not registered")

// Registry is the ordered collection of proxies plus the host index.
type Registry struct {
	// writeMu serializes writers so snapshots reach the store in order.
	writeMu sync.Mutex

	mu        sync.RWMutex
	proxies   []*model.Proxy
	hostIndex map[string]*model.Proxy

	store  Store
	gate   *hostgate.Gate
	logger *slog.Logger
}

// New creates an empty registry. A nil store disables persistence and a nil
// gate uses the default host blacklist.
func New(store Store, gate *hostgate.Gate, logger *slog.Logger) *Registry {
	if gate == nil {
		gate = hostgate.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		hostIndex: make(map[string]*model.Proxy),
		store:     store,
		gate:      gate,
		logger:    logger.With("component", "registry"),
	}
}

// Load replaces the registry contents with the store's proxy list. Records
// whose template does not compile are logged and skipped. It does not write
// back to the store.
func (r *Registry) Load(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	records, err := r.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load proxies: %w", err)
	}

	proxies := make([]*model.Proxy, 0, len(records))
	for i, rec := range records {
		p, err := model.FromRecord(rec)
		if err != nil {
			r.logger.Warn("skipping stored proxy",
				"index", i,
				"template", rec.Template,
				"error", err,
			)
			continue
		}
		proxies = append(proxies, p)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	r.proxies = nil
	r.hostIndex = make(map[string]*model.Proxy)
	for _, p := range proxies {
		r.proxies = append(r.proxies, p)
		r.syncIndexLocked(p)
	}
	r.mu.Unlock()

	r.logger.Info("proxies loaded", "count", len(proxies), "skipped", len(records)-len(proxies))
	return len(proxies), nil
}

// Add recompiles p, appends it unless it is already registered, synchronizes
// the host index with p.Hosts and persists the list. A template that does not
// compile is rejected with a *scheme.MalformedTemplateError and p is not added.
func (r *Registry) Add(ctx context.Context, p *model.Proxy) error {
	m, err := scheme.Compile(p.Template, p.MultiHost)
	if err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	snap := r.snapshotLocked(p)
	r.installLocked(p, m)
	records := r.recordsLocked()
	r.mu.Unlock()

	return r.persist(ctx, records, snap)
}

// Associate adds host to p when no registered proxy lists it yet and the
// host gate allows it. It reports whether the host was added. A proxy that is
// no longer registered, e.g. after a reload, yields ErrUnknownProxy.
func (r *Registry) Associate(ctx context.Context, p *model.Proxy, host string) (bool, error) {
	host = model.NormalizeHost(host)
	if host == "" || r.gate.IsBlacklisted(host) {
		return false, nil
	}

	m, err := scheme.Compile(p.Template, p.MultiHost)
	if err != nil {
		return false, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	if !slices.Contains(r.proxies, p) {
		r.mu.Unlock()
		return false, ErrUnknownProxy
	}
	if _, owned := r.hostIndex[host]; owned || p.HasHost(host) {
		r.mu.Unlock()
		return false, nil
	}
	snap := r.snapshotLocked(p)
	p.AddHost(host)
	r.installLocked(p, m)
	records := r.recordsLocked()
	r.mu.Unlock()

	if err := r.persist(ctx, records, snap); err != nil {
		return false, err
	}
	r.logger.Info("host associated", "host", host, "template", p.Template)
	return true, nil
}

// Edit applies fn to a registered proxy, then recompiles and reindexes it.
// If the edited template does not compile the proxy is restored and the
// *scheme.MalformedTemplateError is returned.
func (r *Registry) Edit(ctx context.Context, p *model.Proxy, fn func(*model.Proxy)) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	if !slices.Contains(r.proxies, p) {
		r.mu.Unlock()
		return ErrUnknownProxy
	}
	snap := r.snapshotLocked(p)
	fn(p)
	m, err := scheme.Compile(p.Template, p.MultiHost)
	if err != nil {
		r.restoreLocked(snap)
		r.mu.Unlock()
		return err
	}
	r.installLocked(p, m)
	records := r.recordsLocked()
	r.mu.Unlock()

	return r.persist(ctx, records, snap)
}

// Remove drops p and all of its host index entries.
func (r *Registry) Remove(ctx context.Context, p *model.Proxy) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	i := slices.Index(r.proxies, p)
	if i < 0 {
		r.mu.Unlock()
		return ErrUnknownProxy
	}
	snap := r.snapshotLocked(p)
	r.proxies = slices.Delete(r.proxies, i, i+1)
	for h, owner := range r.hostIndex {
		if owner == p {
			delete(r.hostIndex, h)
		}
	}
	records := r.recordsLocked()
	r.mu.Unlock()

	return r.persist(ctx, records, snap)
}

// ToCanonical tries each proxy in insertion order and returns the canonical
// form from the first one whose template matches rawURL. When nothing
// matches it returns rawURL unchanged, or ErrNotProxied if strict is set.
func (r *Registry) ToCanonical(rawURL string, strict bool) (string, *model.Proxy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.proxies {
		groups, ok := p.Match(rawURL)
		if !ok {
			continue
		}
		canonical, err := p.ToCanonical(groups)
		if err != nil {
			r.logger.Debug("canonical conversion failed", "url", rawURL, "error", err)
			continue
		}
		return canonical, p, nil
	}

	if strict {
		return "", nil, ErrNotProxied
	}
	return rawURL, nil, nil
}

// ToProxied looks up the proxy serving rawURL's host and renders the URL
// through it. When no proxy serves the host, or the URL cannot be converted,
// it returns rawURL unchanged; in strict mode it returns ErrNotProxied or the
// *model.ConversionError instead.
func (r *Registry) ToProxied(rawURL string, strict bool) (string, *model.Proxy, error) {
	notProxied := func(err error) (string, *model.Proxy, error) {
		if strict {
			return "", nil, err
		}
		return rawURL, nil, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return notProxied(&model.ConversionError{URL: rawURL, Reason: "unparsable URL", Cause: err})
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p := r.hostIndex[model.NormalizeHost(u.Hostname())]
	if p == nil {
		return notProxied(ErrNotProxied)
	}
	proxied, err := p.ToProxied(rawURL)
	if err != nil {
		return notProxied(err)
	}
	return proxied, p, nil
}

// OwnerOf returns the proxy whose host list contains host, or nil.
func (r *Registry) OwnerOf(host string) *model.Proxy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hostIndex[model.NormalizeHost(host)]
}

// FindTemplate returns the first proxy with the given template and host mode.
func (r *Registry) FindTemplate(template string, multiHost bool) *model.Proxy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.proxies {
		if p.Template == template && p.MultiHost == multiHost {
			return p
		}
	}
	return nil
}

// At returns the proxy at position i in insertion order.
func (r *Registry) At(i int) (*model.Proxy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.proxies) {
		return nil, false
	}
	return r.proxies[i], true
}

// Records returns a snapshot of the proxy list in its persisted form.
func (r *Registry) Records() []model.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recordsLocked()
}

// Stats returns the number of proxies and indexed hosts.
func (r *Registry) Stats() (proxies, hosts int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.proxies), len(r.hostIndex)
}

// installLocked swaps in a freshly compiled matcher, registers p if needed and
// reindexes its hosts. r.mu must be held for writing.
func (r *Registry) installLocked(p *model.Proxy, m *scheme.Matcher) {
	p.SetMatcher(m)
	if !slices.Contains(r.proxies, p) {
		r.proxies = append(r.proxies, p)
	}
	r.syncIndexLocked(p)
}

// syncIndexLocked makes the host index agree with p.Hosts. A host already
// owned by another proxy moves to p and is dropped from the previous owner.
func (r *Registry) syncIndexLocked(p *model.Proxy) {
	hosts := p.Hosts
	p.Hosts = nil
	for _, h := range hosts {
		p.AddHost(h)
	}

	for h, owner := range r.hostIndex {
		if owner == p && !p.HasHost(h) {
			delete(r.hostIndex, h)
		}
	}
	for _, h := range p.Hosts {
		if owner, ok := r.hostIndex[h]; ok && owner != p {
			owner.RemoveHost(h)
			r.logger.Warn("host moved between proxies",
				"host", h,
				"from", owner.Template,
				"to", p.Template,
			)
		}
		r.hostIndex[h] = p
	}
}

func (r *Registry) recordsLocked() []model.Record {
	records := make([]model.Record, len(r.proxies))
	for i, p := range r.proxies {
		records[i] = p.Record()
	}
	return records
}

// snapshot is the registry state before a mutation. Besides the list and the
// index it keeps every proxy's record, since indexing can move hosts away
// from proxies other than the one being changed.
type snapshot struct {
	proxies   []*model.Proxy
	hostIndex map[string]*model.Proxy
	records   map[*model.Proxy]model.Record
	matchers  map[*model.Proxy]*scheme.Matcher
}

// snapshotLocked captures the current state plus target, which may not be
// registered yet. r.mu must be held.
func (r *Registry) snapshotLocked(target *model.Proxy) *snapshot {
	s := &snapshot{
		proxies:   slices.Clone(r.proxies),
		hostIndex: make(map[string]*model.Proxy, len(r.hostIndex)),
		records:   make(map[*model.Proxy]model.Record, len(r.proxies)+1),
		matchers:  make(map[*model.Proxy]*scheme.Matcher, len(r.proxies)+1),
	}
	for h, p := range r.hostIndex {
		s.hostIndex[h] = p
	}
	for _, p := range r.proxies {
		s.records[p] = p.Record()
		s.matchers[p] = p.Matcher()
	}
	s.records[target] = target.Record()
	s.matchers[target] = target.Matcher()
	return s
}

// restoreLocked puts back the state captured by snapshotLocked. r.mu must be
// held for writing.
func (r *Registry) restoreLocked(s *snapshot) {
	r.proxies = s.proxies
	r.hostIndex = s.hostIndex
	for p, rec := range s.records {
		p.Template = rec.Template
		p.MultiHost = rec.MultiHost
		p.AutoAssociate = rec.AutoAssociate
		p.Hosts = rec.Hosts
		p.SetMatcher(s.matchers[p])
	}
}

// persist saves records. On failure the in-memory state is rolled back to
// snap so memory and store keep agreeing.
func (r *Registry) persist(ctx context.Context, records []model.Record, snap *snapshot) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.Save(ctx, records); err != nil {
		r.mu.Lock()
		r.restoreLocked(snap)
		r.mu.Unlock()
		r.logger.Error("failed to persist proxies, change rolled back", "error", err)
		return fmt.Errorf("failed to persist proxies: %w", err)
	}
	return nil
}
