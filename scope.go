package cask

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

type requestTokenKey struct{}
type sessionTokenKey struct{}

// WithRequestToken returns a context carrying the request-scope token.
// Request-scoped resolutions require one; without it they fail with
// NoActiveContextError.
func WithRequestToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, requestTokenKey{}, token)
}

// RequestToken extracts the request-scope token from a context.
func RequestToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(requestTokenKey{}).(string)
	return token, ok && token != ""
}

// WithSessionToken returns a context carrying the session-scope token.
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenKey{}, token)
}

// SessionToken extracts the session-scope token from a context.
func SessionToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionTokenKey{}).(string)
	return token, ok && token != ""
}

// processCache is a process-wide instance cache (singleton and application
// scopes). Each cache locks independently so contention in one scope never
// blocks another.
type processCache struct {
	mu        sync.RWMutex
	instances map[string]*ManagedInstance
}

func newProcessCache() *processCache {
	return &processCache{instances: make(map[string]*ManagedInstance)}
}

func (p *processCache) lookup(name string) (*ManagedInstance, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	mi, ok := p.instances[name]
	return mi, ok
}

func (p *processCache) store(mi *ManagedInstance) {
	p.mu.Lock()
	p.instances[mi.definition.name] = mi
	p.mu.Unlock()
}

func (p *processCache) evict(name string) *ManagedInstance {
	p.mu.Lock()
	defer p.mu.Unlock()
	mi := p.instances[name]
	delete(p.instances, name)
	return mi
}

// tokenCache holds per-context-token caches for request and session scopes.
type tokenCache struct {
	kind    ScopeKind
	mu      sync.RWMutex
	byToken map[string]*tokenEntry
}

type tokenEntry struct {
	instances map[string]*ManagedInstance
	order     []*ManagedInstance
}

func newTokenCache(kind ScopeKind) *tokenCache {
	return &tokenCache{kind: kind, byToken: make(map[string]*tokenEntry)}
}

func (t *tokenCache) lookup(token, name string) (*ManagedInstance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.byToken[token]
	if !ok {
		return nil, false
	}
	mi, ok := entry.instances[name]
	return mi, ok
}

func (t *tokenCache) store(token string, mi *ManagedInstance) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.byToken[token]
	if !ok {
		entry = &tokenEntry{instances: make(map[string]*ManagedInstance)}
		t.byToken[token] = entry
	}
	entry.instances[mi.definition.name] = mi
	entry.order = append(entry.order, mi)
}

// drop removes and returns the instances cached for a token, newest first.
func (t *tokenCache) drop(token string) []*ManagedInstance {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.byToken[token]
	if !ok {
		return nil
	}
	delete(t.byToken, token)

	out := make([]*ManagedInstance, 0, len(entry.order))
	for i := len(entry.order) - 1; i >= 0; i-- {
		out = append(out, entry.order[i])
	}
	return out
}

func (t *tokenCache) tokens() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.byToken))
	for token := range t.byToken {
		out = append(out, token)
	}
	return out
}

// scopeManager owns the instance caches per scope kind and decides whether
// to create or reuse. Singleton first-access uses a per-definition creation
// lock so concurrent requesters never double-construct and unrelated
// resolutions never serialize.
type scopeManager struct {
	lifecycle *lifecycleCoordinator

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// Wait-for bookkeeping for creation locks: which resolution holds each
	// lock, and which lock each resolution is currently blocked acquiring.
	// Consulted before blocking so a constructor cycle split across
	// goroutines fails instead of deadlocking.
	waitMu sync.Mutex
	owners map[string]uint64
	waits  map[uint64]string

	singletons  *processCache
	application *processCache
	request     *tokenCache
	session     *tokenCache
}

func newScopeManager(lifecycle *lifecycleCoordinator) *scopeManager {
	return &scopeManager{
		lifecycle:   lifecycle,
		locks:       make(map[string]*sync.Mutex),
		owners:      make(map[string]uint64),
		waits:       make(map[uint64]string),
		singletons:  newProcessCache(),
		application: newProcessCache(),
		request:     newTokenCache(ScopeRequest),
		session:     newTokenCache(ScopeSession),
	}
}

func (s *scopeManager) creationLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// acquireCreation takes the creation lock for key on behalf of res. Before
// blocking it walks the wait-for chain from the lock's current holder; when
// that chain leads back to a lock res itself holds, the two resolutions are
// building opposite ends of a constructor cycle and would block each other
// forever, so the acquisition fails with the cycle error instead.
func (s *scopeManager) acquireCreation(key, defName string, res *resolutionStack) (*sync.Mutex, error) {
	lock := s.creationLock(key)

	s.waitMu.Lock()
	walked := make(map[uint64]bool)
	holder, held := s.owners[key]
	for held && !walked[holder] {
		if holder == res.id {
			s.waitMu.Unlock()
			return nil, &CircularDependencyError{Chain: res.chainWith(defName)}
		}
		walked[holder] = true
		blockedOn, blocked := s.waits[holder]
		if !blocked {
			break
		}
		holder, held = s.owners[blockedOn]
	}
	s.waits[res.id] = key
	s.waitMu.Unlock()

	lock.Lock()

	s.waitMu.Lock()
	delete(s.waits, res.id)
	s.owners[key] = res.id
	s.waitMu.Unlock()
	return lock, nil
}

func (s *scopeManager) releaseCreation(key string, lock *sync.Mutex) {
	s.waitMu.Lock()
	delete(s.owners, key)
	s.waitMu.Unlock()
	lock.Unlock()
}

// get returns the instance for def, invoking build only on a cache miss.
// The second return reports whether build ran.
func (s *scopeManager) get(ctx context.Context, def *Definition, res *resolutionStack, build func() (*ManagedInstance, error)) (*ManagedInstance, bool, error) {
	switch def.scope {
	case ScopePrototype:
		mi, err := build()
		return mi, true, err

	case ScopeSingleton, ScopeApplication:
		cache := s.singletons
		if def.scope == ScopeApplication {
			cache = s.application
		}
		return s.getCached(cache, def, res, build)

	case ScopeRequest, ScopeSession:
		cache := s.request
		token, active := RequestToken(ctx)
		if def.scope == ScopeSession {
			cache = s.session
			token, active = SessionToken(ctx)
		}
		if !active {
			return nil, false, &NoActiveContextError{Name: def.name, Scope: def.scope}
		}
		return s.getTokenCached(cache, token, def, res, build)

	default:
		return nil, false, fmt.Errorf("definition %q has unknown scope %q", def.name, def.scope)
	}
}

func (s *scopeManager) getCached(cache *processCache, def *Definition, res *resolutionStack, build func() (*ManagedInstance, error)) (*ManagedInstance, bool, error) {
	if mi, ok := cache.lookup(def.name); ok {
		return mi, false, nil
	}

	key := string(def.scope) + ":" + def.name
	lock, err := s.acquireCreation(key, def.name, res)
	if err != nil {
		return nil, false, err
	}
	defer s.releaseCreation(key, lock)

	if mi, ok := cache.lookup(def.name); ok {
		return mi, false, nil
	}

	mi, err := build()
	if err != nil {
		return nil, false, err
	}
	cache.store(mi)
	return mi, true, nil
}

func (s *scopeManager) getTokenCached(cache *tokenCache, token string, def *Definition, res *resolutionStack, build func() (*ManagedInstance, error)) (*ManagedInstance, bool, error) {
	if mi, ok := cache.lookup(token, def.name); ok {
		return mi, false, nil
	}

	key := string(cache.kind) + ":" + token + ":" + def.name
	lock, err := s.acquireCreation(key, def.name, res)
	if err != nil {
		return nil, false, err
	}
	defer s.releaseCreation(key, lock)

	if mi, ok := cache.lookup(token, def.name); ok {
		return mi, false, nil
	}

	mi, err := build()
	if err != nil {
		return nil, false, err
	}
	mi.contextKey = token
	cache.store(token, mi)
	return mi, true, nil
}

// invalidate tears down one context token's cache, running destructor hooks
// newest-first. Used by request and session teardown.
func (s *scopeManager) invalidate(ctx context.Context, kind ScopeKind, token string) error {
	var cache *tokenCache
	switch kind {
	case ScopeRequest:
		cache = s.request
	case ScopeSession:
		cache = s.session
	default:
		return fmt.Errorf("scope %s has no context cache to invalidate", kind)
	}

	var errs error
	for _, mi := range cache.drop(token) {
		errs = multierr.Append(errs, s.lifecycle.destroy(ctx, mi))
	}
	return errs
}

// evict removes a process-wide cached instance, returning it so the caller
// can unhook it from shutdown ordering.
func (s *scopeManager) evict(def *Definition) *ManagedInstance {
	switch def.scope {
	case ScopeSingleton:
		return s.singletons.evict(def.name)
	case ScopeApplication:
		return s.application.evict(def.name)
	default:
		return nil
	}
}

// dropProcessCaches empties the singleton and application caches after a
// failed eager start has destroyed their instances.
func (s *scopeManager) dropProcessCaches() {
	s.singletons.mu.Lock()
	s.singletons.instances = make(map[string]*ManagedInstance)
	s.singletons.mu.Unlock()

	s.application.mu.Lock()
	s.application.instances = make(map[string]*ManagedInstance)
	s.application.mu.Unlock()
}

// drainTokens destroys every remaining request and session cache; called
// during container shutdown before the singleton teardown walk.
func (s *scopeManager) drainTokens(ctx context.Context) error {
	var errs error
	for _, token := range s.request.tokens() {
		errs = multierr.Append(errs, s.invalidate(ctx, ScopeRequest, token))
	}
	for _, token := range s.session.tokens() {
		errs = multierr.Append(errs, s.invalidate(ctx, ScopeSession, token))
	}
	return errs
}
