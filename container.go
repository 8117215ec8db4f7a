package cask

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Container composes the definition registry, candidate resolver, scope
// caches and lifecycle coordination behind one facade. It is safe for
// concurrent use; unrelated resolutions never serialize on a shared lock.
type Container struct {
	stateMu sync.RWMutex
	state   ContainerState

	regMu    sync.RWMutex
	registry *definitionRegistry

	env       *Environment
	scopes    *scopeManager
	lifecycle *lifecycleCoordinator
	metrics   *resolutionMetrics
	sink      EventSink
	log       *zap.Logger
}

// ContainerOption configures a Container at construction time.
type ContainerOption func(*Container)

// WithLogger sets the container's logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) ContainerOption {
	return func(c *Container) {
		c.log = log
	}
}

// WithEventSink installs a lifecycle event sink. Events are delivered
// fire-and-forget and never block resolution.
func WithEventSink(sink EventSink) ContainerOption {
	return func(c *Container) {
		c.sink = sink
	}
}

// New creates a container in the Created state, accepting registrations.
func New(opts ...ContainerOption) *Container {
	c := &Container{
		registry: newDefinitionRegistry(),
		env:      NewEnvironment(),
		metrics:  newResolutionMetrics(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lifecycle = newLifecycleCoordinator(c.log)
	c.scopes = newScopeManager(c.lifecycle)
	return c
}

func (c *Container) ensureOpen(op string) error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.state == StateShutdown {
		return &ContainerClosedError{Op: op}
	}
	return nil
}

// State returns the container's current lifecycle state.
func (c *Container) State() ContainerState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsShutdown reports whether the container has been shut down.
func (c *Container) IsShutdown() bool {
	return c.State() == StateShutdown
}

// RegisterDefinition adds a definition to the registry. Name collisions
// fail with DuplicateNameError unless the definition carries WithOverwrite;
// overwriting evicts the instance cached under the replaced definition's
// scope. Registration never instantiates anything.
func (c *Container) RegisterDefinition(def *Definition) error {
	if err := c.ensureOpen("registerDefinition"); err != nil {
		return err
	}

	c.regMu.Lock()
	var replaced *Definition
	if def.overwrite {
		replaced, _ = c.registry.findByName(def.name)
	}
	err := c.registry.register(def)
	c.regMu.Unlock()
	if err != nil {
		return err
	}

	if replaced != nil {
		if mi := c.scopes.evict(replaced); mi != nil {
			c.lifecycle.forget(mi)
		}
	}

	c.emit(Event{Kind: EventDefinitionRegistered, Definition: def.name})
	return nil
}

// RegisterInstance registers a pre-built object as a singleton definition
// satisfying cap. The instance is adopted as already constructed; its
// lifecycle begins at the first resolution. Adopted instances are always
// singletons; a WithScope option requesting anything else is rejected.
func (c *Container) RegisterInstance(name string, cap Capability, instance any, opts ...Option) error {
	if instance == nil {
		return fmt.Errorf("instance for definition %q cannot be nil", name)
	}

	def := NewDefinition(name, nil, opts...)
	if def.scope != ScopeSingleton {
		return fmt.Errorf("instance definition %q cannot use scope %q", name, def.scope)
	}
	def.origin = originInstance
	def.instance = instance
	def.capabilities = append(def.capabilities, cap)
	return c.RegisterDefinition(def)
}

// Bean resolves the single eligible definition for a capability and returns
// its instance.
func (c *Container) Bean(ctx context.Context, cap Capability) (any, error) {
	return c.bean(ctx, cap, "")
}

// BeanNamed resolves a capability pinned to an exact definition name.
func (c *Container) BeanNamed(ctx context.Context, name string, cap Capability) (any, error) {
	return c.bean(ctx, cap, name)
}

func (c *Container) bean(ctx context.Context, cap Capability, name string) (any, error) {
	if err := c.ensureOpen("getBean"); err != nil {
		c.metrics.resolutions.Add(1)
		c.metrics.failures.Add(1)
		return nil, err
	}

	start := time.Now()
	value, err := c.resolveCapability(ctx, cap, name, newResolutionStack())
	c.metrics.observe(time.Since(start), err)
	return value, err
}

func (c *Container) resolveCapability(ctx context.Context, cap Capability, name string, stack *resolutionStack) (any, error) {
	def, err := c.selectCandidate(cap, name)
	if err != nil {
		return nil, err
	}

	mi, err := c.resolveDefinition(ctx, def, stack)
	if err != nil {
		return nil, err
	}
	return mi.Object(), nil
}

// resolveDefinition runs the scope cache check; on a miss the definition is
// built, initialized and stored, with dependency initialization strictly
// preceding the dependent's own initializer hook.
func (c *Container) resolveDefinition(ctx context.Context, def *Definition, stack *resolutionStack) (*ManagedInstance, error) {
	mi, created, err := c.scopes.get(ctx, def, stack, func() (*ManagedInstance, error) {
		return c.buildInstance(ctx, def, stack)
	})
	if err != nil {
		return nil, err
	}

	c.metrics.observeDefinition(def.name, created)
	if created {
		c.emit(Event{Kind: EventInstanceCreated, Definition: def.name})
	}
	return mi, nil
}

// buildInstance constructs one instance: dependencies first, then the
// factory, then the initializer hook. Any failure propagates and nothing
// is cached.
func (c *Container) buildInstance(ctx context.Context, def *Definition, stack *resolutionStack) (*ManagedInstance, error) {
	stack.push(def.name)
	defer stack.pop()

	var object any
	if def.origin == originInstance {
		object = def.instance
	} else {
		deps, err := c.resolveDependencies(ctx, def, stack)
		if err != nil {
			return nil, err
		}

		object, err = def.factory(ctx, c, deps)
		if err != nil {
			return nil, &InitializationError{Name: def.name, Err: err}
		}
	}

	mi := newManagedInstance(def, object)
	if err := c.lifecycle.initialize(ctx, mi); err != nil {
		return nil, err
	}

	if def.scope == ScopeSingleton || def.scope == ScopeApplication {
		c.lifecycle.record(mi)
	}
	return mi, nil
}

// Start eagerly instantiates all singleton and application definitions in
// constructor dependency order and transitions the container to Running.
// On failure the instances already created are torn down and the error is
// returned. Start is idempotent while the container is running.
func (c *Container) Start(ctx context.Context) error {
	if err := c.ensureOpen("start"); err != nil {
		return err
	}

	c.stateMu.Lock()
	if c.state == StateRunning {
		c.stateMu.Unlock()
		return nil
	}
	c.stateMu.Unlock()

	c.regMu.RLock()
	defs := c.registry.all()
	c.regMu.RUnlock()

	graph := newDependencyGraph(defs)
	order, err := graph.sort(func(dep Dependency) (string, bool) {
		candidate, err := c.selectCandidate(dep.Capability, dep.Name)
		if err != nil {
			return "", false
		}
		return candidate.name, true
	})
	if err != nil {
		return err
	}

	byName := make(map[string]*Definition, len(defs))
	for _, def := range defs {
		byName[def.name] = def
	}

	for _, name := range order {
		def := byName[name]
		if def == nil || (def.scope != ScopeSingleton && def.scope != ScopeApplication) {
			continue
		}
		// A shutdown issued while we instantiate wins; stop promptly.
		if err := c.ensureOpen("start"); err != nil {
			c.rollbackStart(ctx)
			return err
		}
		profiles, properties := c.env.snapshot()
		if !isEligible(def, profiles, properties) {
			continue
		}
		if _, err := c.resolveDefinition(ctx, def, newResolutionStack()); err != nil {
			c.rollbackStart(ctx)
			return err
		}
	}

	c.stateMu.Lock()
	if c.state != StateCreated {
		wasShutdown := c.state == StateShutdown
		c.stateMu.Unlock()
		if wasShutdown {
			// Shutdown completed while we were instantiating; its teardown
			// walk missed the instances built since, so tear those down too
			// instead of reviving the container.
			c.rollbackStart(ctx)
			return &ContainerClosedError{Op: "start"}
		}
		return nil
	}
	c.state = StateRunning
	c.stateMu.Unlock()
	c.emit(Event{Kind: EventStateChanged, State: StateRunning})
	c.log.Info("container running", zap.Int("definitions", len(defs)))
	return nil
}

// rollbackStart destroys what an eager start built before failing or losing
// a race with shutdown. Destroy is idempotent per instance, so anything a
// concurrent shutdown already tore down is skipped.
func (c *Container) rollbackStart(ctx context.Context) {
	if derr := c.lifecycle.destroyAll(ctx); derr != nil {
		c.log.Warn("rollback teardown reported errors", zap.Error(derr))
	}
	c.scopes.dropProcessCaches()
}

// Shutdown transitions the container to its terminal state and destroys
// all cached instances: request and session caches first, then singletons
// in reverse creation order. Destructor failures are logged and collected;
// they never abort the remaining teardown. Shutdown is idempotent; repeat
// calls return nil. Resolutions issued after shutdown begins fail with
// ContainerClosedError; resolutions already in flight complete.
func (c *Container) Shutdown(ctx context.Context) error {
	c.stateMu.Lock()
	if c.state == StateShutdown {
		c.stateMu.Unlock()
		return nil
	}
	c.state = StateShutdown
	c.stateMu.Unlock()

	c.emit(Event{Kind: EventStateChanged, State: StateShutdown})

	errs := multierr.Append(
		c.scopes.drainTokens(ctx),
		c.lifecycle.destroyAll(ctx),
	)
	if errs != nil {
		c.log.Warn("shutdown completed with destructor failures", zap.Error(errs))
	} else {
		c.log.Info("container shut down")
	}
	return errs
}

// EndRequest destroys the request-scoped instances cached under token.
func (c *Container) EndRequest(ctx context.Context, token string) error {
	return c.scopes.invalidate(ctx, ScopeRequest, token)
}

// EndSession destroys the session-scoped instances cached under token.
func (c *Container) EndSession(ctx context.Context, token string) error {
	return c.scopes.invalidate(ctx, ScopeSession, token)
}

// SetActiveProfiles replaces the active profile set consulted by
// eligibility checks.
func (c *Container) SetActiveProfiles(names ...string) error {
	if err := c.ensureOpen("setActiveProfiles"); err != nil {
		return err
	}
	c.env.SetActiveProfiles(names...)
	return nil
}

// IsProfileActive reports whether the named profile is active. Always
// false once the container is shut down.
func (c *Container) IsProfileActive(name string) bool {
	if c.IsShutdown() {
		return false
	}
	return c.env.IsProfileActive(name)
}

// SetProperty stores a property value.
func (c *Container) SetProperty(key, value string) error {
	if err := c.ensureOpen("setProperty"); err != nil {
		return err
	}
	c.env.SetProperty(key, value)
	return nil
}

// Property returns a property value, or "" when unset.
func (c *Container) Property(key string) (string, error) {
	if err := c.ensureOpen("getProperty"); err != nil {
		return "", err
	}
	value, _ := c.env.Property(key)
	return value, nil
}

// PropertyOr returns a property value, falling back to def when the key is
// unset or the container is shut down.
func (c *Container) PropertyOr(key, def string) string {
	if c.IsShutdown() {
		return def
	}
	if value, present := c.env.Property(key); present {
		return value
	}
	return def
}

// LoadProperties merges dotenv files into the property map.
func (c *Container) LoadProperties(files ...string) error {
	if err := c.ensureOpen("loadProperties"); err != nil {
		return err
	}
	return c.env.LoadProperties(files...)
}

// Definitions returns all registered definition names in registration
// order.
func (c *Container) Definitions() []string {
	c.regMu.RLock()
	defer c.regMu.RUnlock()

	defs := c.registry.all()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.name
	}
	return names
}
