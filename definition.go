package cask

import (
	"context"
	"fmt"
	"reflect"
)

// Capability identifies a requested type. Capabilities are resolved into an
// explicit capability-to-definition index at registration time; resolution
// never introspects instances.
type Capability struct {
	typ reflect.Type
}

// CapabilityOf returns the capability key for T. For interface capabilities
// use the interface type directly: CapabilityOf[Greeter]().
func CapabilityOf[T any]() Capability {
	return Capability{typ: reflect.TypeOf((*T)(nil)).Elem()}
}

// TypeCapability returns the capability key for a reflect.Type. Intended for
// discovery layers that produce definitions from non-generic metadata.
func TypeCapability(t reflect.Type) Capability {
	return Capability{typ: t}
}

func (c Capability) String() string {
	if c.typ == nil {
		return "<nil>"
	}
	return c.typ.String()
}

// IsZero reports whether the capability carries no type.
func (c Capability) IsZero() bool {
	return c.typ == nil
}

// ScopeKind is the lifetime policy governing instance reuse.
type ScopeKind string

const (
	// ScopeSingleton shares one instance process-wide until shutdown.
	ScopeSingleton ScopeKind = "singleton"
	// ScopeApplication behaves like singleton but lives in its own cache,
	// reported separately in diagnostics.
	ScopeApplication ScopeKind = "application"
	// ScopePrototype creates a fresh instance on every resolution.
	ScopePrototype ScopeKind = "prototype"
	// ScopeRequest shares an instance per request context token.
	ScopeRequest ScopeKind = "request"
	// ScopeSession shares an instance per session context token.
	ScopeSession ScopeKind = "session"
)

// DependencyKind distinguishes constructor wiring, which cannot tolerate
// cycles, from factory wiring, which defers circular references.
type DependencyKind int

const (
	// DepConstructor marks a mandatory argument of the factory. A cycle
	// through a constructor dependency is fatal.
	DepConstructor DependencyKind = iota
	// DepFactory marks wiring satisfied after construction: the factory
	// is handed a *Deferred handle resolved on demand.
	DepFactory
)

// Dependency declares one requirement of a definition, by capability and
// optional name.
type Dependency struct {
	Capability Capability
	Name       string
	Kind       DependencyKind
}

// DependsOn declares a constructor dependency on a capability.
func DependsOn(cap Capability) Dependency {
	return Dependency{Capability: cap, Kind: DepConstructor}
}

// DependsOnNamed declares a constructor dependency on a specific definition.
func DependsOnNamed(cap Capability, name string) Dependency {
	return Dependency{Capability: cap, Name: name, Kind: DepConstructor}
}

// ViaFactory marks the dependency as factory-wired. The factory receives a
// *Deferred handle instead of the instance, resolvable once construction
// completes; cycles through factory wiring never fail a resolution.
func (d Dependency) ViaFactory() Dependency {
	d.Kind = DepFactory
	return d
}

func (d Dependency) String() string {
	if d.Name != "" {
		return fmt.Sprintf("%s[name=%s]", d.Capability, d.Name)
	}
	return d.Capability.String()
}

// qualifier disambiguates multiple candidates for one capability.
type qualifier struct {
	primary     bool
	priority    int
	alternative bool
	profile     string
}

// origin records how a definition produces its instance.
type origin int

const (
	originFactory origin = iota
	originInstance
)

// Factory produces a service instance. Resolved dependency values are passed
// in declaration order; factory-wired cycle entries arrive as *Deferred.
type Factory func(ctx context.Context, c *Container, deps []any) (any, error)

// InitHook runs after dependency injection completes, exactly once per
// instance. A failure aborts the resolution and the instance is not cached.
type InitHook func(ctx context.Context, instance any) error

// DestroyHook runs during teardown of the instance's scope.
type DestroyHook func(ctx context.Context, instance any) error

// Definition is the immutable metadata describing how to produce a managed
// instance. Build one with NewDefinition and register it on a Container.
type Definition struct {
	name         string
	capabilities []Capability
	scope        ScopeKind
	qual         qualifier
	conditions   []Condition
	dependencies []Dependency
	factory      Factory
	instance     any
	origin       origin
	initHook     InitHook
	destroyHook  DestroyHook
	overwrite    bool
}

// Option configures a Definition at construction time.
type Option func(*Definition)

// NewDefinition creates a definition with the given unique name and factory.
// The default scope is singleton. At least one capability must be attached
// via WithCapabilities (or use the generic Register helper, which derives
// one from its type parameter).
func NewDefinition(name string, factory Factory, opts ...Option) *Definition {
	d := &Definition{
		name:    name,
		scope:   ScopeSingleton,
		factory: factory,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithCapabilities attaches the capability types this definition satisfies.
func WithCapabilities(caps ...Capability) Option {
	return func(d *Definition) {
		d.capabilities = append(d.capabilities, caps...)
	}
}

// WithScope sets the definition's scope kind.
func WithScope(kind ScopeKind) Option {
	return func(d *Definition) {
		d.scope = kind
	}
}

// AsPrimary marks the definition primary with the given priority. Among
// eligible candidates the highest priority wins; ties fail resolution.
func AsPrimary(priority int) Option {
	return func(d *Definition) {
		d.qual.primary = true
		d.qual.priority = priority
	}
}

// AsAlternative gates the definition behind a profile: it is eligible only
// while that profile is active.
func AsAlternative(profile string) Option {
	return func(d *Definition) {
		d.qual.alternative = true
		d.qual.profile = profile
	}
}

// WithCondition attaches a property condition. All attached conditions must
// pass for the definition to be eligible.
func WithCondition(cond Condition) Option {
	return func(d *Definition) {
		d.conditions = append(d.conditions, cond)
	}
}

// WithDependencies declares the definition's dependencies in the order the
// factory expects them.
func WithDependencies(deps ...Dependency) Option {
	return func(d *Definition) {
		d.dependencies = append(d.dependencies, deps...)
	}
}

// WithInit sets the initializer hook.
func WithInit(hook InitHook) Option {
	return func(d *Definition) {
		d.initHook = hook
	}
}

// WithDestroy sets the destructor hook. Prototype instances are not owned
// by any cache, so the container never invokes their destructor.
func WithDestroy(hook DestroyHook) Option {
	return func(d *Definition) {
		d.destroyHook = hook
	}
}

// WithOverwrite allows the definition to replace an existing registration
// with the same name instead of failing with DuplicateNameError.
func WithOverwrite() Option {
	return func(d *Definition) {
		d.overwrite = true
	}
}

// Name returns the definition's unique logical name.
func (d *Definition) Name() string { return d.name }

// Scope returns the definition's scope kind.
func (d *Definition) Scope() ScopeKind { return d.scope }

// Capabilities returns a copy of the capability set.
func (d *Definition) Capabilities() []Capability {
	out := make([]Capability, len(d.capabilities))
	copy(out, d.capabilities)
	return out
}

// Dependencies returns a copy of the declared dependencies.
func (d *Definition) Dependencies() []Dependency {
	out := make([]Dependency, len(d.dependencies))
	copy(out, d.dependencies)
	return out
}

// IsPrimary reports whether the definition carries the primary qualifier.
func (d *Definition) IsPrimary() bool { return d.qual.primary }

// Priority returns the primary priority (0 unless AsPrimary was used).
func (d *Definition) Priority() int { return d.qual.priority }

// Profile returns the alternative profile tag, or "" for untagged
// definitions.
func (d *Definition) Profile() string { return d.qual.profile }

func (d *Definition) validate() error {
	if d.name == "" {
		return fmt.Errorf("definition name cannot be empty")
	}
	if d.origin == originFactory && d.factory == nil {
		return fmt.Errorf("definition %q has no factory", d.name)
	}
	if len(d.capabilities) == 0 {
		return fmt.Errorf("definition %q declares no capabilities", d.name)
	}
	switch d.scope {
	case ScopeSingleton, ScopeApplication, ScopePrototype, ScopeRequest, ScopeSession:
	default:
		return fmt.Errorf("definition %q has unknown scope %q", d.name, d.scope)
	}
	return nil
}
