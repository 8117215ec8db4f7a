package cask

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ContainerState is the container's own lifecycle. Transitions are
// one-directional: Created -> Running -> Shutdown.
type ContainerState int32

const (
	// StateCreated accepts registrations and lazy resolutions.
	StateCreated ContainerState = iota
	// StateRunning is entered by Start after eager singletons come up.
	StateRunning
	// StateShutdown is terminal; every further operation fails.
	StateShutdown
)

func (s ContainerState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// InstanceState tracks a managed instance through its life.
type InstanceState int32

const (
	// InstanceCreated means the factory has produced the object but the
	// initializer hook has not completed.
	InstanceCreated InstanceState = iota
	// InstanceInitialized means the initializer hook ran successfully.
	InstanceInitialized
	// InstanceDestroyed means the destructor hook has run.
	InstanceDestroyed
)

func (s InstanceState) String() string {
	switch s {
	case InstanceCreated:
		return "created"
	case InstanceInitialized:
		return "initialized"
	case InstanceDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// ManagedInstance is a realized object plus bookkeeping. Instances are
// owned exclusively by their scope cache; the container never retains them
// elsewhere.
type ManagedInstance struct {
	definition *Definition
	object     any
	createdAt  time.Time
	contextKey string
	state      atomic.Int32
}

func newManagedInstance(def *Definition, object any) *ManagedInstance {
	return &ManagedInstance{
		definition: def,
		object:     object,
		createdAt:  time.Now(),
	}
}

// Definition returns the definition that produced this instance.
func (m *ManagedInstance) Definition() *Definition { return m.definition }

// Object returns the realized object.
func (m *ManagedInstance) Object() any { return m.object }

// CreatedAt returns the creation timestamp.
func (m *ManagedInstance) CreatedAt() time.Time { return m.createdAt }

// State returns the instance's current lifecycle state.
func (m *ManagedInstance) State() InstanceState {
	return InstanceState(m.state.Load())
}

// ContextKey returns the request or session token the instance belongs to,
// or "" for process-wide scopes.
func (m *ManagedInstance) ContextKey() string { return m.contextKey }

// lifecycleCoordinator runs init and destroy hooks and keeps the creation
// order of process-wide instances for reverse-order teardown.
type lifecycleCoordinator struct {
	log *zap.Logger

	mu      sync.Mutex
	created []*ManagedInstance
}

func newLifecycleCoordinator(log *zap.Logger) *lifecycleCoordinator {
	return &lifecycleCoordinator{log: log}
}

// initialize runs the definition's initializer hook exactly once. On
// failure the instance stays in the created state and must not be cached.
func (l *lifecycleCoordinator) initialize(ctx context.Context, mi *ManagedInstance) error {
	if hook := mi.definition.initHook; hook != nil {
		if err := hook(ctx, mi.object); err != nil {
			return &InitializationError{Name: mi.definition.name, Err: err}
		}
	}
	mi.state.Store(int32(InstanceInitialized))
	return nil
}

// record notes a process-wide instance for shutdown ordering.
func (l *lifecycleCoordinator) record(mi *ManagedInstance) {
	l.mu.Lock()
	l.created = append(l.created, mi)
	l.mu.Unlock()
}

// forget drops an instance from the creation record; used when a cached
// singleton is overwritten or invalidated ahead of shutdown.
func (l *lifecycleCoordinator) forget(mi *ManagedInstance) {
	l.mu.Lock()
	for i, existing := range l.created {
		if existing == mi {
			l.created = append(l.created[:i], l.created[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
}

// destroy runs the destructor hook once. Repeated calls are no-ops.
func (l *lifecycleCoordinator) destroy(ctx context.Context, mi *ManagedInstance) error {
	if !mi.state.CompareAndSwap(int32(InstanceInitialized), int32(InstanceDestroyed)) {
		if !mi.state.CompareAndSwap(int32(InstanceCreated), int32(InstanceDestroyed)) {
			return nil
		}
	}

	hook := mi.definition.destroyHook
	if hook == nil {
		return nil
	}
	if err := hook(ctx, mi.object); err != nil {
		l.log.Warn("destructor hook failed",
			zap.String("definition", mi.definition.name),
			zap.Error(err))
		return &DestroyError{Name: mi.definition.name, Err: err}
	}
	return nil
}

// destroyAll tears down recorded instances in reverse creation order.
// Individual hook failures are logged and collected; they never abort the
// remaining teardown.
func (l *lifecycleCoordinator) destroyAll(ctx context.Context) error {
	l.mu.Lock()
	instances := l.created
	l.created = nil
	l.mu.Unlock()

	var errs error
	for i := len(instances) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, l.destroy(ctx, instances[i]))
	}
	return errs
}
