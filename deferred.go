package cask

import (
	"context"
	"fmt"
	"sync"
)

// Deferred is a forwarding handle to a dependency that was circular through
// factory wiring at construction time. It resolves to the real instance on
// first Get, once the construction that produced it has completed. Do not
// call Get from inside the factory that received the handle; hold it and
// resolve after construction.
type Deferred struct {
	container *Container
	cap       Capability
	name      string

	once  sync.Once
	value any
	err   error
}

func newDeferred(c *Container, cap Capability, name string) *Deferred {
	return &Deferred{container: c, cap: cap, name: name}
}

// Get resolves the dependency. Resolution happens once; subsequent calls
// return the same value.
func (d *Deferred) Get(ctx context.Context) (any, error) {
	d.once.Do(func() {
		d.value, d.err = d.container.bean(ctx, d.cap, d.name)
	})
	return d.value, d.err
}

// MustGet resolves the dependency and panics on error.
func (d *Deferred) MustGet(ctx context.Context) any {
	value, err := d.Get(ctx)
	if err != nil {
		panic(fmt.Sprintf("deferred dependency %s failed: %v", d.cap, err))
	}
	return value
}

// Capability returns the capability the handle forwards to.
func (d *Deferred) Capability() Capability { return d.cap }

// DeferredAs resolves a deferred handle to a concrete type.
func DeferredAs[T any](ctx context.Context, d *Deferred) (T, error) {
	var zero T

	value, err := d.Get(ctx)
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("deferred dependency %s: expected %T, got %T", d.cap, zero, value)
	}
	return typed, nil
}

// Provider hands out instances of a capability on demand. For prototype
// definitions each Provide call yields a fresh instance.
type Provider[T any] struct {
	container *Container
	cap       Capability
	name      string
}

// NewProvider creates a provider for T, optionally pinned to a named
// definition.
func NewProvider[T any](c *Container, name string) *Provider[T] {
	return &Provider[T]{container: c, cap: CapabilityOf[T](), name: name}
}

// Provide resolves and returns an instance.
func (p *Provider[T]) Provide(ctx context.Context) (T, error) {
	var zero T

	value, err := p.container.bean(ctx, p.cap, p.name)
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("provider %s: expected %T, got %T", p.cap, zero, value)
	}
	return typed, nil
}

// MustProvide resolves and returns an instance, panicking on error.
func (p *Provider[T]) MustProvide(ctx context.Context) T {
	value, err := p.Provide(ctx)
	if err != nil {
		panic(fmt.Sprintf("provider %s failed: %v", p.cap, err))
	}
	return value
}
