package cask

import (
	"context"
	"fmt"
)

// BeanOf resolves the capability T with type safety.
func BeanOf[T any](ctx context.Context, c *Container) (T, error) {
	return beanAs[T](c.Bean(ctx, CapabilityOf[T]()))
}

// NamedBeanOf resolves the capability T pinned to a definition name.
func NamedBeanOf[T any](ctx context.Context, c *Container, name string) (T, error) {
	return beanAs[T](c.BeanNamed(ctx, name, CapabilityOf[T]()))
}

// MustBean resolves T or panics. Use only during startup wiring.
func MustBean[T any](ctx context.Context, c *Container) T {
	value, err := BeanOf[T](ctx, c)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", CapabilityOf[T](), err))
	}
	return value
}

func beanAs[T any](instance any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("resolved instance is not %T, got %T", zero, instance)
	}
	return typed, nil
}

// Register registers a typed factory under name, deriving the capability T
// automatically. Additional capabilities and all other definition options
// can still be attached.
func Register[T any](c *Container, name string, factory func(ctx context.Context, c *Container, deps []any) (T, error), opts ...Option) error {
	def := NewDefinition(name, func(ctx context.Context, c *Container, deps []any) (any, error) {
		return factory(ctx, c, deps)
	}, opts...)
	def.capabilities = append(def.capabilities, CapabilityOf[T]())
	return c.RegisterDefinition(def)
}

// RegisterSingleton registers a singleton factory for T.
func RegisterSingleton[T any](c *Container, name string, factory func(ctx context.Context, c *Container, deps []any) (T, error), opts ...Option) error {
	return Register[T](c, name, factory, append(opts, WithScope(ScopeSingleton))...)
}

// RegisterPrototype registers a prototype factory for T; each resolution
// produces a fresh instance.
func RegisterPrototype[T any](c *Container, name string, factory func(ctx context.Context, c *Container, deps []any) (T, error), opts ...Option) error {
	return Register[T](c, name, factory, append(opts, WithScope(ScopePrototype))...)
}

// RegisterRequestScoped registers a request-scoped factory for T.
func RegisterRequestScoped[T any](c *Container, name string, factory func(ctx context.Context, c *Container, deps []any) (T, error), opts ...Option) error {
	return Register[T](c, name, factory, append(opts, WithScope(ScopeRequest))...)
}

// RegisterValue registers a pre-built instance as a singleton for T.
func RegisterValue[T any](c *Container, name string, instance T) error {
	return c.RegisterInstance(name, CapabilityOf[T](), instance)
}
