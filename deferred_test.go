package cask

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferred_ResolvesOnce(t *testing.T) {
	c := New()
	ctx := context.Background()

	var built int
	err := RegisterPrototype[Greeter](c, "greeter", func(ctx context.Context, c *Container, deps []any) (Greeter, error) {
		built++
		return &simpleGreeter{id: built}, nil
	})
	require.NoError(t, err)

	d := newDeferred(c, CapabilityOf[Greeter](), "")

	first, err := d.Get(ctx)
	require.NoError(t, err)
	second, err := d.Get(ctx)
	require.NoError(t, err)

	// Even against a prototype definition, the handle pins one instance.
	assert.Same(t, first, second)
	assert.Equal(t, 1, built)
	assert.Equal(t, CapabilityOf[Greeter](), d.Capability())
}

func TestDeferred_TypeMismatch(t *testing.T) {
	c := New()
	ctx := context.Background()

	registerGreeter(t, c, "greeter")

	d := newDeferred(c, CapabilityOf[Greeter](), "")
	_, err := DeferredAs[*counter](ctx, d)
	assert.Error(t, err)
}

func TestProvider_FreshPrototypeInstances(t *testing.T) {
	c := New()
	ctx := context.Background()

	var built int
	err := RegisterPrototype[*counter](c, "counter", func(ctx context.Context, c *Container, deps []any) (*counter, error) {
		built++
		return &counter{id: built}, nil
	})
	require.NoError(t, err)

	p := NewProvider[*counter](c, "")

	first, err := p.Provide(ctx)
	require.NoError(t, err)
	second, err := p.Provide(ctx)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, built)
}

func TestProvider_NamedPin(t *testing.T) {
	c := New()
	ctx := context.Background()

	registerGreeter(t, c, "one")
	registerGreeter(t, c, "two")

	p := NewProvider[Greeter](c, "two")
	g, err := p.Provide(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", g.Greet())
}

func TestMustBean_PanicsOnError(t *testing.T) {
	c := New()

	assert.Panics(t, func() {
		MustBean[Greeter](context.Background(), c)
	})
}

func TestRegisterValue(t *testing.T) {
	c := New()
	ctx := context.Background()

	value := &counter{id: 42}
	require.NoError(t, RegisterValue[*counter](c, "answer", value))

	got, err := BeanOf[*counter](ctx, c)
	require.NoError(t, err)
	assert.Same(t, value, got)
}
