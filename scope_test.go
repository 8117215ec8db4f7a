package cask

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	id int
}

func registerCountingGreeter(t *testing.T, c *Container, name string, built *int, opts ...Option) {
	t.Helper()

	err := Register[*counter](c, name, func(ctx context.Context, c *Container, deps []any) (*counter, error) {
		*built++
		return &counter{id: *built}, nil
	}, opts...)
	require.NoError(t, err)
}

func TestRequestScope_RequiresActiveContext(t *testing.T) {
	c := New()

	var built int
	registerCountingGreeter(t, c, "perRequest", &built, WithScope(ScopeRequest))

	_, err := BeanOf[*counter](context.Background(), c)
	require.Error(t, err)

	var noCtx *NoActiveContextError
	require.ErrorAs(t, err, &noCtx)
	assert.Equal(t, "perRequest", noCtx.Name)
	assert.Equal(t, ScopeRequest, noCtx.Scope)
	assert.Equal(t, 0, built)
}

func TestRequestScope_SharedWithinToken(t *testing.T) {
	c := New()

	var built int
	registerCountingGreeter(t, c, "perRequest", &built, WithScope(ScopeRequest))

	reqA := WithRequestToken(context.Background(), "req-a")
	reqB := WithRequestToken(context.Background(), "req-b")

	first, err := BeanOf[*counter](reqA, c)
	require.NoError(t, err)
	second, err := BeanOf[*counter](reqA, c)
	require.NoError(t, err)
	other, err := BeanOf[*counter](reqB, c)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, built)
}

func TestSessionScope_IndependentOfRequestScope(t *testing.T) {
	c := New()

	var built int
	registerCountingGreeter(t, c, "perSession", &built, WithScope(ScopeSession))

	// A request token alone does not satisfy session scope.
	reqOnly := WithRequestToken(context.Background(), "req-1")
	_, err := BeanOf[*counter](reqOnly, c)
	var noCtx *NoActiveContextError
	require.ErrorAs(t, err, &noCtx)
	assert.Equal(t, ScopeSession, noCtx.Scope)

	sess := WithSessionToken(context.Background(), "sess-1")
	first, err := BeanOf[*counter](sess, c)
	require.NoError(t, err)
	second, err := BeanOf[*counter](sess, c)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestEndRequest_DestroysAndEvicts(t *testing.T) {
	c := New()
	destroyed := []string{}

	err := Register[*counter](c, "perRequest", func(ctx context.Context, c *Container, deps []any) (*counter, error) {
		return &counter{}, nil
	},
		WithScope(ScopeRequest),
		WithDestroy(func(ctx context.Context, instance any) error {
			destroyed = append(destroyed, "perRequest")
			return nil
		}),
	)
	require.NoError(t, err)

	ctx := WithRequestToken(context.Background(), "req-1")
	first, err := BeanOf[*counter](ctx, c)
	require.NoError(t, err)

	require.NoError(t, c.EndRequest(ctx, "req-1"))
	assert.Equal(t, []string{"perRequest"}, destroyed)

	// A new resolution under the same token builds a fresh instance.
	second, err := BeanOf[*counter](ctx, c)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestEndRequest_DestroyOrderNewestFirst(t *testing.T) {
	c := New()
	var destroyed []string

	for _, name := range []string{"a", "b", "c"} {
		name := name
		err := Register[*counter](c, name, func(ctx context.Context, c *Container, deps []any) (*counter, error) {
			return &counter{}, nil
		},
			WithScope(ScopeRequest),
			WithDestroy(func(ctx context.Context, instance any) error {
				destroyed = append(destroyed, name)
				return nil
			}),
		)
		require.NoError(t, err)
	}

	ctx := WithRequestToken(context.Background(), "req-1")
	for _, name := range []string{"a", "b", "c"} {
		_, err := c.BeanNamed(ctx, name, CapabilityOf[*counter]())
		require.NoError(t, err)
	}

	require.NoError(t, c.EndRequest(ctx, "req-1"))
	assert.Equal(t, []string{"c", "b", "a"}, destroyed)
}

func TestEndRequest_ContinuesPastDestroyFailures(t *testing.T) {
	c := New()
	var destroyed []string

	register := func(name string, fail bool) {
		err := Register[*counter](c, name, func(ctx context.Context, c *Container, deps []any) (*counter, error) {
			return &counter{}, nil
		},
			WithScope(ScopeRequest),
			WithDestroy(func(ctx context.Context, instance any) error {
				destroyed = append(destroyed, name)
				if fail {
					return assert.AnError
				}
				return nil
			}),
		)
		require.NoError(t, err)
	}
	register("ok1", false)
	register("broken", true)
	register("ok2", false)

	ctx := WithRequestToken(context.Background(), "req-1")
	for _, name := range []string{"ok1", "broken", "ok2"} {
		_, err := c.BeanNamed(ctx, name, CapabilityOf[*counter]())
		require.NoError(t, err)
	}

	err := c.EndRequest(ctx, "req-1")
	require.Error(t, err)

	var destroyErr *DestroyError
	assert.ErrorAs(t, err, &destroyErr)
	assert.ElementsMatch(t, []string{"ok1", "broken", "ok2"}, destroyed)
}

func TestApplicationScope_CachedSeparatelyFromSingleton(t *testing.T) {
	c := New()
	ctx := context.Background()

	var built int
	registerCountingGreeter(t, c, "appScoped", &built, WithScope(ScopeApplication))

	first, err := BeanOf[*counter](ctx, c)
	require.NoError(t, err)
	second, err := BeanOf[*counter](ctx, c)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, built)

	_, inSingletons := c.scopes.singletons.lookup("appScoped")
	_, inApplication := c.scopes.application.lookup("appScoped")
	assert.False(t, inSingletons)
	assert.True(t, inApplication)
}
