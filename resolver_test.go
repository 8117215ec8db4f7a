package cask

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_SinglePlainCandidate(t *testing.T) {
	c := New()

	registerGreeter(t, c, "only")

	g, err := BeanOf[Greeter](context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "only", g.Greet())
}

func TestResolve_PrimaryBeatsPlain(t *testing.T) {
	c := New()

	registerGreeter(t, c, "SimpleImpl")
	registerGreeter(t, c, "HighPri", AsPrimary(10))

	g, err := BeanOf[Greeter](context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "HighPri", g.Greet())
}

func TestResolve_HighestPriorityWins(t *testing.T) {
	c := New()

	registerGreeter(t, c, "low", AsPrimary(1))
	registerGreeter(t, c, "high", AsPrimary(50))
	registerGreeter(t, c, "plain")

	g, err := BeanOf[Greeter](context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "high", g.Greet())
}

func TestResolve_PriorityTieIsAmbiguous(t *testing.T) {
	c := New()

	registerGreeter(t, c, "first", AsPrimary(10))
	registerGreeter(t, c, "mid", AsPrimary(5))
	registerGreeter(t, c, "second", AsPrimary(10))

	_, err := BeanOf[Greeter](context.Background(), c)
	require.Error(t, err)

	var ambiguous *AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	assert.ElementsMatch(t, []string{"first", "second"}, ambiguous.Candidates)
}

func TestResolve_TwoPlainCandidatesAmbiguous(t *testing.T) {
	c := New()

	registerGreeter(t, c, "one")
	registerGreeter(t, c, "two")

	_, err := BeanOf[Greeter](context.Background(), c)
	require.Error(t, err)

	var ambiguous *AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	assert.ElementsMatch(t, []string{"one", "two"}, ambiguous.Candidates)
}

func TestResolve_NamedSkipsDisambiguation(t *testing.T) {
	c := New()

	registerGreeter(t, c, "plain")
	registerGreeter(t, c, "favored", AsPrimary(10))

	// An explicit name reaches a candidate that priority rules would discard.
	g, err := NamedBeanOf[Greeter](context.Background(), c, "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", g.Greet())
}

func TestResolve_ProfileGating(t *testing.T) {
	c := New()
	ctx := context.Background()

	registerGreeter(t, c, "devOnly", AsAlternative("dev"))

	_, err := BeanOf[Greeter](ctx, c)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	require.NoError(t, c.SetActiveProfiles("dev"))
	assert.True(t, c.IsProfileActive("dev"))

	g, err := BeanOf[Greeter](ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "devOnly", g.Greet())

	// Deactivation gates it again; nothing else is affected.
	require.NoError(t, c.SetActiveProfiles())
	_, err = BeanOf[Greeter](ctx, c)
	assert.ErrorAs(t, err, &notFound)
}

func TestResolve_AlternativeDisplacesPlainViaPriority(t *testing.T) {
	c := New()
	ctx := context.Background()

	registerGreeter(t, c, "default")
	registerGreeter(t, c, "mock", AsAlternative("test"), AsPrimary(100))

	g, err := BeanOf[Greeter](ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "default", g.Greet())

	require.NoError(t, c.SetActiveProfiles("test"))

	g, err = BeanOf[Greeter](ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "mock", g.Greet())
}

// The registration scenario: a primary wins until an equally-qualified
// second primary appears, at which point resolution fails loudly.
func TestResolve_LateRegistrationCreatesTie(t *testing.T) {
	c := New()
	ctx := context.Background()

	registerGreeter(t, c, "SimpleImpl")
	registerGreeter(t, c, "HighPri", AsPrimary(10))

	g, err := BeanOf[Greeter](ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "HighPri", g.Greet())

	registerGreeter(t, c, "AnotherHighPri", AsPrimary(10))

	_, err = BeanOf[Greeter](ctx, c)
	var ambiguous *AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	assert.ElementsMatch(t, []string{"HighPri", "AnotherHighPri"}, ambiguous.Candidates)
}

func TestResolve_PropertyCondition(t *testing.T) {
	c := New()
	ctx := context.Background()

	err := Register[Greeter](c, "conditional", func(ctx context.Context, c *Container, deps []any) (Greeter, error) {
		return &simpleGreeter{greeting: "conditional"}, nil
	}, WithCondition(Condition{Key: "feature.greeter", Equals: "on"}))
	require.NoError(t, err)

	_, err = BeanOf[Greeter](ctx, c)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	require.NoError(t, c.SetProperty("feature.greeter", "on"))

	g, err := BeanOf[Greeter](ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "conditional", g.Greet())
}

func TestFindByCapability_IgnoresEligibility(t *testing.T) {
	c := New()

	registerGreeter(t, c, "plain")
	registerGreeter(t, c, "gated", AsAlternative("dev"))

	c.regMu.RLock()
	defs := c.registry.findByCapability(CapabilityOf[Greeter]())
	c.regMu.RUnlock()

	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name()
	}
	assert.ElementsMatch(t, []string{"plain", "gated"}, names)
}
