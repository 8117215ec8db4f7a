package cask

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCondition_Matches(t *testing.T) {
	props := map[string]string{
		"mode":          "fast",
		"legacy.flag":   "1",
		"cache.backend": "redis",
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{
			name: "presence only",
			cond: Condition{Key: "mode"},
			want: true,
		},
		{
			name: "equality match",
			cond: Condition{Key: "mode", Equals: "fast"},
			want: true,
		},
		{
			name: "equality mismatch",
			cond: Condition{Key: "mode", Equals: "slow"},
			want: false,
		},
		{
			name: "missing key fails closed",
			cond: Condition{Key: "absent"},
			want: false,
		},
		{
			name: "missing key with matchIfMissing",
			cond: Condition{Key: "absent", MatchIfMissing: true},
			want: true,
		},
		{
			name: "anyOf alternate key",
			cond: Condition{Key: "absent", AnyOf: []string{"also.absent", "cache.backend"}, Equals: "redis"},
			want: true,
		},
		{
			name: "notHaving exclusion",
			cond: Condition{Key: "mode", NotHaving: []string{"legacy.flag"}},
			want: false,
		},
		{
			name: "notHaving absent key passes",
			cond: Condition{Key: "mode", NotHaving: []string{"modern.flag"}},
			want: true,
		},
		{
			name: "invert flips result",
			cond: Condition{Key: "mode", Equals: "slow", Invert: true},
			want: true,
		},
		{
			name: "invert flips matchIfMissing",
			cond: Condition{Key: "absent", MatchIfMissing: true, Invert: true},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Matches(props))
		})
	}
}

func TestCondition_IsPure(t *testing.T) {
	cond := Condition{Key: "mode", Equals: "fast"}
	props := map[string]string{"mode": "fast"}

	for i := 0; i < 3; i++ {
		assert.True(t, cond.Matches(props))
	}
	assert.Equal(t, map[string]string{"mode": "fast"}, props)
}

func TestIsEligible_AlternativeRequiresProfile(t *testing.T) {
	def := NewDefinition("alt", nil, AsAlternative("dev"))
	def.origin = originInstance

	assert.False(t, isEligible(def, map[string]struct{}{}, nil))
	assert.True(t, isEligible(def, map[string]struct{}{"dev": {}}, nil))
}

func TestIsEligible_AllConditionsMustPass(t *testing.T) {
	def := NewDefinition("cond", nil,
		WithCondition(Condition{Key: "a", Equals: "1"}),
		WithCondition(Condition{Key: "b", Equals: "2"}),
	)
	def.origin = originInstance

	profiles := map[string]struct{}{}
	assert.False(t, isEligible(def, profiles, map[string]string{"a": "1"}))
	assert.True(t, isEligible(def, profiles, map[string]string{"a": "1", "b": "2"}))
}
