package cask

// Condition is a declarative property predicate attached to a definition.
// Evaluation is pure: the same profile and property state always yields the
// same answer, which keeps eligibility deterministic and testable in
// isolation.
//
// Matching rules, in order: the value is looked up under Key, then under
// each AnyOf alternate until one is present. A missing value matches only
// when MatchIfMissing is set. A present value must equal Equals when Equals
// is non-empty; otherwise presence alone matches. Any key listed in
// NotHaving being present fails the condition. Invert negates the final
// result.
type Condition struct {
	Key            string
	AnyOf          []string
	Equals         string
	NotHaving      []string
	MatchIfMissing bool
	Invert         bool
}

// Matches evaluates the condition against a property snapshot.
func (c Condition) Matches(properties map[string]string) bool {
	value, present := lookupProperty(c.Key, c.AnyOf, properties)

	var ok bool
	switch {
	case !present:
		ok = c.MatchIfMissing
	case c.Equals != "":
		ok = value == c.Equals
	default:
		ok = true
	}

	for _, excluded := range c.NotHaving {
		if _, has := properties[excluded]; has {
			ok = false
			break
		}
	}

	if c.Invert {
		ok = !ok
	}
	return ok
}

func lookupProperty(key string, anyOf []string, properties map[string]string) (string, bool) {
	if key != "" {
		if v, present := properties[key]; present {
			return v, true
		}
	}
	for _, alt := range anyOf {
		if v, present := properties[alt]; present {
			return v, true
		}
	}
	return "", false
}

// isEligible decides whether a definition may participate in resolution
// given the active profiles and property values. Alternative-tagged
// definitions require their profile to be active; all attached property
// conditions must pass.
func isEligible(def *Definition, profiles map[string]struct{}, properties map[string]string) bool {
	if def.qual.alternative {
		if _, active := profiles[def.qual.profile]; !active {
			return false
		}
	}
	for _, cond := range def.conditions {
		if !cond.Matches(properties) {
			return false
		}
	}
	return true
}
