package cask

import "sort"

// selectCandidate picks exactly one definition for a capability, or reports
// why it cannot.
//
// The algorithm: gather definitions satisfying the capability that pass the
// eligibility check; an explicit name short-circuits disambiguation to an
// exact match; otherwise primary candidates at the highest priority displace
// plain and lower-priority ones. Exactly one survivor wins. A priority tie
// is AmbiguousError with the tied names, never a silent pick. Zero
// survivors is NotFoundError.
func (c *Container) selectCandidate(cap Capability, name string) (*Definition, error) {
	profiles, properties := c.env.snapshot()

	c.regMu.RLock()
	all := c.registry.findByCapability(cap)
	c.regMu.RUnlock()

	eligible := all[:0]
	for _, def := range all {
		if isEligible(def, profiles, properties) {
			eligible = append(eligible, def)
		}
	}

	if name != "" {
		for _, def := range eligible {
			if def.name == name {
				return def, nil
			}
		}
		return nil, &NotFoundError{Capability: cap.String(), Name: name}
	}

	var primaries []*Definition
	for _, def := range eligible {
		if def.qual.primary {
			primaries = append(primaries, def)
		}
	}

	candidates := eligible
	if len(primaries) > 0 {
		top := primaries[0].qual.priority
		for _, def := range primaries[1:] {
			if def.qual.priority > top {
				top = def.qual.priority
			}
		}
		candidates = candidates[:0]
		for _, def := range primaries {
			if def.qual.priority == top {
				candidates = append(candidates, def)
			}
		}
	}

	switch len(candidates) {
	case 0:
		return nil, &NotFoundError{Capability: cap.String()}
	case 1:
		return candidates[0], nil
	default:
		names := make([]string, len(candidates))
		for i, def := range candidates {
			names[i] = def.name
		}
		sort.Strings(names)
		return nil, &AmbiguousError{Capability: cap.String(), Candidates: names}
	}
}
