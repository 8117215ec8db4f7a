package cask

// definitionRegistry stores component definitions and the capability index.
// Metadata only: instantiation never happens here.
type definitionRegistry struct {
	byName       map[string]*Definition
	byCapability map[Capability][]*Definition
	order        []string
}

func newDefinitionRegistry() *definitionRegistry {
	return &definitionRegistry{
		byName:       make(map[string]*Definition),
		byCapability: make(map[Capability][]*Definition),
	}
}

// register adds a definition, indexing every declared capability. Name
// collisions fail with DuplicateNameError unless the incoming definition
// requested overwrite; overwriting removes the old definition from the
// capability index first. Caller holds the container's registry lock.
func (r *definitionRegistry) register(def *Definition) error {
	if err := def.validate(); err != nil {
		return err
	}

	if existing, exists := r.byName[def.name]; exists {
		if !def.overwrite {
			return &DuplicateNameError{Name: def.name}
		}
		r.unindex(existing)
	} else {
		r.order = append(r.order, def.name)
	}

	r.byName[def.name] = def
	for _, cap := range def.capabilities {
		r.byCapability[cap] = append(r.byCapability[cap], def)
	}
	return nil
}

func (r *definitionRegistry) unindex(def *Definition) {
	for _, cap := range def.capabilities {
		defs := r.byCapability[cap]
		for i, d := range defs {
			if d.name == def.name {
				r.byCapability[cap] = append(defs[:i], defs[i+1:]...)
				break
			}
		}
	}
}

// findByName returns the definition registered under name.
func (r *definitionRegistry) findByName(name string) (*Definition, bool) {
	def, ok := r.byName[name]
	return def, ok
}

// findByCapability returns all definitions whose capability set includes
// cap, independent of eligibility.
func (r *definitionRegistry) findByCapability(cap Capability) []*Definition {
	defs := r.byCapability[cap]
	out := make([]*Definition, len(defs))
	copy(out, defs)
	return out
}

// all returns every definition in registration order.
func (r *definitionRegistry) all() []*Definition {
	out := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		if def, ok := r.byName[name]; ok {
			out = append(out, def)
		}
	}
	return out
}
