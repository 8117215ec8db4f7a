package cask

// DefinitionInfo is a read-only diagnostic view of one definition.
type DefinitionInfo struct {
	Name         string
	Capabilities []string
	Scope        ScopeKind
	Primary      bool
	Priority     int
	Profile      string
	Dependencies []string
	Instantiated bool
}

// Inspect returns diagnostic information about a definition. A zero-value
// info with only Name set means the definition does not exist.
func (c *Container) Inspect(name string) DefinitionInfo {
	c.regMu.RLock()
	def, ok := c.registry.findByName(name)
	c.regMu.RUnlock()

	if !ok {
		return DefinitionInfo{Name: name}
	}
	return c.describe(def)
}

func (c *Container) describe(def *Definition) DefinitionInfo {
	caps := make([]string, len(def.capabilities))
	for i, cap := range def.capabilities {
		caps[i] = cap.String()
	}
	deps := make([]string, len(def.dependencies))
	for i, dep := range def.dependencies {
		deps[i] = dep.String()
	}

	instantiated := false
	switch def.scope {
	case ScopeSingleton:
		_, instantiated = c.scopes.singletons.lookup(def.name)
	case ScopeApplication:
		_, instantiated = c.scopes.application.lookup(def.name)
	}

	return DefinitionInfo{
		Name:         def.name,
		Capabilities: caps,
		Scope:        def.scope,
		Primary:      def.qual.primary,
		Priority:     def.qual.priority,
		Profile:      def.qual.profile,
		Dependencies: deps,
		Instantiated: instantiated,
	}
}

// DefinitionQuery filters definitions for Query.
type DefinitionQuery struct {
	// Scope matches definitions of the given scope kind; empty matches all.
	Scope ScopeKind

	// Profile matches alternatives gated behind the given profile.
	Profile string

	// Primary filters by the primary qualifier; nil matches all.
	Primary *bool

	// Instantiated filters singletons and application definitions by
	// whether an instance is cached; nil matches all.
	Instantiated *bool
}

// Query returns diagnostic views of all definitions matching the criteria.
func (c *Container) Query(query DefinitionQuery) []DefinitionInfo {
	c.regMu.RLock()
	defs := c.registry.all()
	c.regMu.RUnlock()

	var results []DefinitionInfo
	for _, def := range defs {
		info := c.describe(def)

		if query.Scope != "" && info.Scope != query.Scope {
			continue
		}
		if query.Profile != "" && info.Profile != query.Profile {
			continue
		}
		if query.Primary != nil && info.Primary != *query.Primary {
			continue
		}
		if query.Instantiated != nil && info.Instantiated != *query.Instantiated {
			continue
		}
		results = append(results, info)
	}
	return results
}
