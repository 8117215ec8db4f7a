package cask

import (
	"sync"

	"github.com/joho/godotenv"
)

// Environment holds the active profile set and the property map consulted
// by eligibility checks. Reads are snapshot-based: a resolution sees one
// consistent view and never caches it beyond that single resolution.
type Environment struct {
	mu         sync.RWMutex
	profiles   map[string]struct{}
	properties map[string]string
}

// NewEnvironment returns an empty environment.
func NewEnvironment() *Environment {
	return &Environment{
		profiles:   make(map[string]struct{}),
		properties: make(map[string]string),
	}
}

// SetActiveProfiles replaces the active profile set.
func (e *Environment) SetActiveProfiles(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.profiles = make(map[string]struct{}, len(names))
	for _, name := range names {
		e.profiles[name] = struct{}{}
	}
}

// IsProfileActive reports whether the named profile is active.
func (e *Environment) IsProfileActive(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, active := e.profiles[name]
	return active
}

// SetProperty stores a property value.
func (e *Environment) SetProperty(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.properties[key] = value
}

// Property returns a property value and whether it is set.
func (e *Environment) Property(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, present := e.properties[key]
	return v, present
}

// LoadProperties merges key-value pairs from dotenv files into the property
// map. Existing keys are overwritten. The default file is ".env".
func (e *Environment) LoadProperties(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	loaded, err := godotenv.Read(files...)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range loaded {
		e.properties[k] = v
	}
	return nil
}

// snapshot returns copies of the profile set and property map for one
// eligibility pass.
func (e *Environment) snapshot() (map[string]struct{}, map[string]string) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	profiles := make(map[string]struct{}, len(e.profiles))
	for p := range e.profiles {
		profiles[p] = struct{}{}
	}
	properties := make(map[string]string, len(e.properties))
	for k, v := range e.properties {
		properties[k] = v
	}
	return profiles, properties
}
