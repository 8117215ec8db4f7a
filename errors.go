package cask

import (
	"fmt"
	"strings"
)

// DuplicateNameError is returned when a definition name is already taken
// and overwrite was not requested.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("definition %q is already registered", e.Name)
}

// NotFoundError is returned when no eligible definition satisfies a
// requested capability.
type NotFoundError struct {
	Capability string
	Name       string
}

func (e *NotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("no eligible definition named %q for capability %s", e.Name, e.Capability)
	}
	return fmt.Sprintf("no eligible definition for capability %s", e.Capability)
}

// AmbiguousError is returned when more than one candidate survives
// disambiguation at the same highest priority. The tied candidates are
// listed so the misconfiguration can be diagnosed; the container never
// picks one arbitrarily.
type AmbiguousError struct {
	Capability string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous candidates for capability %s: %s",
		e.Capability, strings.Join(e.Candidates, ", "))
}

// CircularDependencyError is returned when a cycle runs through mandatory
// constructor wiring. Chain holds the definition names along the cycle,
// ending with the definition that closed it.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Chain, " -> "))
}

// NoActiveContextError is returned when a request- or session-scoped
// definition is resolved without an active context token.
type NoActiveContextError struct {
	Name  string
	Scope ScopeKind
}

func (e *NoActiveContextError) Error() string {
	return fmt.Sprintf("definition %q has scope %s but no active %s context", e.Name, e.Scope, e.Scope)
}

// InitializationError is returned when a definition's factory or
// initializer hook fails. The instance is not cached.
type InitializationError struct {
	Name string
	Err  error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization failed for definition %q: %v", e.Name, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// DestroyError wraps a destructor hook failure. Collected during shutdown,
// never fatal to the overall teardown.
type DestroyError struct {
	Name string
	Err  error
}

func (e *DestroyError) Error() string {
	return fmt.Sprintf("destroy failed for definition %q: %v", e.Name, e.Err)
}

func (e *DestroyError) Unwrap() error {
	return e.Err
}

// ContainerClosedError is returned by every operation once the container
// has shut down.
type ContainerClosedError struct {
	Op string
}

func (e *ContainerClosedError) Error() string {
	return fmt.Sprintf("container is shut down: %s rejected", e.Op)
}
