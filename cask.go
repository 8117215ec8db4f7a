// Package cask is a dependency-resolution and lifecycle container. It turns
// registered component definitions into a working object graph: it decides
// which implementation satisfies a requested capability under primary and
// profile rules, manages per-scope instance caches, and coordinates orderly
// startup and reverse-order shutdown.
//
// Resolution is predictable by design: multiple equally-qualified candidates
// for one capability fail with AmbiguousError instead of a silent pick, and
// every resolution error names the definitions involved.
//
// Basic usage:
//
//	c := cask.New()
//	_ = cask.Register[Greeter](c, "greeter",
//	    func(ctx context.Context, c *cask.Container, deps []any) (Greeter, error) {
//	        return &EnglishGreeter{}, nil
//	    })
//	g, err := cask.BeanOf[Greeter](context.Background(), c)
package cask
