// Package helper defines the helper registry: named test operations, each
// either synchronous or asynchronous, bound to handler functions that act
// on an application under test.
//
// Helpers must be registered before a session starts draining; the session
// freezes the registry at construction and late registration fails with
// RegistryFrozenError. Built-in helpers covering the standard acceptance
// surface (visit, click, fillIn, find, ...) are installed by
// RegisterBuiltins and delegate to the Application interface, which the
// caller implements; this package never touches routing or rendering
// itself.
package helper
