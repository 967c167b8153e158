// Package app provides a scripted application double that the built-in
// helpers drive during scenario runs.
//
// A ScriptedApp is configured declaratively: a set of pages, each with a
// URL, a route name, and elements; elements may carry click actions that
// navigate or mutate the page. All operations are deterministic, so a
// scenario run against the same script always produces the same trace.
package app
