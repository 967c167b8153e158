// Package harness runs declarative test scenarios against the helper
// queue and a scripted application.
//
// A scenario is a YAML file: the application script (pages and elements),
// optional composite helpers, a flow of helper calls and wait barriers,
// and assertions over the recorded trace. Scenarios run with fixed run
// tokens and a logical clock, so the same scenario always produces the
// same trace, which golden files capture byte for byte.
package harness
