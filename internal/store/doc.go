// Package store persists recorded run traces in SQLite.
//
// A run is one session execution identified by its run token; its trace
// is the ordered list of queue events the session recorded. Arguments
// are stored as canonical JSON (RFC 8785), so a persisted trace can be
// compared byte for byte against a fresh run of the same scenario.
package store
