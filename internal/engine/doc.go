// Package engine implements the execution queue at the heart of stagehand.
//
// A Session binds a frozen helper registry to an application under test.
// Calling a sync helper executes it immediately; calling an async helper
// appends a pending entry to a strict FIFO queue. Drain processes entries
// one at a time, waiting on each entry's completion future before starting
// the next, so enqueue order is always execution order regardless of each
// helper's latency. Barrier entries (AndThen) run their callback only once
// every earlier entry is terminal.
//
// Helpers called while another helper's handler is running become children
// of the running entry: they execute right after the parent's own work and
// the parent only settles once all of its children have. Barrier callbacks
// are the exception; helpers they call are appended to the top-level queue,
// after the barrier.
//
// A failed entry is recorded and draining continues; failures surface
// through Session.Failures rather than aborting the run.
package engine
