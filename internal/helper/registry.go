package helper

import (
	"sort"
	"sync"

	"github.com/stagehand-dev/stagehand/internal/pending"
)

// Kind distinguishes synchronous from asynchronous helpers.
//
// The kind is fixed at registration time, never inferred per call. A sync
// helper executes immediately at call time and bypasses the queue; an
// async helper enqueues a pending entry whose completion the queue awaits.
type Kind int

const (
	// KindSync marks helpers that execute immediately and return a value.
	KindSync Kind = iota + 1
	// KindAsync marks helpers that return a completion future.
	KindAsync
)

// String returns the lowercase kind name used in traces and logs.
func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	default:
		return "unknown"
	}
}

// SyncFunc is the handler shape for synchronous helpers.
// It runs to completion before returning; its effects are observable
// immediately at the call site.
type SyncFunc func(hc *Context, args ...any) (any, error)

// AsyncFunc is the handler shape for asynchronous helpers.
// The returned Result may settle after the function returns; the queue
// waits for it before starting the next entry.
type AsyncFunc func(hc *Context, args ...any) *pending.Result

// Descriptor is an immutable registered helper: a unique name, a kind,
// and the handler for that kind.
type Descriptor struct {
	name  string
	kind  Kind
	sync  SyncFunc
	async AsyncFunc
}

// Name returns the helper's unique name.
func (d *Descriptor) Name() string { return d.name }

// Kind returns the helper's registered kind.
func (d *Descriptor) Kind() Kind { return d.kind }

// InvokeSync runs a sync helper's handler.
// Panics if the descriptor is not KindSync (programmer error: the caller
// must branch on Kind first).
func (d *Descriptor) InvokeSync(hc *Context, args ...any) (any, error) {
	if d.kind != KindSync {
		panic("helper: InvokeSync on async descriptor " + d.name)
	}
	return d.sync(hc, args...)
}

// InvokeAsync runs an async helper's handler and returns its completion future.
// Panics if the descriptor is not KindAsync.
func (d *Descriptor) InvokeAsync(hc *Context, args ...any) *pending.Result {
	if d.kind != KindAsync {
		panic("helper: InvokeAsync on sync descriptor " + d.name)
	}
	return d.async(hc, args...)
}

// Registry maps helper names to descriptors.
//
// Registration happens during suite setup; the registry is frozen when a
// session is created and rejects registration afterwards. Lookup remains
// available after freezing.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex,
// though registration is normally single-threaded setup code.
type Registry struct {
	mu      sync.Mutex
	helpers map[string]*Descriptor
	frozen  bool
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{helpers: make(map[string]*Descriptor)}
}

// RegisterHelper registers a synchronous helper.
// Fails with DuplicateNameError if the name exists and RegistryFrozenError
// after the registry froze.
func (r *Registry) RegisterHelper(name string, fn SyncFunc) error {
	return r.register(&Descriptor{name: name, kind: KindSync, sync: fn})
}

// RegisterAsyncHelper registers an asynchronous helper.
// Fails with DuplicateNameError if the name exists and RegistryFrozenError
// after the registry froze.
func (r *Registry) RegisterAsyncHelper(name string, fn AsyncFunc) error {
	return r.register(&Descriptor{name: name, kind: KindAsync, async: fn})
}

func (r *Registry) register(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return NewRegistryFrozenError(d.name)
	}
	if _, exists := r.helpers[d.name]; exists {
		return NewDuplicateNameError(d.name)
	}
	r.helpers[d.name] = d
	return nil
}

// Lookup returns the descriptor for a name.
// Fails with UnknownHelperError if the name is not registered.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.helpers[name]
	if !ok {
		return nil, NewUnknownHelperError(name)
	}
	return d, nil
}

// Freeze marks the registry as closed to further registration.
// Idempotent. Called by the session at construction so every helper
// exists before the queue first drains.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// Names returns all registered helper names in sorted order.
// Used for diagnostics and introspection.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.helpers))
	for name := range r.helpers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
