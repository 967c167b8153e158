package helper

import (
	"fmt"

	"github.com/stagehand-dev/stagehand/internal/pending"
)

// RegisterFunc registers a custom helper, deriving the Sync/Async kind
// from the handler's type at registration time.
//
// Accepted handler shapes:
//
//	func(hc *Context, args ...any) (any, error)        -> sync
//	func(hc *Context, args ...any) *pending.Result     -> async
//
// Any other shape fails with an INVALID_HANDLER registry error. The kind
// is fixed here, once; it is never re-inferred when the helper is called.
func RegisterFunc(r *Registry, name string, fn any) error {
	switch f := fn.(type) {
	case SyncFunc:
		return r.RegisterHelper(name, f)
	case func(*Context, ...any) (any, error):
		return r.RegisterHelper(name, f)
	case AsyncFunc:
		return r.RegisterAsyncHelper(name, f)
	case func(*Context, ...any) *pending.Result:
		return r.RegisterAsyncHelper(name, f)
	default:
		return &RegistryError{
			Code:    ErrCodeInvalidHandler,
			Name:    name,
			Message: fmt.Sprintf("unsupported handler type %T", fn),
		}
	}
}
