package helper

import (
	"fmt"

	"github.com/stagehand-dev/stagehand/internal/pending"
)

// RegisterBuiltins installs the standard acceptance helpers on a registry.
//
// Async helpers (queued, completion awaited):
//
//	visit(url)
//	click(selector)
//	fillIn(selector, text)
//	keyEvent(selector, type, keyCode)
//	triggerEvent(selector, type, options?)
//
// Sync helpers (immediate, never queued):
//
//	currentPath() / currentRouteName() / currentURL()
//	find(selector, scope?)
//
// All of them delegate to the session's Application.
func RegisterBuiltins(r *Registry) error {
	async := map[string]AsyncFunc{
		"visit":        builtinVisit,
		"click":        builtinClick,
		"fillIn":       builtinFillIn,
		"keyEvent":     builtinKeyEvent,
		"triggerEvent": builtinTriggerEvent,
	}
	sync := map[string]SyncFunc{
		"currentPath":      builtinCurrentPath,
		"currentRouteName": builtinCurrentRouteName,
		"currentURL":       builtinCurrentURL,
		"find":             builtinFind,
	}

	// Deterministic registration order keeps error reporting stable.
	for _, name := range []string{"visit", "click", "fillIn", "keyEvent", "triggerEvent"} {
		if err := r.RegisterAsyncHelper(name, async[name]); err != nil {
			return err
		}
	}
	for _, name := range []string{"currentPath", "currentRouteName", "currentURL", "find"} {
		if err := r.RegisterHelper(name, sync[name]); err != nil {
			return err
		}
	}
	return nil
}

func builtinVisit(hc *Context, args ...any) *pending.Result {
	url, err := stringArg("visit", args, 0)
	if err != nil {
		return pending.Failed(err)
	}
	return hc.App.Visit(url)
}

func builtinClick(hc *Context, args ...any) *pending.Result {
	selector, err := stringArg("click", args, 0)
	if err != nil {
		return pending.Failed(err)
	}
	return hc.App.Click(selector)
}

func builtinFillIn(hc *Context, args ...any) *pending.Result {
	selector, err := stringArg("fillIn", args, 0)
	if err != nil {
		return pending.Failed(err)
	}
	text, err := stringArg("fillIn", args, 1)
	if err != nil {
		return pending.Failed(err)
	}
	return hc.App.FillIn(selector, text)
}

func builtinKeyEvent(hc *Context, args ...any) *pending.Result {
	selector, err := stringArg("keyEvent", args, 0)
	if err != nil {
		return pending.Failed(err)
	}
	eventType, err := stringArg("keyEvent", args, 1)
	if err != nil {
		return pending.Failed(err)
	}
	keyCode, err := intArg("keyEvent", args, 2)
	if err != nil {
		return pending.Failed(err)
	}
	return hc.App.KeyEvent(selector, eventType, keyCode)
}

func builtinTriggerEvent(hc *Context, args ...any) *pending.Result {
	selector, err := stringArg("triggerEvent", args, 0)
	if err != nil {
		return pending.Failed(err)
	}
	eventType, err := stringArg("triggerEvent", args, 1)
	if err != nil {
		return pending.Failed(err)
	}
	options, err := optionalMapArg("triggerEvent", args, 2)
	if err != nil {
		return pending.Failed(err)
	}
	return hc.App.TriggerEvent(selector, eventType, options)
}

func builtinCurrentPath(hc *Context, args ...any) (any, error) {
	return hc.App.CurrentPath(), nil
}

func builtinCurrentRouteName(hc *Context, args ...any) (any, error) {
	return hc.App.CurrentRouteName(), nil
}

func builtinCurrentURL(hc *Context, args ...any) (any, error) {
	return hc.App.CurrentURL(), nil
}

func builtinFind(hc *Context, args ...any) (any, error) {
	selector, err := stringArg("find", args, 0)
	if err != nil {
		return nil, err
	}
	scope, err := optionalStringArg("find", args, 1)
	if err != nil {
		return nil, err
	}
	return hc.App.Find(selector, scope), nil
}

// stringArg extracts a required string argument at position i.
func stringArg(helperName string, args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%s: missing argument %d (string)", helperName, i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%s: argument %d must be a string, got %T", helperName, i, args[i])
	}
	return s, nil
}

// optionalStringArg extracts an optional string argument at position i.
// Missing arguments yield the empty string.
func optionalStringArg(helperName string, args []any, i int) (string, error) {
	if i >= len(args) {
		return "", nil
	}
	return stringArg(helperName, args, i)
}

// intArg extracts a required integer argument at position i.
// YAML-sourced arguments decode as int; programmatic callers may pass int64.
func intArg(helperName string, args []any, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s: missing argument %d (int)", helperName, i)
	}
	switch v := args[i].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s: argument %d must be an int, got %T", helperName, i, args[i])
	}
}

// optionalMapArg extracts an optional map argument at position i.
func optionalMapArg(helperName string, args []any, i int) (map[string]any, error) {
	if i >= len(args) {
		return nil, nil
	}
	m, ok := args[i].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: argument %d must be a map, got %T", helperName, i, args[i])
	}
	return m, nil
}
