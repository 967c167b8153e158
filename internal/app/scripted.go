package app

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/stagehand-dev/stagehand/internal/pending"
)

// ScriptedApp is a deterministic in-memory application driven by the
// built-in helpers. It implements helper.Application.
//
// Async operations mutate state synchronously under the app mutex and
// settle their completion future from a separate goroutine, so callers
// exercise the real wait path without nondeterminism: the mutation is
// already applied when the future settles.
//
// Thread-safety: all methods are safe for concurrent use, though the
// session's drain loop is normally the only caller.
type ScriptedApp struct {
	log *slog.Logger

	mu      sync.Mutex
	cfg     Config
	pages   map[string]*pageState
	current string   // current page path, "" before the first Visit
	events  []string // interaction log for assertions
}

// pageState is the mutable runtime copy of a configured page.
type pageState struct {
	path     string
	route    string
	elements []Element
}

// ScriptedAppOption configures a ScriptedApp.
type ScriptedAppOption func(*ScriptedApp)

// WithAppLogger sets the app's structured logger.
// Defaults to slog.Default().
func WithAppLogger(log *slog.Logger) ScriptedAppOption {
	return func(a *ScriptedApp) { a.log = log }
}

// NewScriptedApp builds a ScriptedApp from a validated config.
func NewScriptedApp(cfg Config, opts ...ScriptedAppOption) (*ScriptedApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &ScriptedApp{
		log:   slog.Default(),
		cfg:   cfg,
		pages: make(map[string]*pageState, len(cfg.Pages)),
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, p := range cfg.Pages {
		a.pages[p.Path] = &pageState{
			path:     p.Path,
			route:    p.Route,
			elements: slices.Clone(p.Elements),
		}
	}

	return a, nil
}

// settle applies fn under the app mutex and returns a future that a
// goroutine settles with fn's outcome. State is mutated before the
// future is created, so observers that run after settlement see the
// effect.
func (a *ScriptedApp) settle(fn func() error) *pending.Result {
	a.mu.Lock()
	err := fn()
	a.mu.Unlock()

	p := pending.New()
	go func() {
		if err != nil {
			p.Fail(err)
			return
		}
		p.Fulfill(nil)
	}()
	return p
}

// Visit navigates to the page with the given path.
func (a *ScriptedApp) Visit(url string) *pending.Result {
	return a.settle(func() error {
		if _, ok := a.pages[url]; !ok {
			return fmt.Errorf("app: no page with path %q", url)
		}
		a.current = url
		a.events = append(a.events, "visit "+url)
		a.log.Debug("app visit", "path", url)
		return nil
	})
}

// Click runs the click action of the first element matching selector on
// the current page.
func (a *ScriptedApp) Click(selector string) *pending.Result {
	return a.settle(func() error {
		page, el, err := a.findLocked(selector)
		if err != nil {
			return err
		}
		a.events = append(a.events, "click "+selector)

		act := el.OnClick
		if act == nil {
			return nil
		}
		if act.Add != nil {
			page.elements = append(page.elements, *act.Add)
		}
		if act.Remove != "" {
			for i, cand := range page.elements {
				if cand.Selector == act.Remove {
					page.elements = slices.Delete(page.elements, i, i+1)
					break
				}
			}
		}
		if act.Goto != "" {
			a.current = act.Goto
		}
		a.log.Debug("app click", "selector", selector)
		return nil
	})
}

// FillIn sets the value of the input matching selector.
func (a *ScriptedApp) FillIn(selector, text string) *pending.Result {
	return a.settle(func() error {
		_, el, err := a.findLocked(selector)
		if err != nil {
			return err
		}
		el.Value = text
		a.events = append(a.events, fmt.Sprintf("fillIn %s %q", selector, text))
		return nil
	})
}

// KeyEvent records a key event on the element matching selector.
func (a *ScriptedApp) KeyEvent(selector, eventType string, keyCode int) *pending.Result {
	return a.settle(func() error {
		if _, _, err := a.findLocked(selector); err != nil {
			return err
		}
		a.events = append(a.events, fmt.Sprintf("keyEvent %s %s %d", selector, eventType, keyCode))
		return nil
	})
}

// TriggerEvent records an arbitrary event on the element matching selector.
func (a *ScriptedApp) TriggerEvent(selector, eventType string, options map[string]any) *pending.Result {
	return a.settle(func() error {
		if _, _, err := a.findLocked(selector); err != nil {
			return err
		}
		if len(options) > 0 {
			a.events = append(a.events, fmt.Sprintf("triggerEvent %s %s %d", selector, eventType, len(options)))
		} else {
			a.events = append(a.events, fmt.Sprintf("triggerEvent %s %s", selector, eventType))
		}
		return nil
	})
}

// findLocked locates the first element matching selector on the current
// page. Caller holds the mutex.
func (a *ScriptedApp) findLocked(selector string) (*pageState, *Element, error) {
	if a.current == "" {
		return nil, nil, fmt.Errorf("app: no current page, visit first")
	}
	page := a.pages[a.current]
	for i := range page.elements {
		if page.elements[i].Selector == selector {
			return page, &page.elements[i], nil
		}
	}
	return nil, nil, fmt.Errorf("app: no element %q on page %q", selector, a.current)
}

// CurrentPath returns the current page path, "" before the first Visit.
func (a *ScriptedApp) CurrentPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// CurrentRouteName returns the route name of the current page.
func (a *ScriptedApp) CurrentRouteName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == "" {
		return ""
	}
	return a.pages[a.current].route
}

// CurrentURL returns the base URL joined with the current path.
func (a *ScriptedApp) CurrentURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == "" {
		return a.cfg.BaseURL
	}
	return a.cfg.BaseURL + a.current
}

// Find returns the texts of elements matching selector on the current
// page, scoped to elements whose container equals scope when scope is
// non-empty. Elements without text report their selector.
func (a *ScriptedApp) Find(selector, scope string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == "" {
		return nil
	}

	var out []string
	for _, el := range a.pages[a.current].elements {
		if el.Selector != selector {
			continue
		}
		if scope != "" && el.Container != scope {
			continue
		}
		if el.Text != "" {
			out = append(out, el.Text)
		} else {
			out = append(out, el.Selector)
		}
	}
	return out
}

// Value returns the current input value of the element matching selector
// on the current page. Used by barrier assertions.
func (a *ScriptedApp) Value(selector string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, el, err := a.findLocked(selector)
	if err != nil {
		return "", err
	}
	return el.Value, nil
}

// Events returns the interaction log in order.
func (a *ScriptedApp) Events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.events)
}
