package helper

import "github.com/stagehand-dev/stagehand/internal/pending"

// Application is the surface the built-in helpers drive.
//
// The application under test (routing, rendering, event handling) is an
// external collaborator; this interface is the full extent of what the
// helper layer knows about it. Async operations return a completion
// future that the application settles once the resulting work (navigation,
// re-render, follow-on requests) has finished. Sync reads reflect the
// application's state at the moment of the call.
type Application interface {
	// Visit navigates to a URL. Settles after the resulting work finishes.
	Visit(url string) *pending.Result

	// Click simulates a click on the first element matching selector.
	Click(selector string) *pending.Result

	// FillIn sets the value of the input matching selector.
	FillIn(selector, text string) *pending.Result

	// KeyEvent simulates a key event (keydown, keypress, keyup) on selector.
	KeyEvent(selector, eventType string, keyCode int) *pending.Result

	// TriggerEvent simulates an arbitrary event on selector with options.
	TriggerEvent(selector, eventType string, options map[string]any) *pending.Result

	// CurrentPath returns the current route path.
	CurrentPath() string

	// CurrentRouteName returns the name of the active route.
	CurrentRouteName() string

	// CurrentURL returns the full current URL.
	CurrentURL() string

	// Find returns the elements matching selector, scoped to the given
	// context selector; an empty scope means the application root.
	Find(selector, scope string) []string
}
