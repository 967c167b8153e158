package app

import "fmt"

// Config declares the pages of a scripted application.
type Config struct {
	// BaseURL prefixes CurrentURL results, e.g. "http://localhost:4200".
	BaseURL string `yaml:"base_url"`

	// Pages are the navigable pages, keyed by Path.
	Pages []Page `yaml:"pages"`
}

// Page is one navigable page of the scripted application.
type Page struct {
	// Path is the page's route path, e.g. "/contacts".
	Path string `yaml:"path"`

	// Route is the route name, e.g. "contacts.index".
	Route string `yaml:"route"`

	// Elements are the page's elements, matched by selector.
	Elements []Element `yaml:"elements"`
}

// Element is one element on a page.
type Element struct {
	// Selector identifies the element, e.g. "#create" or ".contact".
	Selector string `yaml:"selector"`

	// Text is the element's display text, returned by Find.
	Text string `yaml:"text"`

	// Value is the element's input value, mutable via FillIn.
	Value string `yaml:"value"`

	// Container scopes the element for scoped Find lookups.
	Container string `yaml:"container"`

	// OnClick is the action performed when the element is clicked.
	OnClick *ClickAction `yaml:"on_click"`
}

// ClickAction describes the effect of clicking an element.
// Exactly the set fields apply; an empty action is a no-op click.
type ClickAction struct {
	// Goto navigates to the page with this path.
	Goto string `yaml:"goto"`

	// Add appends an element to the current page.
	Add *Element `yaml:"add"`

	// Remove deletes the first element matching this selector from the
	// current page.
	Remove string `yaml:"remove"`
}

// Validate checks the config for structural problems: at least one page,
// no duplicate paths, no element without a selector, and click targets
// that point at declared pages.
func (c *Config) Validate() error {
	if len(c.Pages) == 0 {
		return fmt.Errorf("app config: at least one page is required")
	}

	paths := make(map[string]bool, len(c.Pages))
	for i, p := range c.Pages {
		if p.Path == "" {
			return fmt.Errorf("app config: page %d has no path", i)
		}
		if paths[p.Path] {
			return fmt.Errorf("app config: duplicate page path %q", p.Path)
		}
		paths[p.Path] = true

		for j, el := range p.Elements {
			if el.Selector == "" {
				return fmt.Errorf("app config: page %q element %d has no selector", p.Path, j)
			}
		}
	}

	for _, p := range c.Pages {
		for _, el := range p.Elements {
			if el.OnClick != nil && el.OnClick.Goto != "" && !paths[el.OnClick.Goto] {
				return fmt.Errorf("app config: element %q on page %q clicks through to undeclared path %q",
					el.Selector, p.Path, el.OnClick.Goto)
			}
		}
	}

	return nil
}
