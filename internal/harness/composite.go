package harness

import (
	"fmt"

	"github.com/stagehand-dev/stagehand/internal/engine"
	"github.com/stagehand-dev/stagehand/internal/helper"
	"github.com/stagehand-dev/stagehand/internal/pending"
)

// registerComposites registers the scenario's composite helpers.
//
// A composite is an async helper whose handler calls its declared steps
// through the session; those calls attach as children of the composite's
// entry and finish before the entry settles. The session pointer is
// resolved lazily because the session does not exist until after the
// registry is complete.
func registerComposites(reg *helper.Registry, composites []CompositeHelper, sess **engine.Session) error {
	for _, comp := range composites {
		steps := comp.Steps
		name := comp.Name

		err := reg.RegisterAsyncHelper(name, func(hc *helper.Context, args ...any) *pending.Result {
			s := *sess
			if s == nil {
				return pending.Failed(fmt.Errorf("composite %s invoked without a session", name))
			}
			for _, step := range steps {
				if _, err := s.Call(step.Call, step.Args...); err != nil {
					return pending.Failed(fmt.Errorf("composite %s: %w", name, err))
				}
			}
			return pending.Fulfilled(nil)
		})
		if err != nil {
			return fmt.Errorf("failed to register composite %q: %w", comp.Name, err)
		}
	}
	return nil
}
