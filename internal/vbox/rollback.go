package vbox

import (
	"github.com/hashicorp/go-multierror"
)

// undoLog is the compensating-action log for compound writers like
// CreateVM: each successful step pushes a compensation, and on failure
// the log unwinds them in reverse order. Compensation failures are
// aggregated and surfaced in the primary error's detail — they never
// replace the primary error, per the propagation policy.
type undoLog struct {
	actions []func() error
}

func (u *undoLog) push(action func() error) {
	u.actions = append(u.actions, action)
}

// run executes the pushed compensations in reverse order, continuing
// past individual failures, and returns their aggregate.
func (u *undoLog) run() error {
	var result *multierror.Error
	for i := len(u.actions) - 1; i >= 0; i-- {
		if err := u.actions[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result == nil {
		return nil
	}
	return result.ErrorOrNil()
}
