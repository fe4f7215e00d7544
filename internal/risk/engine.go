package risk

import "kraken-mm/pkg/types"

// Engine runs an ordered list of checks and classifies the collected reasons
// into Approved, Hold, or Rejected with corrective actions.
type Engine struct {
	checks []Check
}

// NewEngine builds the engine from an ordered check pipeline. Order does not
// affect the outcome (every check always runs), but is preserved for
// deterministic logging.
func NewEngine(checks ...Check) *Engine {
	return &Engine{checks: checks}
}

// Evaluate runs every check, collecting all reasons, and classifies the
// result. A Rejected decision carries required_actions=[CancelAll].
func (e *Engine) Evaluate(ctx Context) Decision {
	var reasons []Reason
	for _, c := range e.checks {
		reasons = append(reasons, c.Evaluate(ctx)...)
	}

	if len(reasons) == 0 {
		return Decision{Outcome: Approved, Target: ctx.Target}
	}

	for _, r := range reasons {
		if hardReasons[r.Kind] {
			return Decision{
				Outcome:         Rejected,
				Reasons:         reasons,
				RequiredActions: []types.OrderAction{types.CancelAllAction()},
			}
		}
	}

	return Decision{Outcome: Hold, Reasons: reasons}
}
