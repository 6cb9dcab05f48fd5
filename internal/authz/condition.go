package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ConditionKind discriminates the closed set of condition variants.
type ConditionKind string

const (
	ConditionResourceOwnership ConditionKind = "resource_ownership"
	ConditionTimeRestriction   ConditionKind = "time_restriction"
)

// HourRange is an inclusive [Start, End] window in local hour-of-day.
type HourRange struct {
	Start int
	End   int
}

// Condition guards a role-permission binding. Exactly one variant is
// populated depending on Kind.
type Condition struct {
	Kind ConditionKind

	// resource_ownership
	ResourceType string

	// time_restriction
	AllowedHours *HourRange
	AllowedDays  []time.Weekday
}

type conditionWire struct {
	Type         string  `json:"type"`
	ResourceType string  `json:"resource_type,omitempty"`
	AllowedHours *[2]int `json:"allowed_hours,omitempty"`
	AllowedDays  []int   `json:"allowed_days,omitempty"`
}

// ParseConditions decodes the stored condition payload of a binding. The
// payload is either a single condition object or an array of them. Unknown
// shapes are rejected here, at load time, never at evaluation time.
func ParseConditions(raw []byte) ([]Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wires []conditionWire
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &wires); err != nil {
			return nil, fmt.Errorf("authz: decode conditions: %w", err)
		}
	} else {
		var single conditionWire
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("authz: decode condition: %w", err)
		}
		wires = []conditionWire{single}
	}

	conds := make([]Condition, 0, len(wires))
	for _, w := range wires {
		cond, err := w.toCondition()
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

func (w conditionWire) toCondition() (Condition, error) {
	switch ConditionKind(w.Type) {
	case ConditionResourceOwnership:
		if w.ResourceType == "" {
			return Condition{}, fmt.Errorf("authz: resource_ownership condition requires resource_type")
		}
		return Condition{Kind: ConditionResourceOwnership, ResourceType: w.ResourceType}, nil
	case ConditionTimeRestriction:
		cond := Condition{Kind: ConditionTimeRestriction}
		if w.AllowedHours != nil {
			start, end := w.AllowedHours[0], w.AllowedHours[1]
			if start < 0 || end > 23 || start > end {
				return Condition{}, fmt.Errorf("authz: allowed_hours [%d,%d] out of range", start, end)
			}
			cond.AllowedHours = &HourRange{Start: start, End: end}
		}
		for _, d := range w.AllowedDays {
			if d < 0 || d > 6 {
				return Condition{}, fmt.Errorf("authz: allowed_days entry %d out of range", d)
			}
			cond.AllowedDays = append(cond.AllowedDays, time.Weekday(d))
		}
		if cond.AllowedHours == nil && len(cond.AllowedDays) == 0 {
			return Condition{}, fmt.Errorf("authz: time_restriction condition is empty")
		}
		return cond, nil
	default:
		return Condition{}, fmt.Errorf("%w: %q", ErrUnknownCondition, w.Type)
	}
}

// Summary describes the condition in decision reasons.
func (c Condition) Summary() string {
	switch c.Kind {
	case ConditionResourceOwnership:
		return fmt.Sprintf("owns %s", c.ResourceType)
	case ConditionTimeRestriction:
		return "within allowed time"
	default:
		return string(c.Kind)
	}
}

// Clock supplies the current time. The evaluator never reads the wall
// clock directly so time-based grants stay testable.
type Clock func() time.Time

// Evaluator applies conditional grants against a request. It is pure
// except for the ownership lookups behind the registered checkers.
type Evaluator struct {
	clock  Clock
	owners map[string]OwnershipChecker
}

// NewEvaluator constructs an Evaluator with the given clock.
func NewEvaluator(clock Clock) *Evaluator {
	if clock == nil {
		clock = time.Now
	}
	return &Evaluator{clock: clock, owners: make(map[string]OwnershipChecker)}
}

// RegisterOwnership adds a checker for one resource type. Adding resource
// kinds is additive; the evaluator itself never grows per-type branches.
func (e *Evaluator) RegisterOwnership(resourceType string, checker OwnershipChecker) {
	e.owners[resourceType] = checker
}

// Evaluate checks every condition in fixed order: ownership first, then
// time, short-circuiting on the first failure. A non-nil error means a
// storage failure, not a failed condition.
func (e *Evaluator) Evaluate(ctx context.Context, conds []Condition, req Request) (Decision, error) {
	for _, cond := range conds {
		if cond.Kind != ConditionResourceOwnership {
			continue
		}
		dec, err := e.evaluateOwnership(ctx, cond, req)
		if err != nil || !dec.Granted {
			return dec, err
		}
	}
	for _, cond := range conds {
		if cond.Kind != ConditionTimeRestriction {
			continue
		}
		if dec := e.evaluateTime(cond); !dec.Granted {
			return dec, nil
		}
	}
	return Decision{Granted: true, Reason: "conditions satisfied"}, nil
}

func (e *Evaluator) evaluateOwnership(ctx context.Context, cond Condition, req Request) (Decision, error) {
	denied := Decision{Granted: false, Reason: "resource ownership required"}
	if req.ResourceID == "" {
		return denied, nil
	}
	checker, ok := e.owners[cond.ResourceType]
	if !ok {
		return denied, nil
	}
	owns, err := checker.IsOwner(ctx, req.ResourceID, req.UserID, req.BusinessID)
	if err != nil {
		return Decision{}, fmt.Errorf("authz: ownership lookup %s/%s: %w", cond.ResourceType, req.ResourceID, err)
	}
	if !owns {
		return denied, nil
	}
	return Decision{Granted: true}, nil
}

func (e *Evaluator) evaluateTime(cond Condition) Decision {
	now := e.clock()
	if hr := cond.AllowedHours; hr != nil {
		hour := now.Hour()
		if hour < hr.Start || hour > hr.End {
			return Decision{Granted: false, Reason: fmt.Sprintf("outside allowed hours (%02d-%02d)", hr.Start, hr.End)}
		}
	}
	if len(cond.AllowedDays) > 0 {
		day := now.Weekday()
		allowed := false
		for _, d := range cond.AllowedDays {
			if d == day {
				allowed = true
				break
			}
		}
		if !allowed {
			return Decision{Granted: false, Reason: "outside allowed days"}
		}
	}
	return Decision{Granted: true}
}
