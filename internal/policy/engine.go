// internal/policy/engine.go
// Priority-ordered policy evaluation. The engine has no state of its own;
// each Evaluate works on a snapshot of the store taken up front, so
// concurrent policy mutations cannot change a walk in progress.
package policy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Engine evaluates policies against a Context.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Store exposes the underlying policy store for management handlers.
func (e *Engine) Store() Store { return e.store }

// Evaluate returns the verdict of the highest-priority matching policy for
// ctx.Resource, or the default allow when nothing matches. The walk stops
// at the first match regardless of action. Ties in priority keep the
// snapshot order, which is stable within one evaluation only.
func (e *Engine) Evaluate(ctx Context) Result {
	snapshot := e.store.List()

	applicable := snapshot[:0]
	for _, p := range snapshot {
		if p.Enabled && p.Resource == ctx.Resource {
			applicable = append(applicable, p)
		}
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].Priority > applicable[j].Priority
	})

	for _, p := range applicable {
		if !conditionsMatch(p.Conditions, ctx) {
			continue
		}
		return Result{
			Allowed:  p.Action != ActionDeny,
			Action:   p.Action,
			PolicyID: p.ID,
			Message:  p.Description,
		}
	}

	return Result{Allowed: true, Action: ActionAllow, Message: "default allow"}
}

// conditionsMatch applies AND semantics; a policy with no conditions
// matches its resource unconditionally.
func conditionsMatch(conditions []Condition, ctx Context) bool {
	for _, c := range conditions {
		if !conditionMatches(c, ctx) {
			return false
		}
	}
	return true
}

func conditionMatches(c Condition, ctx Context) bool {
	field, ok := resolveField(c.Field, ctx)
	if !ok {
		return false
	}
	value := resolveValue(c.Value, ctx)

	switch c.Operator {
	case "eq":
		return stringify(field) == stringify(value)
	case "ne":
		return stringify(field) != stringify(value)
	case "gt":
		f, fok := toFloat(field)
		v, vok := toFloat(value)
		return fok && vok && f > v
	case "lt":
		f, fok := toFloat(field)
		v, vok := toFloat(value)
		return fok && vok && f < v
	case "contains":
		return strings.Contains(stringify(field), stringify(value))
	case "in":
		return valueIn(field, value)
	}
	// Unknown operators never match.
	return false
}

// resolveField reads a named context slot, falling back to Attributes. A
// missing attribute fails the condition.
func resolveField(name string, ctx Context) (any, bool) {
	switch name {
	case "operation":
		return ctx.Operation, true
	case "user_id":
		return ctx.UserID, true
	case "tenant_id":
		return ctx.TenantID, true
	case "role":
		return ctx.Role, true
	}
	v, ok := ctx.Attributes[name]
	return v, ok
}

// resolveValue substitutes the closed template set. Anything else is a
// literal; this is intentionally not an expression language.
func resolveValue(v any, ctx Context) any {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return v
	}
	switch strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}") {
	case "user_id":
		return ctx.UserID
	case "tenant_id":
		return ctx.TenantID
	}
	return v
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return fmt.Sprintf("%v", v)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

func valueIn(field, value any) bool {
	want := stringify(field)
	switch list := value.(type) {
	case []string:
		for _, item := range list {
			if item == want {
				return true
			}
		}
	case []any:
		for _, item := range list {
			if stringify(item) == want {
				return true
			}
		}
	}
	return false
}
