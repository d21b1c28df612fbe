package rules

import (
	"fmt"
	"sort"

	"github.com/visaflow/visaflow/internal/domain"
)

// TriState is the value of an expression under possibly incomplete facts.
// A missing variable yields Indeterminate, never False, so callers can tell
// "evaluates false" from "cannot be evaluated".
type TriState int

const (
	False TriState = iota
	True
	Indeterminate
)

func (t TriState) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "indeterminate"
	}
}

// EvaluationError marks a comparison that cannot be performed, e.g. ordering
// a boolean against a date. It is scoped to one requirement and never aborts
// the aggregate.
type EvaluationError struct {
	Reason string
}

func (e *EvaluationError) Error() string {
	return "evaluation error: " + e.Reason
}

// EvalResult is the outcome of evaluating one expression tree.
type EvalResult struct {
	Value   TriState
	Missing []string
}

// Evaluate walks the expression tree against the fact snapshot. Boolean
// combinators use three-valued logic so a single missing fact does not force
// the whole requirement false. Missing variable names are collected from the
// entire tree, deduplicated and sorted.
func Evaluate(expr *domain.Expression, facts domain.Facts) (EvalResult, error) {
	ev := &evaluator{facts: facts, missing: map[string]bool{}}
	v, err := ev.eval(expr)
	if err != nil {
		return EvalResult{}, err
	}
	return EvalResult{Value: v, Missing: ev.missingList()}, nil
}

type evaluator struct {
	facts   domain.Facts
	missing map[string]bool
}

func (ev *evaluator) missingList() []string {
	if len(ev.missing) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ev.missing))
	for k := range ev.missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (ev *evaluator) eval(expr *domain.Expression) (TriState, error) {
	if expr == nil {
		return Indeterminate, &EvaluationError{Reason: "nil expression"}
	}

	switch expr.Kind {
	case domain.ExprAnd:
		return ev.evalAnd(expr.Operands)
	case domain.ExprOr:
		return ev.evalOr(expr.Operands)
	case domain.ExprNot:
		v, err := ev.eval(expr.Operand)
		if err != nil {
			return Indeterminate, err
		}
		switch v {
		case True:
			return False, nil
		case False:
			return True, nil
		default:
			return Indeterminate, nil
		}
	case domain.ExprCompare:
		return ev.evalCompare(expr)
	case domain.ExprIn:
		return ev.evalIn(expr)
	case domain.ExprVar, domain.ExprLiteral:
		// A bare leaf is only meaningful when it resolves to a boolean.
		val, known, err := ev.operand(expr)
		if err != nil {
			return Indeterminate, err
		}
		if !known {
			return Indeterminate, nil
		}
		if val.Kind != domain.FactBoolean {
			return Indeterminate, &EvaluationError{
				Reason: fmt.Sprintf("non-boolean leaf %q used as condition", expr.Variable),
			}
		}
		if val.Bool {
			return True, nil
		}
		return False, nil
	default:
		return Indeterminate, &EvaluationError{Reason: fmt.Sprintf("unknown expression kind %q", expr.Kind)}
	}
}

// evalAnd and evalOr evaluate every operand so missing variables are
// collected even past a short-circuit point.
func (ev *evaluator) evalAnd(operands []*domain.Expression) (TriState, error) {
	if len(operands) == 0 {
		return Indeterminate, &EvaluationError{Reason: "and with no operands"}
	}
	result := True
	for _, op := range operands {
		v, err := ev.eval(op)
		if err != nil {
			return Indeterminate, err
		}
		switch v {
		case False:
			result = False
		case Indeterminate:
			if result != False {
				result = Indeterminate
			}
		}
	}
	return result, nil
}

func (ev *evaluator) evalOr(operands []*domain.Expression) (TriState, error) {
	if len(operands) == 0 {
		return Indeterminate, &EvaluationError{Reason: "or with no operands"}
	}
	result := False
	for _, op := range operands {
		v, err := ev.eval(op)
		if err != nil {
			return Indeterminate, err
		}
		switch v {
		case True:
			result = True
		case Indeterminate:
			if result != True {
				result = Indeterminate
			}
		}
	}
	return result, nil
}

// operand resolves a var or literal leaf. known is false when the leaf is a
// variable absent from the facts.
func (ev *evaluator) operand(expr *domain.Expression) (domain.FactValue, bool, error) {
	switch expr.Kind {
	case domain.ExprVar:
		v, ok := ev.facts[expr.Variable]
		if !ok {
			ev.missing[expr.Variable] = true
			return domain.FactValue{}, false, nil
		}
		return v, true, nil
	case domain.ExprLiteral:
		if expr.Literal == nil {
			return domain.FactValue{}, false, &EvaluationError{Reason: "literal node without value"}
		}
		return *expr.Literal, true, nil
	default:
		return domain.FactValue{}, false, &EvaluationError{
			Reason: fmt.Sprintf("operand must be var or literal, got %q", expr.Kind),
		}
	}
}

func (ev *evaluator) evalCompare(expr *domain.Expression) (TriState, error) {
	if expr.Left == nil || expr.Right == nil {
		return Indeterminate, &EvaluationError{Reason: "compare requires two operands"}
	}
	if !domain.ValidCompareOp(string(expr.Op)) {
		return Indeterminate, &EvaluationError{Reason: fmt.Sprintf("unknown compare operator %q", expr.Op)}
	}

	left, leftKnown, err := ev.operand(expr.Left)
	if err != nil {
		return Indeterminate, err
	}
	right, rightKnown, err := ev.operand(expr.Right)
	if err != nil {
		return Indeterminate, err
	}
	if !leftKnown || !rightKnown {
		return Indeterminate, nil
	}

	ok, err := compareValues(expr.Op, left, right)
	if err != nil {
		return Indeterminate, err
	}
	if ok {
		return True, nil
	}
	return False, nil
}

func (ev *evaluator) evalIn(expr *domain.Expression) (TriState, error) {
	if expr.Left == nil {
		return Indeterminate, &EvaluationError{Reason: "in requires a subject operand"}
	}
	if len(expr.Values) == 0 {
		return Indeterminate, &EvaluationError{Reason: "in with empty value set"}
	}

	subject, known, err := ev.operand(expr.Left)
	if err != nil {
		return Indeterminate, err
	}
	if !known {
		return Indeterminate, nil
	}

	for _, candidate := range expr.Values {
		eq, err := compareValues(domain.OpEq, subject, candidate)
		if err != nil {
			return Indeterminate, err
		}
		if eq {
			return True, nil
		}
	}
	return False, nil
}

// compareValues compares two fact values. The declared type is used when both
// sides agree; otherwise numeric coercion is attempted; the final fallback is
// string equality, which only supports eq/ne.
func compareValues(op domain.CompareOp, a, b domain.FactValue) (bool, error) {
	if a.Kind == b.Kind {
		switch a.Kind {
		case domain.FactNumber:
			return compareOrdered(op, a.Number, b.Number), nil
		case domain.FactDate:
			return compareDates(op, a, b)
		case domain.FactBoolean:
			switch op {
			case domain.OpEq:
				return a.Bool == b.Bool, nil
			case domain.OpNe:
				return a.Bool != b.Bool, nil
			}
			return false, &EvaluationError{Reason: fmt.Sprintf("operator %s not defined for booleans", op)}
		case domain.FactString:
			return compareOrderedStrings(op, a.Text, b.Text)
		}
	}

	if an, aok := a.AsNumber(); aok {
		if bn, bok := b.AsNumber(); bok {
			return compareOrdered(op, an, bn), nil
		}
	}

	switch op {
	case domain.OpEq:
		return a.String() == b.String(), nil
	case domain.OpNe:
		return a.String() != b.String(), nil
	}
	return false, &EvaluationError{
		Reason: fmt.Sprintf("cannot order %s against %s with %s", a.Kind, b.Kind, op),
	}
}

func compareOrdered(op domain.CompareOp, a, b float64) bool {
	switch op {
	case domain.OpEq:
		return a == b
	case domain.OpNe:
		return a != b
	case domain.OpGt:
		return a > b
	case domain.OpGte:
		return a >= b
	case domain.OpLt:
		return a < b
	case domain.OpLte:
		return a <= b
	}
	return false
}

func compareOrderedStrings(op domain.CompareOp, a, b string) (bool, error) {
	switch op {
	case domain.OpEq:
		return a == b, nil
	case domain.OpNe:
		return a != b, nil
	case domain.OpGt:
		return a > b, nil
	case domain.OpGte:
		return a >= b, nil
	case domain.OpLt:
		return a < b, nil
	case domain.OpLte:
		return a <= b, nil
	}
	return false, &EvaluationError{Reason: fmt.Sprintf("unknown compare operator %q", op)}
}

func compareDates(op domain.CompareOp, a, b domain.FactValue) (bool, error) {
	switch op {
	case domain.OpEq:
		return a.Date.Equal(b.Date), nil
	case domain.OpNe:
		return !a.Date.Equal(b.Date), nil
	case domain.OpGt:
		return a.Date.After(b.Date), nil
	case domain.OpGte:
		return !a.Date.Before(b.Date), nil
	case domain.OpLt:
		return a.Date.Before(b.Date), nil
	case domain.OpLte:
		return !a.Date.After(b.Date), nil
	}
	return false, &EvaluationError{Reason: fmt.Sprintf("unknown compare operator %q", op)}
}
