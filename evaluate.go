package abac

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperands is returned when a condition applies an
	// operator to operand shapes it is not defined over, e.g. equality
	// between a single value and a set.
	ErrUnsupportedOperands = errors.New("unsupported operand shapes for operator")

	// ErrUnknownAttribute is returned by policy text parsing when an
	// attribute name or value token is not part of the domain vocabulary.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrRuleSections is returned when a rule body does not have three or
	// four semicolon-separated sections.
	ErrRuleSections = errors.New("rule must have four sections")

	// ErrPolicySyntax is returned for malformed policy text that is not an
	// attribute vocabulary problem: bad statement shape, bad operator,
	// unbalanced braces.
	ErrPolicySyntax = errors.New("policy syntax error")
)

// valueKind tags the result of resolving an expression against an entity
type valueKind uint8

const (
	kindNone valueKind = iota
	kindSingle
	kindSet
)

// conditionValue is a resolved operand. Missing attributes resolve to
// kindNone rather than an error so that sparse entities are simply skipped
// by membership and ordering conditions.
type conditionValue[V Value[V]] struct {
	kind   valueKind
	single V
	set    []V
}

func noneValue[V Value[V]]() conditionValue[V] {
	return conditionValue[V]{kind: kindNone}
}

func singleValue[V Value[V]](v V) conditionValue[V] {
	return conditionValue[V]{kind: kindSingle, single: v}
}

func setValue[V Value[V]](vs []V) conditionValue[V] {
	return conditionValue[V]{kind: kindSet, set: vs}
}

// resolveOn resolves an expression against one entity. A name probes the
// single-valued projection first, then the multi-valued one.
func resolveOn[N comparable, V Value[V]](e Expression[N, V], ent Entity[N, V]) conditionValue[V] {
	switch e.Kind {
	case ExprLiteral:
		return singleValue(e.Value)
	case ExprValueSet:
		return setValue(e.Set)
	}
	if v, ok := ent.AttributeValue(e.Name); ok {
		return singleValue(v)
	}
	if vs, ok := ent.AttributeSet(e.Name); ok {
		return setValue(vs)
	}
	return noneValue[V]()
}

// resolveJoint resolves an expression for a comparison condition. A name is
// probed against the user first and falls back to the resource only when the
// user carries nothing under that name. The fallback order is load-bearing:
// a name present on both entities always binds to the user's value.
func resolveJoint[N comparable, V Value[V]](e Expression[N, V], user, resource Entity[N, V]) conditionValue[V] {
	switch e.Kind {
	case ExprLiteral:
		return singleValue(e.Value)
	case ExprValueSet:
		return setValue(e.Set)
	}
	if v, ok := user.AttributeValue(e.Name); ok {
		return singleValue(v)
	}
	if vs, ok := user.AttributeSet(e.Name); ok {
		return setValue(vs)
	}
	if v, ok := resource.AttributeValue(e.Name); ok {
		return singleValue(v)
	}
	if vs, ok := resource.AttributeSet(e.Name); ok {
		return setValue(vs)
	}
	return noneValue[V]()
}

func containsValue[V Value[V]](set []V, v V) bool {
	for _, sv := range set {
		if sv == v {
			return true
		}
	}
	return false
}

// applyOperator evaluates one operator over two resolved operands.
//
// Equality treats two absent operands as equal. Membership degrades to
// equality when both operands are single values, mirroring set literals of
// size one. Ordering is defined over numeric single values only; an absent
// operand fails the condition silently while a non-numeric one is an error.
func applyOperator[V Value[V]](left conditionValue[V], op Operator, right conditionValue[V]) (bool, error) {
	switch op {
	case Equals, NotEqual:
		var eq bool
		switch {
		case left.kind == kindSingle && right.kind == kindSingle:
			eq = left.single == right.single
		case left.kind == kindNone && right.kind == kindNone:
			eq = true
		case left.kind == kindNone || right.kind == kindNone:
			eq = false
		default:
			return false, fmt.Errorf("%w: %s over set operand", ErrUnsupportedOperands, op)
		}
		if op == NotEqual {
			eq = !eq
		}
		return eq, nil
	case ContainedIn:
		if left.kind == kindNone || right.kind == kindNone {
			return false, nil
		}
		if left.kind != kindSingle {
			return false, fmt.Errorf("%w: %s needs a single left operand", ErrUnsupportedOperands, op)
		}
		if right.kind == kindSingle {
			return left.single == right.single, nil
		}
		return containsValue(right.set, left.single), nil
	case Contains:
		if left.kind == kindNone || right.kind == kindNone {
			return false, nil
		}
		if right.kind != kindSingle {
			return false, fmt.Errorf("%w: %s needs a single right operand", ErrUnsupportedOperands, op)
		}
		if left.kind == kindSingle {
			return left.single == right.single, nil
		}
		return containsValue(left.set, right.single), nil
	case GreaterThan, LessThan, GreaterOrEqual, LessOrEqual:
		if left.kind == kindNone || right.kind == kindNone {
			return false, nil
		}
		if left.kind != kindSingle || right.kind != kindSingle {
			return false, fmt.Errorf("%w: %s over set operand", ErrUnsupportedOperands, op)
		}
		li, lok := left.single.Int()
		ri, rok := right.single.Int()
		if !lok || !rok {
			return false, fmt.Errorf("%w: %s over non-numeric value", ErrUnsupportedOperands, op)
		}
		switch op {
		case GreaterThan:
			return li > ri, nil
		case LessThan:
			return li < ri, nil
		case GreaterOrEqual:
			return li >= ri, nil
		default:
			return li <= ri, nil
		}
	}
	return false, fmt.Errorf("%w: unknown operator %d", ErrUnsupportedOperands, uint8(op))
}

// evalEntityCondition evaluates a user or resource condition against one
// entity. The right side must be a literal or a literal set; a second
// attribute reference belongs in the comparison section.
func evalEntityCondition[N comparable, V Value[V]](c Condition[N, V], ent Entity[N, V]) (bool, error) {
	if c.Right.Kind == ExprAttributeName {
		return false, fmt.Errorf("%w: attribute reference on right side of entity condition", ErrUnsupportedOperands)
	}
	left := resolveOn(c.Left, ent)
	right := resolveOn(c.Right, ent)
	return applyOperator(left, c.Operator, right)
}

// evalComparisonCondition evaluates a comparison condition over a pair
func evalComparisonCondition[N comparable, V Value[V]](c Condition[N, V], user, resource Entity[N, V]) (bool, error) {
	left := resolveJoint(c.Left, user, resource)
	right := resolveJoint(c.Right, user, resource)
	return applyOperator(left, c.Operator, right)
}

// entityConditionsHold evaluates a full condition section against one entity
func entityConditionsHold[N comparable, V Value[V]](conds []Condition[N, V], ent Entity[N, V]) (bool, error) {
	for _, c := range conds {
		ok, err := evalEntityCondition(c, ent)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// RuleMatches reports whether the rule permits the (user, resource) pair
func RuleMatches[N comparable, V Value[V]](r *Rule[N, V], user, resource Entity[N, V]) (bool, error) {
	ok, err := entityConditionsHold(r.UserConditions, user)
	if err != nil || !ok {
		return false, err
	}
	ok, err = entityConditionsHold(r.ResourceConditions, resource)
	if err != nil || !ok {
		return false, err
	}
	for _, c := range r.ComparisonConditions {
		ok, err := evalComparisonCondition(c, user, resource)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
