package abac

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================================
// ATTRIBUTE MODEL
// ============================================================================

// Value is the constraint every domain attribute value type must satisfy.
// A domain value is a comparable tagged union (position, department, boolean,
// string, integer, ...); equality is the built-in == and Int exposes the
// numeric payload for ordered comparisons, if the value carries one.
type Value[V any] interface {
	comparable
	Int() (int64, bool)
}

// Entity is the capability interface users and resources implement to expose
// their attributes. For any attribute name at most one of the two methods
// reports ok: AttributeValue for single-valued attributes, AttributeSet for
// multi-valued ones. An unrecognized or absent name reports (zero, false)
// from both - never an error. This is the only extension point for adding a
// new policy domain.
type Entity[N comparable, V Value[V]] interface {
	ID() string
	AttributeValue(name N) (V, bool)
	AttributeSet(name N) ([]V, bool)
}

// Action represents a permitted operation named by a rule
type Action string

// ============================================================================
// CONDITION AST
// ============================================================================

// Operator is a condition comparison operator
type Operator uint8

const (
	Equals Operator = iota
	ContainedIn
	Contains
	GreaterThan
	LessThan
	GreaterOrEqual
	LessOrEqual
	NotEqual
)

var operatorNames = map[Operator]string{
	Equals:         "=",
	ContainedIn:    "[",
	Contains:       "]",
	GreaterThan:    ">",
	LessThan:       "<",
	GreaterOrEqual: ">=",
	LessOrEqual:    "<=",
	NotEqual:       "!=",
}

func (op Operator) String() string {
	if s, ok := operatorNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

func (op Operator) MarshalJSON() ([]byte, error) {
	return json.Marshal(op.String())
}

// ParseOperator maps a policy-text operator token to an Operator.
// Two-character tokens must be tried before their one-character prefixes.
func ParseOperator(tok string) (Operator, bool) {
	switch tok {
	case ">=":
		return GreaterOrEqual, true
	case "<=":
		return LessOrEqual, true
	case "!=":
		return NotEqual, true
	case "=":
		return Equals, true
	case "[":
		return ContainedIn, true
	case "]":
		return Contains, true
	case ">":
		return GreaterThan, true
	case "<":
		return LessThan, true
	}
	return 0, false
}

// ExprKind discriminates the three operand forms of a condition
type ExprKind uint8

const (
	ExprAttributeName ExprKind = iota
	ExprLiteral
	ExprValueSet
)

func (k ExprKind) String() string {
	switch k {
	case ExprAttributeName:
		return "attribute"
	case ExprLiteral:
		return "literal"
	case ExprValueSet:
		return "set"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k ExprKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Expression is one operand of a condition: a reference to an attribute name
// (resolved against an entity at evaluation time), a literal value, or a
// literal value set.
type Expression[N comparable, V Value[V]] struct {
	Kind  ExprKind `json:"kind"`
	Name  N        `json:"name,omitempty"`
	Value V        `json:"value,omitempty"`
	Set   []V      `json:"set,omitempty"`
}

// NameExpr builds an attribute-name operand
func NameExpr[N comparable, V Value[V]](name N) Expression[N, V] {
	return Expression[N, V]{Kind: ExprAttributeName, Name: name}
}

// LiteralExpr builds a literal-value operand
func LiteralExpr[N comparable, V Value[V]](v V) Expression[N, V] {
	return Expression[N, V]{Kind: ExprLiteral, Value: v}
}

// SetExpr builds a literal value-set operand
func SetExpr[N comparable, V Value[V]](vs ...V) Expression[N, V] {
	return Expression[N, V]{Kind: ExprValueSet, Set: vs}
}

// Condition is a single comparison between two attribute expressions
type Condition[N comparable, V Value[V]] struct {
	Left     Expression[N, V] `json:"left"`
	Operator Operator         `json:"operator"`
	Right    Expression[N, V] `json:"right"`
}

// Rule is a pure conjunction: a (user, resource) pair matches iff every user
// condition holds for the user, every resource condition holds for the
// resource, and every comparison condition holds for the pair jointly.
// Actions name what the matched pairs are permitted to do; they do not take
// part in matching.
type Rule[N comparable, V Value[V]] struct {
	ID                   int                 `json:"id"`
	Description          string              `json:"description"`
	UserConditions       []Condition[N, V]   `json:"user_conditions"`
	ResourceConditions   []Condition[N, V]   `json:"resource_conditions"`
	ComparisonConditions []Condition[N, V]   `json:"comparison_conditions"`
	Actions              map[Action]struct{} `json:"-"`
	Source               string              `json:"source,omitempty"`
}

// HasAction reports whether the rule grants the given action
func (r *Rule[N, V]) HasAction(a Action) bool {
	_, ok := r.Actions[a]
	return ok
}

// ActionList returns the rule's actions as a sorted slice for stable output
func (r *Rule[N, V]) ActionList() []Action {
	out := make([]Action, 0, len(r.Actions))
	for a := range r.Actions {
		out = append(out, a)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// ConditionCount is the total number of conditions across all three sections.
// The ordered engine uses it as its complexity heuristic.
func (r *Rule[N, V]) ConditionCount() int {
	return len(r.UserConditions) + len(r.ResourceConditions) + len(r.ComparisonConditions)
}

func (r *Rule[N, V]) MarshalJSON() ([]byte, error) {
	type alias Rule[N, V]
	return json.Marshal(struct {
		*alias
		Actions []Action `json:"actions"`
	}{alias: (*alias)(r), Actions: r.ActionList()})
}

// Checksum returns a deterministic fingerprint of the rule, used as a cache
// key component. Entities and rules are immutable once a policy is loaded,
// so the fingerprint stays valid for the policy's lifetime.
func (r *Rule[N, V]) Checksum() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|", r.ID, r.Source)
	for _, c := range r.UserConditions {
		fmt.Fprintf(&b, "u:%v;", c)
	}
	for _, c := range r.ResourceConditions {
		fmt.Fprintf(&b, "r:%v;", c)
	}
	for _, c := range r.ComparisonConditions {
		fmt.Fprintf(&b, "c:%v;", c)
	}
	for _, a := range r.ActionList() {
		fmt.Fprintf(&b, "a:%s;", a)
	}
	return b.String()
}

// ============================================================================
// POLICY
// ============================================================================

// Policy is a full dataset: the user and resource populations plus the rules
// evaluated over them. The engines never mutate a policy; they only derive
// indices and caches over it.
type Policy[N comparable, V Value[V]] struct {
	Users     []Entity[N, V]
	Resources []Entity[N, V]
	Rules     []Rule[N, V]
}

// BoundedUsers applies the caller-supplied enumeration bound: a non-positive
// maxUsers means the whole population, otherwise the first maxUsers users.
func (p *Policy[N, V]) BoundedUsers(maxUsers int) []Entity[N, V] {
	if maxUsers <= 0 || maxUsers >= len(p.Users) {
		return p.Users
	}
	return p.Users[:maxUsers]
}
