package abac

import (
	"encoding/json"
	"errors"
	"testing"
)

// testVal is a minimal value union for exercising the evaluator: a string
// payload, or a numeric one when num is set.
type testVal struct {
	s   string
	n   int64
	num bool
}

func (v testVal) Int() (int64, bool) { return v.n, v.num }

func (v testVal) MarshalJSON() ([]byte, error) {
	if v.num {
		return json.Marshal(v.n)
	}
	return json.Marshal(v.s)
}

func str(s string) testVal { return testVal{s: s} }
func num(n int64) testVal  { return testVal{n: n, num: true} }

// testEntity exposes attributes from plain maps
type testEntity struct {
	id   string
	vals map[string]testVal
	sets map[string][]testVal
}

func (e *testEntity) ID() string { return e.id }

func (e *testEntity) AttributeValue(name string) (testVal, bool) {
	v, ok := e.vals[name]
	return v, ok
}

func (e *testEntity) AttributeSet(name string) ([]testVal, bool) {
	vs, ok := e.sets[name]
	return vs, ok
}

func (e *testEntity) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID   string               `json:"id"`
		Vals map[string]testVal   `json:"vals"`
		Sets map[string][]testVal `json:"sets"`
	}{e.id, e.vals, e.sets})
}

func entity(id string, vals map[string]testVal, sets map[string][]testVal) *testEntity {
	if vals == nil {
		vals = map[string]testVal{}
	}
	if sets == nil {
		sets = map[string][]testVal{}
	}
	return &testEntity{id: id, vals: vals, sets: sets}
}

func cond(left Expression[string, testVal], op Operator, right Expression[string, testVal]) Condition[string, testVal] {
	return Condition[string, testVal]{Left: left, Operator: op, Right: right}
}

func nameE(n string) Expression[string, testVal] { return NameExpr[string, testVal](n) }

func litE(v testVal) Expression[string, testVal] { return LiteralExpr[string](v) }

func setE(vs ...testVal) Expression[string, testVal] { return SetExpr[string](vs...) }

func TestEqualsSemantics(t *testing.T) {
	ent := entity("e1", map[string]testVal{"color": str("red")}, nil)

	cases := []struct {
		name string
		cond Condition[string, testVal]
		want bool
	}{
		{"single equal", cond(nameE("color"), Equals, litE(str("red"))), true},
		{"single unequal", cond(nameE("color"), Equals, litE(str("blue"))), false},
		{"absent vs literal", cond(nameE("ghost"), Equals, litE(str("red"))), false},
		{"not equal holds", cond(nameE("color"), NotEqual, litE(str("blue"))), true},
		{"not equal on absent", cond(nameE("ghost"), NotEqual, litE(str("red"))), true},
	}
	for _, tc := range cases {
		got, err := evalEntityCondition(tc.cond, ent)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestEqualsBothAbsent(t *testing.T) {
	user := entity("u", nil, nil)
	resource := entity("r", nil, nil)
	c := cond(nameE("ghost"), Equals, nameE("phantom"))
	got, err := evalComparisonCondition(c, user, resource)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Fatalf("two absent attributes should compare equal")
	}
}

func TestEqualsOverSetErrors(t *testing.T) {
	ent := entity("e1", nil, map[string][]testVal{"tags": {str("a")}})
	_, err := evalEntityCondition(cond(nameE("tags"), Equals, litE(str("a"))), ent)
	if !errors.Is(err, ErrUnsupportedOperands) {
		t.Fatalf("expected ErrUnsupportedOperands, got %v", err)
	}
}

func TestMembershipSemantics(t *testing.T) {
	ent := entity("e1",
		map[string]testVal{"color": str("red")},
		map[string][]testVal{"tags": {str("a"), str("b")}})

	cases := []struct {
		name string
		cond Condition[string, testVal]
		want bool
	}{
		{"member", cond(nameE("color"), ContainedIn, setE(str("red"), str("blue"))), true},
		{"not member", cond(nameE("color"), ContainedIn, setE(str("blue"))), false},
		{"single single degrades to equality", cond(nameE("color"), ContainedIn, litE(str("red"))), true},
		{"absent left is false", cond(nameE("ghost"), ContainedIn, setE(str("red"))), false},
		{"set contains", cond(nameE("tags"), Contains, litE(str("b"))), true},
		{"set does not contain", cond(nameE("tags"), Contains, litE(str("z"))), false},
		{"absent set is false", cond(nameE("ghosts"), Contains, litE(str("a"))), false},
	}
	for _, tc := range cases {
		got, err := evalEntityCondition(tc.cond, ent)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestMembershipShapeErrors(t *testing.T) {
	ent := entity("e1", nil, map[string][]testVal{"tags": {str("a")}})
	if _, err := evalEntityCondition(cond(nameE("tags"), ContainedIn, setE(str("a"))), ent); !errors.Is(err, ErrUnsupportedOperands) {
		t.Fatalf("set [ set should error, got %v", err)
	}
	if _, err := evalEntityCondition(cond(nameE("tags"), Contains, setE(str("a"))), ent); !errors.Is(err, ErrUnsupportedOperands) {
		t.Fatalf("set ] set should error, got %v", err)
	}
}

func TestOrderingSemantics(t *testing.T) {
	ent := entity("e1", map[string]testVal{"level": num(5), "color": str("red")}, nil)

	cases := []struct {
		op   Operator
		lit  int64
		want bool
	}{
		{GreaterThan, 4, true},
		{GreaterThan, 5, false},
		{LessThan, 6, true},
		{GreaterOrEqual, 5, true},
		{LessOrEqual, 4, false},
	}
	for _, tc := range cases {
		got, err := evalEntityCondition(cond(nameE("level"), tc.op, litE(num(tc.lit))), ent)
		if err != nil {
			t.Fatalf("%s %d: unexpected error: %v", tc.op, tc.lit, err)
		}
		if got != tc.want {
			t.Fatalf("%s %d: got %v want %v", tc.op, tc.lit, got, tc.want)
		}
	}

	// absent operand fails quietly
	got, err := evalEntityCondition(cond(nameE("ghost"), GreaterThan, litE(num(1))), ent)
	if err != nil || got {
		t.Fatalf("absent ordering operand: got %v err %v", got, err)
	}

	// non-numeric operand is an error
	if _, err := evalEntityCondition(cond(nameE("color"), GreaterThan, litE(num(1))), ent); !errors.Is(err, ErrUnsupportedOperands) {
		t.Fatalf("non-numeric ordering should error, got %v", err)
	}
}

func TestEntityConditionRejectsNameOnRight(t *testing.T) {
	ent := entity("e1", map[string]testVal{"a": str("x"), "b": str("x")}, nil)
	_, err := evalEntityCondition(cond(nameE("a"), Equals, nameE("b")), ent)
	if !errors.Is(err, ErrUnsupportedOperands) {
		t.Fatalf("expected ErrUnsupportedOperands, got %v", err)
	}
}

func TestJointResolutionPrefersUser(t *testing.T) {
	user := entity("u", map[string]testVal{"dept": str("cs")}, nil)
	resource := entity("r", map[string]testVal{"dept": str("ee"), "home": str("cs")}, nil)

	// dept binds to the user's value on both sides, so dept = dept holds
	// even though the resource disagrees
	got, err := evalComparisonCondition(cond(nameE("dept"), Equals, nameE("dept")), user, resource)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Fatalf("dept should bind to the user on both sides")
	}

	// home resolves only on the resource and compares against the user's dept
	got, err = evalComparisonCondition(cond(nameE("dept"), Equals, nameE("home")), user, resource)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Fatalf("home should fall back to the resource")
	}
}

func TestRuleMatchesConjunction(t *testing.T) {
	user := entity("u",
		map[string]testVal{"role": str("staff")},
		map[string][]testVal{"teaches": {str("cs101")}})
	resource := entity("r", map[string]testVal{"kind": str("gradebook"), "course": str("cs101")}, nil)

	rule := &Rule[string, testVal]{
		ID:                 0,
		UserConditions:     []Condition[string, testVal]{cond(nameE("role"), ContainedIn, setE(str("staff")))},
		ResourceConditions: []Condition[string, testVal]{cond(nameE("kind"), Equals, litE(str("gradebook")))},
		ComparisonConditions: []Condition[string, testVal]{
			cond(nameE("teaches"), Contains, nameE("course")),
		},
	}
	ok, err := RuleMatches(rule, user, resource)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("rule should match")
	}

	// one failing conjunct sinks the whole rule
	rule.UserConditions = append(rule.UserConditions, cond(nameE("role"), Equals, litE(str("admin"))))
	ok, err = RuleMatches(rule, user, resource)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("rule should not match with a failing user condition")
	}
}
