package abac

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
)

// testDomain is a tiny vocabulary for exercising the generic reader without
// pulling in a full domain package.
type testDomain struct{}

var testAttrNames = map[string]bool{
	"role": true, "dept": true, "kind": true, "course": true,
	"level": true, "teaches": true, "clearance": true,
}

var testActions = map[string]bool{"read": true, "write": true, "list": true}

func (testDomain) ParseAttributeName(tok string) (string, bool) {
	return tok, testAttrNames[tok]
}

func (testDomain) ParseValue(tok string) (testVal, error) {
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return num(n), nil
	}
	if tok == "" {
		return testVal{}, fmt.Errorf("%w: empty value", ErrUnknownAttribute)
	}
	return str(tok), nil
}

func (testDomain) ParseAction(tok string) (Action, error) {
	if !testActions[tok] {
		return "", fmt.Errorf("%w: action %q", ErrUnknownAttribute, tok)
	}
	return Action(tok), nil
}

func buildTestEntity(id string, attrs []RawAttribute) (Entity[string, testVal], error) {
	vals := map[string]testVal{}
	sets := map[string][]testVal{}
	for _, a := range attrs {
		if !testAttrNames[a.Key] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, a.Key)
		}
		if a.IsSet {
			var vs []testVal
			for _, raw := range a.Values {
				v, err := (testDomain{}).ParseValue(raw)
				if err != nil {
					return nil, err
				}
				vs = append(vs, v)
			}
			sets[a.Key] = vs
			continue
		}
		v, err := (testDomain{}).ParseValue(a.Values[0])
		if err != nil {
			return nil, err
		}
		vals[a.Key] = v
	}
	return &testEntity{id: id, vals: vals, sets: sets}, nil
}

func (testDomain) BuildUser(id string, attrs []RawAttribute) (Entity[string, testVal], error) {
	return buildTestEntity(id, attrs)
}

func (testDomain) BuildResource(id string, attrs []RawAttribute) (Entity[string, testVal], error) {
	return buildTestEntity(id, attrs)
}

const samplePolicy = `
userAttrib(alice, role=faculty, dept=cs, level=7, teaches={cs101 cs601})
userAttrib(bob, role=student, dept=cs)
resourceAttrib(gb-cs101, kind=gradebook, course=cs101, clearance=5)

# faculty read gradebooks for courses they teach
rule(role [ {faculty}; kind [ {gradebook}; {read}; teaches ] course)
rule(level >= 5; ; {read write})
`

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy[string, testVal](samplePolicy, testDomain{})
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if len(p.Users) != 2 || len(p.Resources) != 1 || len(p.Rules) != 2 {
		t.Fatalf("got %d users, %d resources, %d rules", len(p.Users), len(p.Resources), len(p.Rules))
	}

	alice := p.Users[0]
	if alice.ID() != "alice" {
		t.Fatalf("first user is %q", alice.ID())
	}
	if v, ok := alice.AttributeValue("level"); !ok {
		t.Fatalf("alice has no level")
	} else if n, numeric := v.Int(); !numeric || n != 7 {
		t.Fatalf("alice level = %v", v)
	}
	if vs, ok := alice.AttributeSet("teaches"); !ok || len(vs) != 2 {
		t.Fatalf("alice teaches = %v %v", vs, ok)
	}

	r0 := p.Rules[0]
	if r0.ID != 0 || r0.Description != "faculty read gradebooks for courses they teach" {
		t.Fatalf("rule 0 = %+v", r0)
	}
	if len(r0.UserConditions) != 1 || r0.UserConditions[0].Operator != ContainedIn {
		t.Fatalf("rule 0 user conditions = %+v", r0.UserConditions)
	}
	if len(r0.ComparisonConditions) != 1 || r0.ComparisonConditions[0].Operator != Contains {
		t.Fatalf("rule 0 comparison conditions = %+v", r0.ComparisonConditions)
	}
	cc := r0.ComparisonConditions[0]
	if cc.Left.Kind != ExprAttributeName || cc.Left.Name != "teaches" {
		t.Fatalf("comparison left = %+v", cc.Left)
	}
	if cc.Right.Kind != ExprAttributeName || cc.Right.Name != "course" {
		t.Fatalf("comparison right = %+v", cc.Right)
	}
	if !r0.HasAction("read") || r0.HasAction("write") {
		t.Fatalf("rule 0 actions = %v", r0.ActionList())
	}

	r1 := p.Rules[1]
	if r1.Description != "" {
		t.Fatalf("rule 1 inherited a stale comment: %q", r1.Description)
	}
	if len(r1.ResourceConditions) != 0 {
		t.Fatalf("rule 1 resource conditions = %+v", r1.ResourceConditions)
	}
	if r1.UserConditions[0].Operator != GreaterOrEqual {
		t.Fatalf("rule 1 operator = %v", r1.UserConditions[0].Operator)
	}
	if got := r1.ActionList(); len(got) != 2 || got[0] != "read" || got[1] != "write" {
		t.Fatalf("rule 1 actions = %v", got)
	}
}

func TestParsePolicyEndToEnd(t *testing.T) {
	p, err := ParsePolicy[string, testVal](samplePolicy, testDomain{})
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	ms, err := EnumerateMatches[string, testVal](OrderedStrategy[string, testVal]{}, p, &p.Rules[0], 0)
	if err != nil {
		t.Fatalf("EnumerateMatches: %v", err)
	}
	if len(ms) != 1 || ms[0] != (Match{UserID: "alice", ResourceID: "gb-cs101"}) {
		t.Fatalf("matches = %v", ms)
	}
}

func TestParsePolicyErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want error
	}{
		{"unrecognized statement", "grant(alice)", ErrPolicySyntax},
		{"unbalanced parens", "userAttrib(alice, role=faculty", ErrPolicySyntax},
		{"missing value", "userAttrib(alice, role)", ErrPolicySyntax},
		{"unknown attribute key", "userAttrib(alice, shoe=left)", ErrUnknownAttribute},
		{"too few sections", "rule(role [ {faculty}; {read})", ErrRuleSections},
		{"too many sections", "rule(a = b; ; {read}; ; )", ErrRuleSections},
		{"unknown action", "rule(role [ {faculty}; ; {fly})", ErrUnknownAttribute},
		{"missing operator", "rule(role faculty; ; {read})", ErrPolicySyntax},
	}
	for _, tc := range cases {
		_, err := ParsePolicy[string, testVal](tc.src, testDomain{})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
		if err != nil && !strings.Contains(err.Error(), "line 1") {
			t.Fatalf("%s: error does not name the line: %v", tc.name, err)
		}
	}
}

func TestRuleSectionSplitIsBraceAware(t *testing.T) {
	src := "rule(role [ {fac;ulty student}; ; {read})"
	p, err := ParsePolicy[string, testVal](src, testDomain{})
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if len(p.Rules) != 1 {
		t.Fatalf("parsed %d rules", len(p.Rules))
	}
	conds := p.Rules[0].UserConditions
	if len(conds) != 1 || conds[0].Right.Kind != ExprValueSet {
		t.Fatalf("user conditions = %+v", conds)
	}
	set := conds[0].Right.Set
	if len(set) != 2 || set[0] != str("fac;ulty") || set[1] != str("student") {
		t.Fatalf("set members = %v", set)
	}
}

func TestParseConditionOperatorTokens(t *testing.T) {
	cases := []struct {
		src string
		op  Operator
	}{
		{"level >= 5", GreaterOrEqual},
		{"level <= 5", LessOrEqual},
		{"level > 5", GreaterThan},
		{"level < 5", LessThan},
		{"role != faculty", NotEqual},
		{"role = faculty", Equals},
		{"role [ {faculty staff}", ContainedIn},
		{"teaches ] course", Contains},
	}
	for _, tc := range cases {
		c, err := parseCondition[string, testVal](tc.src, testDomain{})
		if err != nil {
			t.Fatalf("%q: %v", tc.src, err)
		}
		if c.Operator != tc.op {
			t.Fatalf("%q: got %v, want %v", tc.src, c.Operator, tc.op)
		}
	}
}

func TestParseExpressionShapes(t *testing.T) {
	e, err := parseExpression[string, testVal]("{cs101 cs601}", testDomain{})
	if err != nil {
		t.Fatalf("set literal: %v", err)
	}
	if e.Kind != ExprValueSet || len(e.Set) != 2 {
		t.Fatalf("set literal = %+v", e)
	}

	e, err = parseExpression[string, testVal]("dept", testDomain{})
	if err != nil {
		t.Fatalf("name: %v", err)
	}
	if e.Kind != ExprAttributeName || e.Name != "dept" {
		t.Fatalf("name = %+v", e)
	}

	// a token outside the attribute vocabulary falls through to a literal
	e, err = parseExpression[string, testVal]("faculty", testDomain{})
	if err != nil {
		t.Fatalf("literal: %v", err)
	}
	if e.Kind != ExprLiteral || e.Value != str("faculty") {
		t.Fatalf("literal = %+v", e)
	}
}
