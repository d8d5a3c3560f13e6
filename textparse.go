package abac

import (
	"fmt"
	"os"
	"strings"
)

// RawAttribute is one key=value pair lifted from an attribute statement
// before domain typing. IsSet distinguishes key={a b} from key=a.
type RawAttribute struct {
	Key    string
	Values []string
	IsSet  bool
}

// DomainParser supplies the domain vocabulary the generic policy text reader
// has no knowledge of: attribute names, value literals, actions, and how to
// assemble typed users and resources from raw attribute statements.
type DomainParser[N comparable, V Value[V]] interface {
	// ParseAttributeName maps a token to an attribute name. A false return
	// is not an error: the token is then parsed as a value literal.
	ParseAttributeName(tok string) (N, bool)
	ParseValue(tok string) (V, error)
	ParseAction(tok string) (Action, error)
	BuildUser(id string, attrs []RawAttribute) (Entity[N, V], error)
	BuildResource(id string, attrs []RawAttribute) (Entity[N, V], error)
}

// Policy text statements:
//
//	# comment (a comment directly above a rule becomes its description)
//	userAttrib(id, key=value, key={v1 v2})
//	resourceAttrib(id, key=value, key={v1 v2})
//	rule(userConds; resourceConds; {actions}; comparisonConds)
//
// A rule carries three or four semicolon-separated sections; the comparison
// section is optional. Conditions within a section are comma separated.

// ParsePolicy reads policy text into a typed policy using the domain's
// vocabulary. Parsing is fail fast: the first malformed statement aborts
// with an error naming the line.
func ParsePolicy[N comparable, V Value[V]](src string, dom DomainParser[N, V]) (*Policy[N, V], error) {
	p := &Policy[N, V]{}
	pendingComment := ""
	for lineNum, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			pendingComment = ""
			continue
		}
		if strings.HasPrefix(line, "#") {
			pendingComment = strings.TrimSpace(strings.TrimPrefix(line, "#"))
			continue
		}
		var err error
		switch {
		case strings.HasPrefix(line, "userAttrib("):
			err = parseAttribStatement(line, dom.BuildUser, func(e Entity[N, V]) {
				p.Users = append(p.Users, e)
			})
		case strings.HasPrefix(line, "resourceAttrib("):
			err = parseAttribStatement(line, dom.BuildResource, func(e Entity[N, V]) {
				p.Resources = append(p.Resources, e)
			})
		case strings.HasPrefix(line, "rule("):
			var rule Rule[N, V]
			rule, err = parseRuleStatement(line, len(p.Rules), pendingComment, dom)
			if err == nil {
				p.Rules = append(p.Rules, rule)
			}
		default:
			err = fmt.Errorf("%w: unrecognized statement", ErrPolicySyntax)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %q: %w", lineNum+1, line, err)
		}
		pendingComment = ""
	}
	return p, nil
}

// ParsePolicyFile reads and parses a policy text file
func ParsePolicyFile[N comparable, V Value[V]](path string, dom DomainParser[N, V]) (*Policy[N, V], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(string(data), dom)
}

func parenContent(line string) (string, error) {
	start := strings.IndexByte(line, '(')
	end := strings.LastIndexByte(line, ')')
	if start < 0 || end < 0 || start >= end {
		return "", fmt.Errorf("%w: unbalanced parentheses", ErrPolicySyntax)
	}
	return line[start+1 : end], nil
}

func parseAttribStatement[N comparable, V Value[V]](line string, build func(string, []RawAttribute) (Entity[N, V], error), add func(Entity[N, V])) error {
	content, err := parenContent(line)
	if err != nil {
		return err
	}
	parts := strings.Split(content, ",")
	id := strings.TrimSpace(parts[0])
	if id == "" {
		return fmt.Errorf("%w: empty entity id", ErrPolicySyntax)
	}
	attrs := make([]RawAttribute, 0, len(parts)-1)
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return fmt.Errorf("%w: attribute %q has no value", ErrPolicySyntax, part)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		attr := RawAttribute{Key: key}
		if strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}") {
			attr.IsSet = true
			attr.Values = strings.Fields(value[1 : len(value)-1])
		} else {
			attr.Values = []string{value}
		}
		attrs = append(attrs, attr)
	}
	ent, err := build(id, attrs)
	if err != nil {
		return err
	}
	add(ent)
	return nil
}

func parseRuleStatement[N comparable, V Value[V]](line string, id int, description string, dom DomainParser[N, V]) (Rule[N, V], error) {
	rule := Rule[N, V]{ID: id, Description: description, Source: line, Actions: map[Action]struct{}{}}
	content, err := parenContent(line)
	if err != nil {
		return rule, err
	}
	sections := splitRuleSections(content)
	if len(sections) < 3 || len(sections) > 4 {
		return rule, fmt.Errorf("%w: got %d", ErrRuleSections, len(sections))
	}
	if rule.UserConditions, err = parseConditionSection(sections[0], dom); err != nil {
		return rule, fmt.Errorf("user conditions: %w", err)
	}
	if rule.ResourceConditions, err = parseConditionSection(sections[1], dom); err != nil {
		return rule, fmt.Errorf("resource conditions: %w", err)
	}
	actionSection := strings.TrimSpace(sections[2])
	actionSection = strings.TrimPrefix(actionSection, "{")
	actionSection = strings.TrimSuffix(actionSection, "}")
	for _, tok := range strings.Fields(actionSection) {
		a, err := dom.ParseAction(tok)
		if err != nil {
			return rule, fmt.Errorf("actions: %w", err)
		}
		rule.Actions[a] = struct{}{}
	}
	if len(sections) == 4 {
		if rule.ComparisonConditions, err = parseConditionSection(sections[3], dom); err != nil {
			return rule, fmt.Errorf("comparison conditions: %w", err)
		}
	}
	return rule, nil
}

// splitRuleSections splits on top-level semicolons only. Semicolons inside a
// {...} set stay part of their section.
func splitRuleSections(content string) []string {
	var sections []string
	depth := 0
	start := 0
	for i, ch := range content {
		switch ch {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ';':
			if depth == 0 {
				sections = append(sections, content[start:i])
				start = i + 1
			}
		}
	}
	return append(sections, content[start:])
}

func parseConditionSection[N comparable, V Value[V]](section string, dom DomainParser[N, V]) ([]Condition[N, V], error) {
	var conds []Condition[N, V]
	for _, condStr := range strings.Split(section, ",") {
		condStr = strings.TrimSpace(condStr)
		if condStr == "" {
			continue
		}
		c, err := parseCondition(condStr, dom)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

// operatorTokens in match order. Spaced forms first so "a [ b" splits on the
// operator and not on a bracket inside an operand, longer operators before
// their single-character prefixes.
var operatorTokens = []string{
	" >= ", " <= ", " != ", " [ ", " ] ", " = ", " > ", " < ",
	">=", "<=", "!=", "[", "]", "=", ">", "<",
}

func parseCondition[N comparable, V Value[V]](condStr string, dom DomainParser[N, V]) (Condition[N, V], error) {
	var c Condition[N, V]
	for _, tok := range operatorTokens {
		pos := strings.Index(condStr, tok)
		if pos < 0 {
			continue
		}
		op, ok := ParseOperator(strings.TrimSpace(tok))
		if !ok {
			return c, fmt.Errorf("%w: operator %q", ErrPolicySyntax, tok)
		}
		left, err := parseExpression(strings.TrimSpace(condStr[:pos]), dom)
		if err != nil {
			return c, err
		}
		right, err := parseExpression(strings.TrimSpace(condStr[pos+len(tok):]), dom)
		if err != nil {
			return c, err
		}
		return Condition[N, V]{Left: left, Operator: op, Right: right}, nil
	}
	return c, fmt.Errorf("%w: no operator in condition %q", ErrPolicySyntax, condStr)
}

func parseExpression[N comparable, V Value[V]](tok string, dom DomainParser[N, V]) (Expression[N, V], error) {
	if strings.HasPrefix(tok, "{") && strings.HasSuffix(tok, "}") {
		var set []V
		for _, vtok := range strings.Fields(tok[1 : len(tok)-1]) {
			v, err := dom.ParseValue(vtok)
			if err != nil {
				return Expression[N, V]{}, err
			}
			set = append(set, v)
		}
		return Expression[N, V]{Kind: ExprValueSet, Set: set}, nil
	}
	if name, ok := dom.ParseAttributeName(tok); ok {
		return NameExpr[N, V](name), nil
	}
	v, err := dom.ParseValue(tok)
	if err != nil {
		return Expression[N, V]{}, err
	}
	return LiteralExpr[N](v), nil
}
