package university

import (
	"fmt"

	"github.com/oarkflow/abac"
)

// Parser implements the campus side of policy text parsing
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (*Parser) ParseAttributeName(tok string) (AttributeName, bool) {
	n, ok := attributeNames[tok]
	return n, ok
}

// ParseValue types a value token. Booleans and the closed vocabularies are
// recognized first; anything else is a plain string, which is how entity
// IDs appear in conditions.
func (*Parser) ParseValue(tok string) (Value, error) {
	switch tok {
	case "True", "true":
		return BoolValue(true), nil
	case "False", "false":
		return BoolValue(false), nil
	}
	if positions[Position(tok)] {
		return PositionValue(Position(tok)), nil
	}
	if departments[Department(tok)] {
		return DepartmentValue(Department(tok)), nil
	}
	if courses[Course(tok)] {
		return CourseValue(Course(tok)), nil
	}
	if resourceTypes[ResourceType(tok)] {
		return TypeValue(ResourceType(tok)), nil
	}
	return StringValue(tok), nil
}

func (*Parser) ParseAction(tok string) (abac.Action, error) {
	if !actions[tok] {
		return "", fmt.Errorf("%w: action %q", abac.ErrUnknownAttribute, tok)
	}
	return abac.Action(tok), nil
}

func (p *Parser) BuildUser(id string, attrs []abac.RawAttribute) (abac.Entity[AttributeName, Value], error) {
	u := &User{UID: id, CrsTaken: []Course{}, CrsTaught: []Course{}}
	for _, attr := range attrs {
		switch attr.Key {
		case "position":
			pos, err := p.parsePosition(attr)
			if err != nil {
				return nil, err
			}
			u.Position = pos
		case "department":
			dept, err := p.parseDepartment(attr)
			if err != nil {
				return nil, err
			}
			u.Department = dept
		case "crsTaken":
			cs, err := p.parseCourses(attr)
			if err != nil {
				return nil, err
			}
			u.CrsTaken = cs
		case "crsTaught":
			cs, err := p.parseCourses(attr)
			if err != nil {
				return nil, err
			}
			u.CrsTaught = cs
		case "isChair":
			b, err := parseBool(attr)
			if err != nil {
				return nil, err
			}
			u.IsChair = &b
		}
	}
	return u, nil
}

func (p *Parser) BuildResource(id string, attrs []abac.RawAttribute) (abac.Entity[AttributeName, Value], error) {
	r := &Resource{RID: id, Departments: []Department{}}
	for _, attr := range attrs {
		switch attr.Key {
		case "type":
			tok, err := singleToken(attr)
			if err != nil {
				return nil, err
			}
			if !resourceTypes[ResourceType(tok)] {
				return nil, fmt.Errorf("%w: resource type %q", abac.ErrUnknownAttribute, tok)
			}
			r.Type = ResourceType(tok)
		case "student":
			tok, err := singleToken(attr)
			if err != nil {
				return nil, err
			}
			r.Student = tok
		case "departments":
			for _, tok := range attr.Values {
				if !departments[Department(tok)] {
					return nil, fmt.Errorf("%w: department %q", abac.ErrUnknownAttribute, tok)
				}
				r.Departments = append(r.Departments, Department(tok))
			}
		case "crs":
			tok, err := singleToken(attr)
			if err != nil {
				return nil, err
			}
			if !courses[Course(tok)] {
				return nil, fmt.Errorf("%w: course %q", abac.ErrUnknownAttribute, tok)
			}
			r.Crs = Course(tok)
		}
	}
	if r.Type == "" {
		return nil, fmt.Errorf("%w: resource %q has no type", abac.ErrUnknownAttribute, id)
	}
	return r, nil
}

func singleToken(attr abac.RawAttribute) (string, error) {
	if len(attr.Values) != 1 || attr.IsSet {
		return "", fmt.Errorf("%w: %s expects one value", abac.ErrPolicySyntax, attr.Key)
	}
	return attr.Values[0], nil
}

func (*Parser) parsePosition(attr abac.RawAttribute) (Position, error) {
	tok, err := singleToken(attr)
	if err != nil {
		return "", err
	}
	if !positions[Position(tok)] {
		return "", fmt.Errorf("%w: position %q", abac.ErrUnknownAttribute, tok)
	}
	return Position(tok), nil
}

func (*Parser) parseDepartment(attr abac.RawAttribute) (Department, error) {
	tok, err := singleToken(attr)
	if err != nil {
		return "", err
	}
	if !departments[Department(tok)] {
		return "", fmt.Errorf("%w: department %q", abac.ErrUnknownAttribute, tok)
	}
	return Department(tok), nil
}

func (*Parser) parseCourses(attr abac.RawAttribute) ([]Course, error) {
	out := make([]Course, 0, len(attr.Values))
	for _, tok := range attr.Values {
		if !courses[Course(tok)] {
			return nil, fmt.Errorf("%w: course %q", abac.ErrUnknownAttribute, tok)
		}
		out = append(out, Course(tok))
	}
	return out, nil
}

func parseBool(attr abac.RawAttribute) (bool, error) {
	tok, err := singleToken(attr)
	if err != nil {
		return false, err
	}
	switch tok {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	}
	return false, fmt.Errorf("%w: boolean %q", abac.ErrUnknownAttribute, tok)
}
