package edocument

import (
	"fmt"
	"strconv"

	"github.com/oarkflow/abac"
)

// Parser implements the document workflow side of policy text parsing
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (*Parser) ParseAttributeName(tok string) (AttributeName, bool) {
	n, ok := attributeNames[tok]
	return n, ok
}

// ParseValue types a value token: booleans, integers, then the closed
// vocabularies, falling back to a plain string. The spelling "none" is a
// real vocabulary member in two enums and is tried as a position first,
// matching how stray tokens resolve in attribute statements.
func (*Parser) ParseValue(tok string) (Value, error) {
	switch tok {
	case "True", "true":
		return BoolValue(true), nil
	case "False", "false":
		return BoolValue(false), nil
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return IntValue(n), nil
	}
	if roles[Role(tok)] {
		return RoleValue(Role(tok)), nil
	}
	if positions[Position(tok)] {
		return PositionValue(Position(tok)), nil
	}
	if tenants[Tenant(tok)] {
		return TenantValue(Tenant(tok)), nil
	}
	if documentTypes[DocumentType(tok)] {
		return TypeValue(DocumentType(tok)), nil
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
	u := &User{UID: id, Projects: []string{}, Supervisee: []string{}}
	for _, attr := range attrs {
		switch attr.Key {
		case "role":
			tok, err := singleToken(attr)
			if err != nil {
				return nil, err
			}
			if !roles[Role(tok)] {
				return nil, fmt.Errorf("%w: role %q", abac.ErrUnknownAttribute, tok)
			}
			u.Role = Role(tok)
		case "position":
			tok, err := singleToken(attr)
			if err != nil {
				return nil, err
			}
			if !positions[Position(tok)] {
				return nil, fmt.Errorf("%w: position %q", abac.ErrUnknownAttribute, tok)
			}
			u.Position = Position(tok)
		case "tenant":
			t, err := parseTenant(attr)
			if err != nil {
				return nil, err
			}
			u.Tenant = t
		case "department":
			tok, err := singleToken(attr)
			if err != nil {
				return nil, err
			}
			u.Department = tok
		case "office":
			tok, err := singleToken(attr)
			if err != nil {
				return nil, err
			}
			u.Office = tok
		case "registered":
			b, err := parseBool(attr)
			if err != nil {
				return nil, err
			}
			u.Registered = &b
		case "projects":
			u.Projects = append([]string{}, attr.Values...)
		case "supervisor":
			tok, err := singleToken(attr)
			if err != nil {
				return nil, err
			}
			u.Supervisor = tok
		case "supervisee":
			u.Supervisee = append([]string{}, attr.Values...)
		case "payrollingPermissions":
			b, err := parseBool(attr)
			if err != nil {
				return nil, err
			}
			u.PayrollingPermissions = &b
		case "experience":
			n, err := parseInt(attr)
			if err != nil {
				return nil, err
			}
			u.Experience = &n
		}
	}
	return u, nil
}

func (p *Parser) BuildResource(id string, attrs []abac.RawAttribute) (abac.Entity[AttributeName, Value], error) {
	r := &Resource{RID: id, Recipients: []string{}}
	for _, attr := range attrs {
		switch attr.Key {
		case "type":
			tok, err := singleToken(attr)
			if err != nil {
				return nil, err
			}
			if !documentTypes[DocumentType(tok)] {
				return nil, fmt.Errorf("%w: document type %q", abac.ErrUnknownAttribute, tok)
			}
			r.Type = DocumentType(tok)
		case "owner":
			tok, err := singleToken(attr)
			if err != nil {
				return nil, err
			}
			r.Owner = tok
		case "tenant":
			t, err := parseTenant(attr)
			if err != nil {
				return nil, err
			}
			r.Tenant = t
		case "department":
			tok, err := singleToken(attr)
			if err != nil {
				return nil, err
			}
			r.Department = tok
		case "office":
			tok, err := singleToken(attr)
			if err != nil {
				return nil, err
			}
			r.Office = tok
		case "recipients":
			r.Recipients = append([]string{}, attr.Values...)
		case "isConfidential":
			b, err := parseBool(attr)
			if err != nil {
				return nil, err
			}
			r.IsConfidential = &b
		case "containsPersonalInfo":
			b, err := parseBool(attr)
			if err != nil {
				return nil, err
			}
			r.ContainsPersonalInfo = &b
		case "size":
			n, err := parseInt(attr)
			if err != nil {
				return nil, err
			}
			r.Size = &n
		case "accessCount":
			n, err := parseInt(attr)
			if err != nil {
				return nil, err
			}
			r.AccessCount = &n
		case "retentionPeriod":
			n, err := parseInt(attr)
			if err != nil {
				return nil, err
			}
			r.RetentionPeriod = &n
		}
	}
	return r, nil
}

func singleToken(attr abac.RawAttribute) (string, error) {
	if len(attr.Values) != 1 || attr.IsSet {
		return "", fmt.Errorf("%w: %s expects one value", abac.ErrPolicySyntax, attr.Key)
	}
	return attr.Values[0], nil
}

func parseTenant(attr abac.RawAttribute) (Tenant, error) {
	tok, err := singleToken(attr)
	if err != nil {
		return "", err
	}
	if !tenants[Tenant(tok)] {
		return "", fmt.Errorf("%w: tenant %q", abac.ErrUnknownAttribute, tok)
	}
	return Tenant(tok), nil
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

func parseInt(attr abac.RawAttribute) (int64, error) {
	tok, err := singleToken(attr)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: integer %q", abac.ErrUnknownAttribute, tok)
	}
	return n, nil
}
