// Package edocument is the document workflow vocabulary: bank and agency
// staff plus external customers as users, invoices, contracts, paychecks
// and the like as resources.
package edocument

import (
	"encoding/json"
	"fmt"
)

// AttributeName enumerates every attribute the vocabulary knows
type AttributeName uint8

const (
	AttrRole AttributeName = iota
	AttrPosition
	AttrTenant
	AttrDepartment
	AttrOffice
	AttrRegistered
	AttrProjects
	AttrSupervisor
	AttrSupervisee
	AttrPayrollingPermissions
	AttrExperience
	AttrType
	AttrOwner
	AttrRecipients
	AttrIsConfidential
	AttrContainsPersonalInfo
	AttrSize
	AttrAccessCount
	AttrRetentionPeriod
	AttrUid
	AttrRid
)

var attributeNames = map[string]AttributeName{
	"role":                  AttrRole,
	"position":              AttrPosition,
	"tenant":                AttrTenant,
	"department":            AttrDepartment,
	"office":                AttrOffice,
	"registered":            AttrRegistered,
	"projects":              AttrProjects,
	"supervisor":            AttrSupervisor,
	"supervisee":            AttrSupervisee,
	"payrollingPermissions": AttrPayrollingPermissions,
	"experience":            AttrExperience,
	"type":                  AttrType,
	"owner":                 AttrOwner,
	"recipients":            AttrRecipients,
	"isConfidential":        AttrIsConfidential,
	"containsPersonalInfo":  AttrContainsPersonalInfo,
	"size":                  AttrSize,
	"accessCount":           AttrAccessCount,
	"retentionPeriod":       AttrRetentionPeriod,
	"uid":                   AttrUid,
	"rid":                   AttrRid,
}

func (n AttributeName) String() string {
	for s, v := range attributeNames {
		if v == n {
			return s
		}
	}
	return fmt.Sprintf("attr(%d)", uint8(n))
}

func (n AttributeName) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

// Closed vocabularies. Department and office names are tenant data, not
// vocabulary, and stay free-form strings.
type (
	Role         string
	Position     string
	Tenant       string
	DocumentType string
)

var (
	roles     = map[Role]bool{"employee": true, "manager": true, "admin": true, "helpdesk": true, "customer": true}
	positions = map[Position]bool{
		"secretary": true, "director": true, "seniorOfficeManager": true,
		"officeManager": true, "insuranceAgent": true, "none": true,
	}
	tenants = map[Tenant]bool{
		"largeBank": true, "largeBankLeasing": true, "newsAgency": true,
		"europeRegion": true, "londonOffice": true, "reseller": true,
		"carLeaser": true, "ictProvider": true, "privateReceiver": true,
	}
	documentTypes = map[DocumentType]bool{
		"invoice": true, "contract": true, "paycheck": true,
		"bankingNote": true, "salesOffer": true, "trafficFine": true, "none": true,
	}
	actions = map[string]bool{
		"view": true, "send": true, "search": true,
		"readMetaInfo": true, "edit": true, "approve": true,
	}
)

// ValueKind tags a Value payload
type ValueKind uint8

const (
	KindRole ValueKind = iota
	KindPosition
	KindTenant
	KindDocumentType
	KindBoolean
	KindInteger
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindRole:
		return "role"
	case KindPosition:
		return "position"
	case KindTenant:
		return "tenant"
	case KindDocumentType:
		return "documentType"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	}
	return "string"
}

// Value is the document workflow attribute value union. Integers carry the
// counters (experience years, document size, access count, retention years)
// and are the only ordered payload.
type Value struct {
	Kind ValueKind
	Str  string
	Bool bool
	Num  int64
}

func (v Value) Int() (int64, bool) {
	return v.Num, v.Kind == KindInteger
}

func (v Value) String() string {
	switch v.Kind {
	case KindBoolean:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindInteger:
		return fmt.Sprintf("%d", v.Num)
	}
	return v.Str
}

func (v Value) MarshalJSON() ([]byte, error) {
	type tagged struct {
		Kind  string `json:"kind"`
		Value any    `json:"value"`
	}
	switch v.Kind {
	case KindBoolean:
		return json.Marshal(tagged{v.Kind.String(), v.Bool})
	case KindInteger:
		return json.Marshal(tagged{v.Kind.String(), v.Num})
	}
	return json.Marshal(tagged{v.Kind.String(), v.Str})
}

func RoleValue(r Role) Value         { return Value{Kind: KindRole, Str: string(r)} }
func PositionValue(p Position) Value { return Value{Kind: KindPosition, Str: string(p)} }
func TenantValue(t Tenant) Value     { return Value{Kind: KindTenant, Str: string(t)} }
func TypeValue(t DocumentType) Value { return Value{Kind: KindDocumentType, Str: string(t)} }
func BoolValue(b bool) Value         { return Value{Kind: KindBoolean, Bool: b} }
func IntValue(n int64) Value         { return Value{Kind: KindInteger, Num: n} }
func StringValue(s string) Value     { return Value{Kind: KindString, Str: s} }

// User is one account in the document workflow. Pointer fields are absent
// attributes; the project and supervisee sets are always present.
type User struct {
	UID                   string   `json:"uid"`
	Role                  Role     `json:"role,omitempty"`
	Position              Position `json:"position,omitempty"`
	Tenant                Tenant   `json:"tenant,omitempty"`
	Department            string   `json:"department,omitempty"`
	Office                string   `json:"office,omitempty"`
	Registered            *bool    `json:"registered,omitempty"`
	Projects              []string `json:"projects"`
	Supervisor            string   `json:"supervisor,omitempty"`
	Supervisee            []string `json:"supervisee"`
	PayrollingPermissions *bool    `json:"payrollingPermissions,omitempty"`
	Experience            *int64   `json:"experience,omitempty"`
}

func (u *User) ID() string { return u.UID }

func (u *User) AttributeValue(name AttributeName) (Value, bool) {
	switch name {
	case AttrRole:
		if u.Role != "" {
			return RoleValue(u.Role), true
		}
	case AttrPosition:
		if u.Position != "" {
			return PositionValue(u.Position), true
		}
	case AttrTenant:
		if u.Tenant != "" {
			return TenantValue(u.Tenant), true
		}
	case AttrDepartment:
		if u.Department != "" {
			return StringValue(u.Department), true
		}
	case AttrOffice:
		if u.Office != "" {
			return StringValue(u.Office), true
		}
	case AttrRegistered:
		if u.Registered != nil {
			return BoolValue(*u.Registered), true
		}
	case AttrSupervisor:
		if u.Supervisor != "" {
			return StringValue(u.Supervisor), true
		}
	case AttrPayrollingPermissions:
		if u.PayrollingPermissions != nil {
			return BoolValue(*u.PayrollingPermissions), true
		}
	case AttrExperience:
		if u.Experience != nil {
			return IntValue(*u.Experience), true
		}
	case AttrUid:
		return StringValue(u.UID), true
	}
	return Value{}, false
}

func (u *User) AttributeSet(name AttributeName) ([]Value, bool) {
	switch name {
	case AttrProjects:
		return stringValues(u.Projects), true
	case AttrSupervisee:
		return stringValues(u.Supervisee), true
	}
	return nil, false
}

// Resource is one document. The recipient set is always present.
type Resource struct {
	RID                  string       `json:"rid"`
	Type                 DocumentType `json:"type,omitempty"`
	Owner                string       `json:"owner,omitempty"`
	Tenant               Tenant       `json:"tenant,omitempty"`
	Department           string       `json:"department,omitempty"`
	Office               string       `json:"office,omitempty"`
	Recipients           []string     `json:"recipients"`
	IsConfidential       *bool        `json:"isConfidential,omitempty"`
	ContainsPersonalInfo *bool        `json:"containsPersonalInfo,omitempty"`
	Size                 *int64       `json:"size,omitempty"`
	AccessCount          *int64       `json:"accessCount,omitempty"`
	RetentionPeriod      *int64       `json:"retentionPeriod,omitempty"`
}

func (r *Resource) ID() string { return r.RID }

func (r *Resource) AttributeValue(name AttributeName) (Value, bool) {
	switch name {
	case AttrType:
		if r.Type != "" {
			return TypeValue(r.Type), true
		}
	case AttrOwner:
		if r.Owner != "" {
			return StringValue(r.Owner), true
		}
	case AttrTenant:
		if r.Tenant != "" {
			return TenantValue(r.Tenant), true
		}
	case AttrDepartment:
		if r.Department != "" {
			return StringValue(r.Department), true
		}
	case AttrOffice:
		if r.Office != "" {
			return StringValue(r.Office), true
		}
	case AttrIsConfidential:
		if r.IsConfidential != nil {
			return BoolValue(*r.IsConfidential), true
		}
	case AttrContainsPersonalInfo:
		if r.ContainsPersonalInfo != nil {
			return BoolValue(*r.ContainsPersonalInfo), true
		}
	case AttrSize:
		if r.Size != nil {
			return IntValue(*r.Size), true
		}
	case AttrAccessCount:
		if r.AccessCount != nil {
			return IntValue(*r.AccessCount), true
		}
	case AttrRetentionPeriod:
		if r.RetentionPeriod != nil {
			return IntValue(*r.RetentionPeriod), true
		}
	case AttrRid:
		return StringValue(r.RID), true
	}
	return Value{}, false
}

func (r *Resource) AttributeSet(name AttributeName) ([]Value, bool) {
	if name == AttrRecipients {
		return stringValues(r.Recipients), true
	}
	return nil, false
}

func stringValues(ss []string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = StringValue(s)
	}
	return out
}
