// Package university is the campus records vocabulary: students, faculty
// and staff as users, gradebooks, rosters, transcripts and applications as
// resources.
package university

import (
	"encoding/json"
	"fmt"
)

// AttributeName enumerates every attribute the vocabulary knows
type AttributeName uint8

const (
	AttrPosition AttributeName = iota
	AttrDepartment
	AttrType
	AttrCrsTaken
	AttrCrsTaught
	AttrIsChair
	AttrStudent
	AttrDepartments
	AttrCrs
	AttrUid
)

var attributeNames = map[string]AttributeName{
	"position":    AttrPosition,
	"department":  AttrDepartment,
	"type":        AttrType,
	"crsTaken":    AttrCrsTaken,
	"crsTaught":   AttrCrsTaught,
	"isChair":     AttrIsChair,
	"student":     AttrStudent,
	"departments": AttrDepartments,
	"crs":         AttrCrs,
	"uid":         AttrUid,
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

// Closed vocabularies. Membership is checked at parse time, so a typed
// string past parsing is always a known value.
type (
	Position     string
	Department   string
	Course       string
	ResourceType string
)

var (
	positions     = map[Position]bool{"applicant": true, "student": true, "faculty": true, "staff": true}
	departments   = map[Department]bool{"cs": true, "ee": true, "registrar": true, "admissions": true}
	courses       = map[Course]bool{"cs101": true, "cs601": true, "cs602": true, "ee101": true, "ee601": true, "ee602": true}
	resourceTypes = map[ResourceType]bool{"application": true, "gradebook": true, "roster": true, "transcript": true}
	actions       = map[string]bool{
		"readMyScores": true, "addScore": true, "readScore": true,
		"changeScore": true, "assignGrade": true, "read": true,
		"write": true, "checkStatus": true, "setStatus": true,
	}
)

// ValueKind tags a Value payload
type ValueKind uint8

const (
	KindPosition ValueKind = iota
	KindDepartment
	KindCourse
	KindResourceType
	KindBoolean
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindPosition:
		return "position"
	case KindDepartment:
		return "department"
	case KindCourse:
		return "course"
	case KindResourceType:
		return "resourceType"
	case KindBoolean:
		return "boolean"
	}
	return "string"
}

// Value is the campus attribute value union. Booleans ride in Bool,
// everything else in Str; two values are equal exactly when kind and
// payload agree.
type Value struct {
	Kind ValueKind
	Str  string
	Bool bool
}

// Int reports no numeric payload; the campus vocabulary has none, so
// ordered comparisons over it always error
func (Value) Int() (int64, bool) { return 0, false }

func (v Value) String() string {
	if v.Kind == KindBoolean {
		if v.Bool {
			return "True"
		}
		return "False"
	}
	return v.Str
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == KindBoolean {
		return json.Marshal(struct {
			Kind  string `json:"kind"`
			Value bool   `json:"value"`
		}{v.Kind.String(), v.Bool})
	}
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}{v.Kind.String(), v.Str})
}

func PositionValue(p Position) Value     { return Value{Kind: KindPosition, Str: string(p)} }
func DepartmentValue(d Department) Value { return Value{Kind: KindDepartment, Str: string(d)} }
func CourseValue(c Course) Value         { return Value{Kind: KindCourse, Str: string(c)} }
func TypeValue(t ResourceType) Value     { return Value{Kind: KindResourceType, Str: string(t)} }
func BoolValue(b bool) Value             { return Value{Kind: KindBoolean, Bool: b} }
func StringValue(s string) Value         { return Value{Kind: KindString, Str: s} }

// User is a campus account. Zero-valued position and department mean the
// attribute is absent; the course sets are always present, possibly empty.
type User struct {
	UID        string     `json:"uid"`
	Position   Position   `json:"position,omitempty"`
	Department Department `json:"department,omitempty"`
	CrsTaken   []Course   `json:"crsTaken"`
	CrsTaught  []Course   `json:"crsTaught"`
	IsChair    *bool      `json:"isChair,omitempty"`
}

func (u *User) ID() string { return u.UID }

func (u *User) AttributeValue(name AttributeName) (Value, bool) {
	switch name {
	case AttrPosition:
		if u.Position != "" {
			return PositionValue(u.Position), true
		}
	case AttrDepartment:
		if u.Department != "" {
			return DepartmentValue(u.Department), true
		}
	case AttrIsChair:
		if u.IsChair != nil {
			return BoolValue(*u.IsChair), true
		}
	case AttrUid:
		return StringValue(u.UID), true
	}
	return Value{}, false
}

func (u *User) AttributeSet(name AttributeName) ([]Value, bool) {
	switch name {
	case AttrCrsTaken:
		return courseValues(u.CrsTaken), true
	case AttrCrsTaught:
		return courseValues(u.CrsTaught), true
	}
	return nil, false
}

// Resource is a campus record. Type is mandatory; student and crs are
// optional links, departments is always present.
type Resource struct {
	RID         string       `json:"rid"`
	Type        ResourceType `json:"type"`
	Student     string       `json:"student,omitempty"`
	Departments []Department `json:"departments"`
	Crs         Course       `json:"crs,omitempty"`
}

func (r *Resource) ID() string { return r.RID }

func (r *Resource) AttributeValue(name AttributeName) (Value, bool) {
	switch name {
	case AttrType:
		return TypeValue(r.Type), true
	case AttrStudent:
		if r.Student != "" {
			return StringValue(r.Student), true
		}
	case AttrCrs:
		if r.Crs != "" {
			return CourseValue(r.Crs), true
		}
	}
	return Value{}, false
}

func (r *Resource) AttributeSet(name AttributeName) ([]Value, bool) {
	if name == AttrDepartments {
		out := make([]Value, len(r.Departments))
		for i, d := range r.Departments {
			out[i] = DepartmentValue(d)
		}
		return out, true
	}
	return nil, false
}

func courseValues(cs []Course) []Value {
	out := make([]Value, len(cs))
	for i, c := range cs {
		out[i] = CourseValue(c)
	}
	return out
}
