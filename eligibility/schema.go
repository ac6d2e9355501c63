// Package eligibility holds the closed field schema for intake answers and the
// pure functions computed over it: completeness and classification.
package eligibility

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeBool
	TypeEnum
	TypeList
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "integer"
	case TypeBool:
		return "boolean"
	case TypeEnum:
		return "enum"
	case TypeList:
		return "list"
	}
	return "unknown"
}

// Section says which record map a field is stored in.
type Section string

const (
	SectionBio      Section = "bio"
	SectionMedicare Section = "medicare"
)

// Field describes one answer the form can carry.
type Field struct {
	Name     string
	Section  Section
	Type     FieldType
	Required bool
	// AllowEmpty marks list fields where an empty list is a real answer ("none").
	AllowEmpty bool
	Options    []string
	Min, Max   int
}

// FieldError reports a value that does not fit the schema.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// Schema is an ordered, closed set of fields. The order is canonical: it drives
// the order of missing fields reported to the form.
type Schema struct {
	fields []Field
	index  map[string]int
}

func NewSchema(fields ...Field) Schema {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f.Name] = i
	}
	return Schema{fields: fields, index: idx}
}

// MedicareSchema is the field set collected by the intake form.
var MedicareSchema = NewSchema(
	Field{Name: "age", Section: SectionBio, Type: TypeInt, Required: true, Min: 0, Max: 130},
	Field{Name: "gender", Section: SectionBio, Type: TypeEnum, Required: true, Options: []string{"female", "male", "other"}},
	Field{Name: "zipCode", Section: SectionBio, Type: TypeString, Required: true, Max: 10},
	Field{Name: "medicareNumber", Section: SectionMedicare, Type: TypeString, Required: true, Max: 20},
	Field{Name: "medicarePlan", Section: SectionMedicare, Type: TypeEnum, Required: true, Options: []string{"original", "advantage", "supplement", "none"}},
	Field{Name: "hasColorblindness", Section: SectionMedicare, Type: TypeBool, Required: true},
	Field{Name: "medicalHistory", Section: SectionMedicare, Type: TypeList, Required: true, AllowEmpty: true},
	Field{Name: "familyHistoryOfVisionLoss", Section: SectionMedicare, Type: TypeBool},
	Field{Name: "geneticTestConsent", Section: SectionMedicare, Type: TypeBool},
	Field{Name: "smoker", Section: SectionBio, Type: TypeBool},
	Field{Name: "notes", Section: SectionBio, Type: TypeString, Max: 2000},
)

// Fields returns all fields in canonical order.
func (s Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Required returns the required fields in canonical order.
func (s Schema) Required() []Field {
	var out []Field
	for _, f := range s.fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

func (s Schema) Lookup(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Normalize checks raw answers destined for section and converts them to their
// canonical Go values. Unknown keys, keys from another section and badly typed
// values are rejected. Nil values are dropped.
func (s Schema) Normalize(section Section, raw map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(raw))
	for key, v := range raw {
		f, ok := s.Lookup(key)
		if !ok {
			return nil, &FieldError{Field: key, Reason: "unknown field"}
		}
		if f.Section != section {
			return nil, &FieldError{Field: key, Reason: fmt.Sprintf("belongs to %s data", f.Section)}
		}
		if v == nil {
			continue
		}
		cv, err := f.Coerce(v)
		if err != nil {
			return nil, err
		}
		out[key] = cv
	}
	return out, nil
}

// Coerce converts v to the field's canonical type: string, int, bool or []string.
// It accepts the shapes produced by JSON decoding and by JSON columns read back
// from the database.
func (f Field) Coerce(v interface{}) (interface{}, error) {
	switch f.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, f.typeError(v)
		}
		s = strings.TrimSpace(s)
		if f.Max > 0 && len(s) > f.Max {
			return nil, &FieldError{Field: f.Name, Reason: fmt.Sprintf("must be at most %d characters", f.Max)}
		}
		return s, nil
	case TypeInt:
		n, err := toInt(v)
		if err != nil {
			return nil, f.typeError(v)
		}
		if n < f.Min || (f.Max > 0 && n > f.Max) {
			return nil, &FieldError{Field: f.Name, Reason: fmt.Sprintf("must be between %d and %d", f.Min, f.Max)}
		}
		return n, nil
	case TypeBool:
		b, err := toBool(v)
		if err != nil {
			return nil, f.typeError(v)
		}
		return b, nil
	case TypeEnum:
		s, ok := v.(string)
		if !ok {
			return nil, f.typeError(v)
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return "", nil
		}
		for _, opt := range f.Options {
			if s == opt {
				return s, nil
			}
		}
		return nil, &FieldError{Field: f.Name, Reason: "must be one of " + strings.Join(f.Options, ", ")}
	case TypeList:
		items, err := toStrings(v)
		if err != nil {
			return nil, f.typeError(v)
		}
		return items, nil
	}
	return nil, f.typeError(v)
}

func (f Field) typeError(v interface{}) error {
	return &FieldError{Field: f.Name, Reason: fmt.Sprintf("expected %s, got %T", f.Type, v)}
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func toBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y", "1":
			return true, nil
		case "false", "no", "n", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("not a boolean: %v", v)
}

func toStrings(v interface{}) ([]string, error) {
	var raw []string
	switch l := v.(type) {
	case []string:
		raw = l
	case []interface{}:
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list item is %T", item)
			}
			raw = append(raw, s)
		}
	case string:
		raw = strings.Split(l, ",")
	default:
		return nil, fmt.Errorf("not a list: %T", v)
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
