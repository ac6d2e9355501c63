package eligibility

import "strings"

// Completeness is the derived answer to "has this person told us everything we need".
type Completeness struct {
	IsComplete    bool     `json:"isComplete"`
	MissingFields []string `json:"missingFields"`
}

// Evaluate returns the required fields that are absent or empty in submitted,
// in the order of required. It never mutates submitted.
func Evaluate(required []Field, submitted map[string]interface{}) Completeness {
	missing := make([]string, 0, len(required))
	for _, f := range required {
		v, ok := submitted[f.Name]
		if !ok || isEmpty(f, v) {
			missing = append(missing, f.Name)
		}
	}
	return Completeness{IsComplete: len(missing) == 0, MissingFields: missing}
}

func isEmpty(f Field, v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []string:
		return len(x) == 0 && !f.AllowEmpty
	case []interface{}:
		return len(x) == 0 && !f.AllowEmpty
	case map[string]interface{}:
		return len(x) == 0
	}
	return false
}

// IsBlank reports whether v counts as unanswered for the named field.
func (s Schema) IsBlank(name string, v interface{}) bool {
	f, _ := s.Lookup(name)
	return isEmpty(f, v)
}
