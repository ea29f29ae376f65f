package reference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PK is a record primary key. Datasets use both integer and string keys, so
// keys are normalized to their decimal or literal string form.
type PK string

// UnmarshalJSON accepts JSON numbers and strings.
func (p *PK) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PK(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("pk: %w", err)
	}
	*p = PK(normalizeNumber(n.String()))
	return nil
}

// MarshalJSON writes integer keys as JSON numbers and everything else as
// strings, matching how the dataset stores them.
func (p PK) MarshalJSON() ([]byte, error) {
	s := string(p)
	if isInteger(s) {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func (p PK) String() string { return string(p) }

func isInteger(s string) bool {
	if s == "" || len(s) > 18 {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
	}
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Record is one fixture entry.
type Record struct {
	Model  string         `json:"model"`
	PK     PK             `json:"pk"`
	Fields map[string]any `json:"fields"`
}

// Name returns fields.name, falling back to the key.
func (r Record) Name() string {
	if name := FieldString(r.Fields, "name"); name != "" {
		return name
	}
	return string(r.PK)
}

// Parent returns fields.parent normalized like a PK.
func (r Record) Parent() PK {
	return PK(FieldString(r.Fields, "parent"))
}

// FieldString renders a field value as text. Numbers keep their shortest
// form, lists are joined with ", ", and missing values are empty.
func FieldString(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	return AsString(fields[key])
}

// AsString renders an arbitrary decoded JSON value as display text.
func AsString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return normalizeNumber(val.String())
	case float64:
		return normalizeNumber(strconv.FormatFloat(val, 'f', -1, 64))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := AsString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if name := AsString(val["name"]); name != "" {
			return name
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// FieldFloat parses a numeric field, reporting false when absent or not numeric.
func FieldFloat(fields map[string]any, key string) (float64, bool) {
	s := FieldString(fields, key)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FieldBool reports whether a field is truthy (true, "true", "yes", 1).
func FieldBool(fields map[string]any, key string) bool {
	switch strings.ToLower(FieldString(fields, key)) {
	case "true", "yes", "1":
		return true
	default:
		return false
	}
}

func normalizeNumber(s string) string {
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return s
}
