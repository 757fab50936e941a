package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// FieldType represents the expected data type for a schema field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldSelect  FieldType = "select"
	FieldEmail   FieldType = "email"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldString, FieldNumber, FieldBoolean, FieldSelect, FieldEmail:
		return true
	}
	return false
}

// SchemaField defines one field of a target entity schema.
type SchemaField struct {
	Key      string    `json:"key"`               // Stable identifier: "hourlyRate"
	Label    string    `json:"label"`             // Display name: "Hourly Rate"
	Required bool      `json:"required"`          // Must be mapped and non-blank
	Type     FieldType `json:"type"`              // Expected data type
	Options  []string  `json:"options,omitempty"` // Allowed values for FieldSelect
}

// Schema is the field list for one entity type (e.g. "processes").
type Schema struct {
	Entity   string        `json:"entity"`             // Unique identifier: "processes"
	Label    string        `json:"label"`              // Display name: "Processes"
	KeyField string        `json:"keyField,omitempty"` // Field used as natural key by sinks
	Fields   []SchemaField `json:"fields"`
}

// Field returns the field definition for key.
func (s *Schema) Field(key string) (SchemaField, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return SchemaField{}, false
}

// RequiredFields returns the required fields in declaration order.
func (s *Schema) RequiredFields() []SchemaField {
	var out []SchemaField
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// Labels returns field labels in declaration order.
func (s *Schema) Labels() []string {
	labels := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		labels[i] = f.Label
	}
	return labels
}

// Validate checks the schema invariants: keys are non-empty and unique, types
// are known, and select fields carry at least one option.
func (s *Schema) Validate() error {
	if s.Entity == "" {
		return fmt.Errorf("schema entity is required")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %s: no fields", s.Entity)
	}

	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if f.Key == "" {
			return fmt.Errorf("schema %s: field %d has no key", s.Entity, i)
		}
		if seen[f.Key] {
			return fmt.Errorf("schema %s: duplicate field key %q", s.Entity, f.Key)
		}
		seen[f.Key] = true

		if !f.Type.Valid() {
			return fmt.Errorf("schema %s: field %q has unknown type %q", s.Entity, f.Key, f.Type)
		}
		if f.Type == FieldSelect && len(f.Options) == 0 {
			return fmt.Errorf("schema %s: select field %q has no options", s.Entity, f.Key)
		}
	}

	if s.KeyField != "" && !seen[s.KeyField] {
		return fmt.Errorf("schema %s: key field %q is not a field", s.Entity, s.KeyField)
	}
	return nil
}

// ParsedTable is the output of parsing an uploaded file.
// Rows are not padded or truncated to the header length.
type ParsedTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	Lines   []int      `json:"lines,omitempty"` // 1-based source line of each row
}

// Line returns the source line of row i, or 0 when unknown.
func (t *ParsedTable) Line(i int) int {
	if i >= 0 && i < len(t.Lines) {
		return t.Lines[i]
	}
	return 0
}

// Cell returns the value at row i, column col, or "" when the row is short.
func (t *ParsedTable) Cell(i, col int) string {
	row := t.Rows[i]
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// dropFirstRow returns a copy of the table without its first data row.
func (t *ParsedTable) dropFirstRow() *ParsedTable {
	if len(t.Rows) == 0 {
		return t
	}
	out := &ParsedTable{Headers: t.Headers, Rows: t.Rows[1:]}
	if len(t.Lines) > 0 {
		out.Lines = t.Lines[1:]
	}
	return out
}

// ValidationError is one problem found in one cell under the current mapping.
type ValidationError struct {
	RowIndex   int    `json:"rowIndex"`   // 1-based, excludes the header row
	Line       int    `json:"line"`       // 1-based source line
	Field      string `json:"field"`      // Schema field key
	FieldLabel string `json:"fieldLabel"` // Schema field label
	RawValue   string `json:"rawValue"`
	Message    string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.RowIndex, e.FieldLabel, e.Message)
}

// ImportOptions configures one import run.
type ImportOptions struct {
	SkipFirstRow   bool `json:"skipFirstRow"`
	UpdateExisting bool `json:"updateExisting"`
	ValidateOnly   bool `json:"validateOnly"`
}

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindText ValueKind = iota
	KindNumber
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	default:
		return "text"
	}
}

// Value is a typed cell value produced by Materialize.
type Value struct {
	Kind ValueKind
	Text string
	Num  decimal.Decimal
	Bool bool
}

// TextValue returns a text Value.
func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }

// NumberValue returns a number Value.
func NumberValue(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Equal reports whether two values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num.Equal(o.Num)
	case KindBool:
		return v.Bool == o.Bool
	default:
		return v.Text == o.Text
	}
}

// String renders the value the way it would appear in a CSV cell.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return v.Num.String()
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Text
	}
}

// MarshalJSON writes numbers as JSON numbers rather than quoted strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return []byte(v.Num.String()), nil
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return json.Marshal(v.Text)
	}
}

// UnmarshalJSON restores a value from its JSON form.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*v = BoolValue(data[0] == 't')
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = TextValue(s)
	default:
		d, err := decimal.NewFromString(string(data))
		if err != nil {
			return fmt.Errorf("invalid value %s: %w", data, err)
		}
		*v = NumberValue(d)
	}
	return nil
}

// Record is one materialized row: schema field key to typed value.
type Record map[string]Value
