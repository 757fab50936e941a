package core

// validation.go checks mapped CSV data against a schema before commit.
//
// Validation happens at two levels:
//  1. Cell validation: every mapped column is checked against its field
//     (required, number, email, select)
//  2. Coverage: a required field that no column targets is reported as empty
//     on every row
//
// All problems are collected and returned in one batch so a caller can show
// every error at once. Nothing here returns a Go error.

import (
	"strings"
)

// Validation messages shown to users.
const (
	MsgRequired = "Required field is empty"
	MsgNumber   = "Must be a valid number"
	MsgEmail    = "Must be a valid email address"
	msgSelect   = "Must be one of: "
)

// binding ties a CSV column to the schema field it feeds.
type binding struct {
	column int
	field  SchemaField
}

// RowValidator validates rows of one table under one mapping.
type RowValidator struct {
	bindings []binding
	unmapped []SchemaField // required fields no column targets
}

// NewRowValidator resolves mapping against schema once so rows can be checked
// without repeated lookups. Mapping entries naming unknown fields are ignored.
func NewRowValidator(schema *Schema, mapping FieldMapping) *RowValidator {
	return &RowValidator{
		bindings: bindColumns(schema, mapping),
		unmapped: missingRequired(schema, mapping),
	}
}

// ValidateRow returns all errors for one data row. rowIndex is 1-based.
func (v *RowValidator) ValidateRow(rowIndex, line int, row []string) []ValidationError {
	var errs []ValidationError

	for _, b := range v.bindings {
		raw := ""
		if b.column < len(row) {
			raw = row[b.column]
		}
		if msg := checkCell(b.field, raw); msg != "" {
			errs = append(errs, ValidationError{
				RowIndex:   rowIndex,
				Line:       line,
				Field:      b.field.Key,
				FieldLabel: b.field.Label,
				RawValue:   raw,
				Message:    msg,
			})
		}
	}

	for _, f := range v.unmapped {
		errs = append(errs, ValidationError{
			RowIndex:   rowIndex,
			Line:       line,
			Field:      f.Key,
			FieldLabel: f.Label,
			Message:    MsgRequired,
		})
	}
	return errs
}

// Validate checks every data row of table and returns the full error list.
// An empty result means the table can be imported as mapped.
func Validate(table *ParsedTable, mapping FieldMapping, schema *Schema) []ValidationError {
	v := NewRowValidator(schema, mapping)

	var errs []ValidationError
	for i, row := range table.Rows {
		errs = append(errs, v.ValidateRow(i+1, table.Line(i), row)...)
	}
	return errs
}

// checkCell returns the error message for raw under f, or "" when valid.
func checkCell(f SchemaField, raw string) string {
	if IsBlank(raw) {
		if f.Required {
			return MsgRequired
		}
		return ""
	}

	switch f.Type {
	case FieldNumber:
		if _, ok := ParseNumber(raw); !ok {
			return MsgNumber
		}
	case FieldEmail:
		if !IsEmail(raw) {
			return MsgEmail
		}
	case FieldSelect:
		for _, opt := range f.Options {
			if raw == opt {
				return ""
			}
		}
		return msgSelect + strings.Join(f.Options, ", ")
	}
	return ""
}

// bindColumns pairs each mapped column with its field definition, in column
// order.
func bindColumns(schema *Schema, mapping FieldMapping) []binding {
	var out []binding
	for _, c := range mapping {
		if c.Field == Skip {
			continue
		}
		f, ok := schema.Field(c.Field)
		if !ok {
			continue
		}
		out = append(out, binding{column: c.Column, field: f})
	}
	return out
}

// missingRequired returns required fields that no column targets, in
// declaration order.
func missingRequired(schema *Schema, mapping FieldMapping) []SchemaField {
	var out []SchemaField
	for _, f := range schema.RequiredFields() {
		if !mapping.IsTargeted(f.Key) {
			out = append(out, f)
		}
	}
	return out
}
