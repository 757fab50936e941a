package core

// materialize.go coerces validated rows into typed records.
//
// This is the only place cell text becomes a typed Value:
//   - number: decimal when the cell parses, absent otherwise
//   - boolean: ParseBool, so a blank cell is false
//   - string, email, select: text as-is
//
// Required fields that end up absent get a zero default afterwards.
// Unmapped optional fields stay absent.

// Materialize converts every row of table into a Record, in row order.
func Materialize(table *ParsedTable, mapping FieldMapping, schema *Schema) []Record {
	bindings := bindColumns(schema, mapping)
	required := schema.RequiredFields()

	records := make([]Record, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = materializeRow(row, bindings, required)
	}
	return records
}

func materializeRow(row []string, bindings []binding, required []SchemaField) Record {
	rec := make(Record, len(bindings))

	for _, b := range bindings {
		raw := ""
		if b.column < len(row) {
			raw = row[b.column]
		}
		if v, ok := coerce(b.field.Type, raw); ok {
			rec[b.field.Key] = v
		}
	}

	for _, f := range required {
		if _, ok := rec[f.Key]; !ok {
			rec[f.Key] = defaultValue(f.Type)
		}
	}
	return rec
}

// coerce converts raw to a Value for type t. ok is false when the cell
// produces no value (blank or unparsable number).
func coerce(t FieldType, raw string) (Value, bool) {
	switch t {
	case FieldNumber:
		d, ok := ParseNumber(raw)
		if !ok {
			return Value{}, false
		}
		return NumberValue(d), true
	case FieldBoolean:
		return BoolValue(ParseBool(raw)), true
	default:
		return TextValue(raw), true
	}
}
