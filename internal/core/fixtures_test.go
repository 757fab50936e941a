package core

// processSchema mirrors the processes entity used throughout the tests.
func processSchema() *Schema {
	return &Schema{
		Entity:   "processes",
		Label:    "Processes",
		KeyField: "name",
		Fields: []SchemaField{
			{Key: "name", Label: "Process Name", Required: true, Type: FieldString},
			{Key: "category", Label: "Category", Type: FieldSelect, Options: []string{"Machining", "Finishing", "Assembly"}},
			{Key: "hourlyRate", Label: "Hourly Rate", Required: true, Type: FieldNumber},
			{Key: "setupTime", Label: "Setup Time", Type: FieldNumber},
			{Key: "contact", Label: "Contact Email", Type: FieldEmail},
			{Key: "active", Label: "Active", Type: FieldBoolean},
		},
	}
}

// rateSchema is the two-field processes schema from the Name,Rate scenario.
func rateSchema() *Schema {
	return &Schema{
		Entity: "processes",
		Label:  "Processes",
		Fields: []SchemaField{
			{Key: "name", Label: "Name", Required: true, Type: FieldString},
			{Key: "hourlyRate", Label: "Hourly Rate", Required: true, Type: FieldNumber},
		},
	}
}

// mustParse parses CSV text or panics.
func mustParse(text string) *ParsedTable {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

// mappingOf builds a mapping for headers from header -> field pairs.
func mappingOf(headers []string, targets map[string]string) FieldMapping {
	m := NewFieldMapping(headers)
	for h, f := range targets {
		m.Set(h, f)
	}
	return m
}
