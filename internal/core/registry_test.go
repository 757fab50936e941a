package core

import (
	"errors"
	"testing"
)

func TestRegistry(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	Register(processSchema())
	Register(&Schema{
		Entity: "finishes",
		Label:  "Finishes",
		Fields: []SchemaField{{Key: "name", Label: "Finish", Required: true, Type: FieldString}},
	})

	if got := SchemaCount(); got != 2 {
		t.Errorf("SchemaCount() = %d, want 2", got)
	}

	s, err := Lookup("processes")
	if err != nil {
		t.Fatalf("Lookup(processes) error = %v", err)
	}
	if s.Label != "Processes" {
		t.Errorf("Lookup(processes).Label = %q", s.Label)
	}

	if _, err := Lookup("widgets"); !errors.Is(err, ErrUnknownSchema) {
		t.Errorf("Lookup(widgets) error = %v, want ErrUnknownSchema", err)
	}

	all := Schemas()
	if len(all) != 2 || all[0].Entity != "finishes" || all[1].Entity != "processes" {
		t.Errorf("Schemas() not sorted by entity: %v", all)
	}
}

func TestRegister_Panics(t *testing.T) {
	tests := []struct {
		name   string
		schema *Schema
	}{
		{
			name:   "duplicate entity",
			schema: processSchema(),
		},
		{
			name: "invalid schema",
			schema: &Schema{
				Entity: "broken",
				Fields: []SchemaField{{Key: "kind", Label: "Kind", Type: FieldSelect}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Clear()
			t.Cleanup(Clear)
			Register(processSchema())

			defer func() {
				if recover() == nil {
					t.Error("Register() did not panic")
				}
			}()
			Register(tt.schema)
		})
	}
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		schema  *Schema
		wantErr bool
	}{
		{
			name:   "valid",
			schema: processSchema(),
		},
		{
			name:    "no entity",
			schema:  &Schema{Fields: []SchemaField{{Key: "a", Type: FieldString}}},
			wantErr: true,
		},
		{
			name:    "no fields",
			schema:  &Schema{Entity: "x"},
			wantErr: true,
		},
		{
			name: "duplicate key",
			schema: &Schema{Entity: "x", Fields: []SchemaField{
				{Key: "a", Type: FieldString},
				{Key: "a", Type: FieldNumber},
			}},
			wantErr: true,
		},
		{
			name:    "empty key",
			schema:  &Schema{Entity: "x", Fields: []SchemaField{{Key: "", Type: FieldString}}},
			wantErr: true,
		},
		{
			name:    "unknown type",
			schema:  &Schema{Entity: "x", Fields: []SchemaField{{Key: "a", Type: "date"}}},
			wantErr: true,
		},
		{
			name:    "select without options",
			schema:  &Schema{Entity: "x", Fields: []SchemaField{{Key: "a", Type: FieldSelect}}},
			wantErr: true,
		},
		{
			name:    "key field not a field",
			schema:  &Schema{Entity: "x", KeyField: "b", Fields: []SchemaField{{Key: "a", Type: FieldString}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
