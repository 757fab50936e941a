package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValue_JSON(t *testing.T) {
	rec := Record{
		"name":       TextValue("CNC Milling"),
		"hourlyRate": NumberValue(decimal.RequireFromString("85.50")),
		"active":     BoolValue(true),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"active":true,"hourlyRate":85.5,"name":"CNC Milling"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for k, v := range rec {
		if !back[k].Equal(v) {
			t.Errorf("field %q = %v (%s), want %v (%s)", k, back[k], back[k].Kind, v, v.Kind)
		}
	}
}

func TestValue_UnmarshalRejectsGarbage(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`{"a":1}`), &v); err == nil {
		t.Error("Unmarshal(object) error = nil, want error")
	}
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{TextValue("x"), "x"},
		{NumberValue(decimal.NewFromFloat(1.25)), "1.25"},
		{BoolValue(false), "false"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestValue_Equal(t *testing.T) {
	if !NumberValue(decimal.RequireFromString("1.50")).Equal(NumberValue(decimal.RequireFromString("1.5"))) {
		t.Error("1.50 != 1.5")
	}
	if TextValue("1").Equal(NumberValue(decimal.NewFromInt(1))) {
		t.Error("text 1 equals number 1")
	}
	if BoolValue(true).Equal(BoolValue(false)) {
		t.Error("true equals false")
	}
}

func TestParsedTable_DropFirstRow(t *testing.T) {
	table := mustParse("a\n1\n2\n3\n")
	got := table.dropFirstRow()

	if len(got.Rows) != 2 || got.Rows[0][0] != "2" {
		t.Errorf("Rows = %v, want [[2] [3]]", got.Rows)
	}
	if got.Line(0) != 3 {
		t.Errorf("Line(0) = %d, want 3", got.Line(0))
	}
	if len(table.Rows) != 3 {
		t.Error("dropFirstRow() modified the original table")
	}
}
