package core

// template.go builds starter files for a schema: a single header row of field
// labels in declaration order. The XLSX form also bolds the header and adds
// a drop-down list to every select column.

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// templateRows is how many data rows the XLSX drop-down lists cover.
const templateRows = 1000

// TemplateCSV returns a CSV file whose only row is the schema's field labels.
func TemplateCSV(schema *Schema) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(schema.Labels()); err != nil {
		return nil, fmt.Errorf("write template header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush template: %w", err)
	}
	return buf.Bytes(), nil
}

// TemplateXLSX returns an XLSX workbook with the schema's field labels as a
// bold header row and drop-down validation on select fields.
func TemplateXLSX(schema *Schema) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if name := sheetName(schema); name != sheet {
		if err := f.SetSheetName(sheet, name); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
		sheet = name
	}

	labels := schema.Labels()
	header := make([]any, len(labels))
	for i, l := range labels {
		header[i] = l
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(labels), 1)
	if err != nil {
		return nil, fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return nil, fmt.Errorf("style header row: %w", err)
	}

	for i, field := range schema.Fields {
		if field.Type != FieldSelect {
			continue
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column for %s: %w", field.Key, err)
		}
		dv := excelize.NewDataValidation(true)
		dv.Sqref = fmt.Sprintf("%s2:%s%d", col, col, templateRows+1)
		if err := dv.SetDropList(field.Options); err != nil {
			return nil, fmt.Errorf("options for %s: %w", field.Key, err)
		}
		if err := f.AddDataValidation(sheet, dv); err != nil {
			return nil, fmt.Errorf("add validation for %s: %w", field.Key, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName is the schema label cut to Excel's 31 character sheet name limit.
func sheetName(schema *Schema) string {
	name := schema.Label
	if name == "" {
		name = schema.Entity
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}
