package core

// parse.go turns uploaded files into a ParsedTable.
//
// Parsing rules (shared by CSV and XLSX input):
//  1. Blank lines are dropped wherever they appear; Lines keeps the original
//     line number of every row so errors still point at the right place
//  2. The first remaining line is the header row
//  3. Every cell is trimmed and loses one pair of surrounding double quotes
//  4. Rows keep their literal cell count (no padding or truncation)
//
// CSV parsing is quote-aware within a line: a quoted field may contain commas
// and doubled quotes, but a record never spans lines. A line with an
// unbalanced quote falls back to a plain comma split. The engine never
// interprets cell contents beyond these rules.

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// zipMagic prefixes every XLSX file.
var zipMagic = []byte("PK\x03\x04")

// Parse parses CSV text into headers and rows.
// Every physical line is one record: a quoted cell may hold commas but never
// a line break. Returns ErrEmptyInput when the text holds no non-blank line.
func Parse(text string) (*ParsedTable, error) {
	var records [][]string
	var lines []int

	for i, line := range strings.Split(text, "\n") {
		records = append(records, splitLine(strings.TrimSuffix(line, "\r")))
		lines = append(lines, i+1)
	}

	return buildTable(records, lines)
}

// splitLine splits one line into cleaned cells. Commas inside a quoted cell
// do not split it; a quote opens a quoted cell only as the first non-space
// character of the cell, and "" inside it is an escaped quote. A line whose
// quotes do not balance is split on every comma.
func splitLine(line string) []string {
	var cells []string
	start := 0
	started := false // cell has a non-space character
	quoted := false  // cell opened with a quote
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuotes:
			if c == '"' {
				if i+1 < len(line) && line[i+1] == '"' {
					i++
					continue
				}
				inQuotes = false
			}
		case c == ',':
			cells = append(cells, finishCell(line[start:i], quoted))
			start, started, quoted = i+1, false, false
		case c == '"' && !started:
			started, quoted, inQuotes = true, true, true
		case c != ' ' && c != '\t':
			started = true
		}
	}

	if inQuotes {
		return splitLiteral(line)
	}
	return append(cells, finishCell(line[start:], quoted))
}

// finishCell cleans a raw cell. A quoted cell that still ends with its
// closing quote also has its "" escapes undone.
func finishCell(raw string, quoted bool) string {
	s := strings.TrimSpace(raw)
	if quoted && len(s) >= 2 && strings.HasSuffix(s, `"`) {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return CleanCell(s)
}

// splitLiteral splits line on every comma.
func splitLiteral(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = CleanCell(p)
	}
	return parts
}

// ParseBytes decodes raw file bytes (see Decode) and parses them as CSV.
func ParseBytes(data []byte) (*ParsedTable, error) {
	text, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

// ParseXLSX reads the first worksheet of an XLSX workbook.
func ParseXLSX(r io.Reader) (*ParsedTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrInvalidCSV, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyInput
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrInvalidCSV, sheets[0], err)
	}

	lines := make([]int, len(rows))
	for i, row := range rows {
		for j, c := range row {
			row[j] = CleanCell(c)
		}
		lines[i] = i + 1
	}
	return buildTable(rows, lines)
}

// ParseFile parses an uploaded file, choosing XLSX or CSV by extension and
// content.
func ParseFile(name string, data []byte) (*ParsedTable, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".xlsx" || bytes.HasPrefix(data, zipMagic) {
		return ParseXLSX(bytes.NewReader(data))
	}
	return ParseBytes(data)
}

// buildTable applies the blank-line and header rules to cleaned records.
// lines[i] is the source line of records[i].
func buildTable(records [][]string, lines []int) (*ParsedTable, error) {
	var table *ParsedTable

	for i, rec := range records {
		if isBlankRecord(rec) {
			continue
		}

		if table == nil {
			table = &ParsedTable{Headers: rec}
			continue
		}
		table.Rows = append(table.Rows, rec)
		table.Lines = append(table.Lines, lines[i])
	}

	if table == nil {
		return nil, ErrEmptyInput
	}
	return table, nil
}

// isBlankRecord reports whether a record came from a blank line.
// A line of bare commas is not blank; it is a row of empty cells.
func isBlankRecord(rec []string) bool {
	switch len(rec) {
	case 0:
		return true
	case 1:
		return IsBlank(rec[0])
	default:
		return false
	}
}
