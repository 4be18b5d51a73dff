// Package export writes generated test cases as downloadable files.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/casegen/record"
)

const (
	JSONFileName = "test_cases.json"
	XLSXFileName = "test_cases.xlsx"

	JSONContentType = "application/json"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// SheetName is the only sheet of the exported workbook.
	SheetName = "Sheet1"
)

// JSON renders test cases as a 2-space indented array. Keys keep their
// record order, HTML characters are not escaped and there is no trailing
// newline.
func JSON(cases []record.Record) ([]byte, error) {
	if cases == nil {
		cases = []record.Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cases); err != nil {
		return nil, fmt.Errorf("encoding test cases: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Columns is the union of the cases' keys in first-seen order.
func Columns(cases []record.Record) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, c := range cases {
		for _, k := range c.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

// XLSX renders test cases as a single-sheet workbook: a bold header row of
// Columns, then one row per case. Missing keys leave the cell empty.
func XLSX(cases []record.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	cols := Columns(cases)
	if len(cols) > 0 {
		for i, name := range cols {
			cell, err := excelize.CoordinatesToCellName(i+1, 1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(SheetName, cell, name); err != nil {
				return nil, fmt.Errorf("writing header %q: %w", name, err)
			}
		}

		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, fmt.Errorf("creating header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(cols), 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
			return nil, fmt.Errorf("styling header: %w", err)
		}
	}

	for r, c := range cases {
		for i, name := range cols {
			v, ok := c.Get(name)
			if !ok || v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			val, err := cellValue(v)
			if err != nil {
				return nil, fmt.Errorf("test case %d, %q: %w", r+1, name, err)
			}
			if err := f.SetCellValue(SheetName, cell, val); err != nil {
				return nil, fmt.Errorf("writing %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// cellValue maps a decoded JSON value onto something excelize stores
// natively. Nested arrays and objects are written as their JSON text.
func cellValue(v any) (any, error) {
	switch x := v.(type) {
	case string, bool, int, int64, float64:
		return x, nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		if f, err := x.Float64(); err == nil {
			return f, nil
		}
		return x.String(), nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(x); err != nil {
			return nil, err
		}
		return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
	}
}

// WriteFiles writes test_cases.json and test_cases.xlsx into dir and
// returns their paths.
func WriteFiles(dir string, cases []record.Record) ([]string, error) {
	jsonData, err := JSON(cases)
	if err != nil {
		return nil, err
	}
	xlsxData, err := XLSX(cases)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	jsonPath := filepath.Join(dir, JSONFileName)
	if err := os.WriteFile(jsonPath, jsonData, 0o644); err != nil {
		return nil, err
	}
	xlsxPath := filepath.Join(dir, XLSXFileName)
	if err := os.WriteFile(xlsxPath, xlsxData, 0o644); err != nil {
		return nil, err
	}
	return []string{jsonPath, xlsxPath}, nil
}
