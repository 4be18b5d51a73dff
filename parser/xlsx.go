package parser

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/casegen/record"
)

// LoadExamples reads example test cases from the first sheet of an .xlsx
// workbook. The first row is the header; every later row becomes one record
// keyed by header name, in row order. Empty cells become nil.
func LoadExamples(r io.Reader) ([]record.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpreadsheet, err)
	}
	defer f.Close()

	examples := make([]record.Record, 0)

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return examples, nil
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: reading sheet %q: %v", ErrInvalidSpreadsheet, sheet, err)
	}
	if len(rows) == 0 {
		return examples, nil
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	header := headerNames(rows[0], width)

	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		var rec record.Record
		for col, name := range header {
			raw := ""
			if col < len(row) {
				raw = row[col]
			}
			v, err := cellValue(f, sheet, col+1, i+2, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSpreadsheet, err)
			}
			rec.Set(name, v)
		}
		examples = append(examples, rec)
	}

	return examples, nil
}

// headerNames pads the header row to width, names blank columns
// "Unnamed: <index>" and suffixes repeats with ".1", ".2", ...
func headerNames(cells []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(cells) {
			name = strings.TrimSpace(cells[i])
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for seen[name] > 0 {
			name = fmt.Sprintf("%s.%d", base, seen[base])
			seen[base]++
		}
		seen[name]++
		names[i] = name
	}
	return names
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// cellValue types a raw cell: numbers become int64 or float64, booleans
// bool, anything else string. Empty cells are nil.
func cellValue(f *excelize.File, sheet string, col, row int, raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil, err
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, ok := parseNumber(raw); ok {
			return n, nil
		}
	}
	return raw, nil
}

func parseNumber(raw string) (any, bool) {
	fv, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(fv) || math.IsInf(fv, 0) {
		return nil, false
	}
	if fv == math.Trunc(fv) && math.Abs(fv) < 1e15 {
		return int64(fv), true
	}
	return fv, true
}
