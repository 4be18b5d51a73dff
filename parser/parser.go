// Package parser reads the operator's uploads: BRD pages out of a PDF
// (as text and as preview images) and example test cases out of an .xlsx
// workbook.
package parser

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidPDF is returned when a PDF cannot be opened or decoded.
	ErrInvalidPDF = errors.New("parser: invalid PDF")

	// ErrPageOutOfRange is returned for a page number outside 1..total.
	ErrPageOutOfRange = errors.New("parser: page out of range")

	// ErrInvalidSpreadsheet is returned when an .xlsx upload cannot be read.
	ErrInvalidSpreadsheet = errors.New("parser: invalid spreadsheet")
)

func pageRangeError(page, total int) error {
	return fmt.Errorf("%w: page %d not in 1..%d", ErrPageOutOfRange, page, total)
}

// NormalizePages checks that every page is within 1..total and returns the
// pages sorted ascending with duplicates removed.
func NormalizePages(pages []int, total int) ([]int, error) {
	out := make([]int, 0, len(pages))
	seen := make(map[int]bool, len(pages))
	for _, n := range pages {
		if n < 1 || n > total {
			return nil, pageRangeError(n, total)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// AllPages returns 1..total, the default selection.
func AllPages(total int) []int {
	pages := make([]int, total)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}
