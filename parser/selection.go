package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSelection reads a page selection such as "1,3,5-7". Order and
// repeats are kept and no range check is made; an empty string selects
// nothing.
func ParseSelection(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		if !isRange {
			pages = append(pages, first)
			continue
		}
		last, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || last < first {
			return nil, fmt.Errorf("invalid page range %q", part)
		}
		for n := first; n <= last; n++ {
			pages = append(pages, n)
		}
	}
	return pages, nil
}
