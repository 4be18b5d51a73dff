package parser

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pageNumberLine matches a line that is only a page number.
var pageNumberLine = regexp.MustCompile(`^\p{Nd}+$`)

// Document is an opened PDF. It is meant to live for a single operation:
// open, extract, Close.
type Document struct {
	reader *pdf.Reader
}

// OpenPDF reads and opens the PDF at path.
func OpenPDF(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PDF: %w", err)
	}
	return NewDocument(data)
}

// NewDocument opens a PDF held in memory. A file the reader rejects gets
// one relaxed pdfcpu rewrite (fresh cross-reference table) before giving up.
func NewDocument(data []byte) (*Document, error) {
	doc, err := openReader(data)
	if err == nil {
		return doc, nil
	}

	repaired, rerr := repairPDF(data)
	if rerr != nil {
		return nil, err
	}
	if doc, rerr := openReader(repaired); rerr == nil {
		return doc, nil
	}
	return nil, err
}

func openReader(data []byte) (doc *Document, err error) {
	// ledongthuc/pdf panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return &Document{reader: reader}, nil
}

func repairPDF(data []byte) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &out, conf); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// NumPages returns the number of pages, or 0 once the document is closed.
func (d *Document) NumPages() int {
	if d.reader == nil {
		return 0
	}
	return d.reader.NumPage()
}

// Close releases the document.
func (d *Document) Close() error {
	d.reader = nil
	return nil
}

// PageCount opens the PDF and reports its page count, using the same
// reader ExtractPages reads from.
func PageCount(data []byte) (int, error) {
	doc, err := NewDocument(data)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPages(), nil
}

// ExtractPages returns the cleaned text of the given 1-based pages, in
// increasing page order, each page followed by a newline. Pages without any
// text are skipped. Every page must be within 1..NumPages.
func ExtractPages(doc *Document, pages []int) (string, error) {
	ordered, err := NormalizePages(pages, doc.NumPages())
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, n := range ordered {
		text, err := pageText(doc.reader.Page(n))
		if err != nil {
			return "", fmt.Errorf("extracting page %d: %w", n, err)
		}
		if text == "" {
			continue
		}
		b.WriteString(CleanPageText(text))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// CleanPageText drops every line that consists solely of digits (page
// number artifacts) and rejoins the rest with "\n".
func CleanPageText(text string) string {
	lines := splitLines(text)
	kept := lines[:0]
	for _, line := range lines {
		if pageNumberLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// LineCount counts lines the way CleanPageText splits them.
func LineCount(text string) int {
	return len(splitLines(text))
}

// splitLines splits on \n, \r\n and \r. A trailing line break does not
// produce an empty final line, and "" has no lines.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// pageText rebuilds a page's text line by line: runs grouped by their
// baseline top to bottom, each line read left to right.
func pageText(page pdf.Page) (text string, err error) {
	if page.V.IsNull() {
		return "", nil
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()

	lines := make([]string, 0)
	for _, line := range groupLines(page.Content().Text) {
		lines = append(lines, strings.TrimRight(joinRuns(line), " \t"))
	}

	text = strings.Join(lines, "\n")
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return text, nil
}

// groupLines splits runs into lines. Runs whose baselines are within half a
// font size of each other share a line.
func groupLines(runs []pdf.Text) [][]pdf.Text {
	if len(runs) == 0 {
		return nil
	}

	sorted := make([]pdf.Text, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Y > sorted[j].Y
	})

	var (
		lines   [][]pdf.Text
		current []pdf.Text
		lineY   float64
	)
	for _, r := range sorted {
		if len(current) > 0 && lineY-r.Y > lineTolerance(r) {
			lines = append(lines, current)
			current = nil
		}
		if len(current) == 0 {
			lineY = r.Y
		}
		current = append(current, r)
	}
	lines = append(lines, current)

	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool {
			return line[i].X < line[j].X
		})
	}
	return lines
}

func lineTolerance(r pdf.Text) float64 {
	if r.FontSize > 2 {
		return r.FontSize / 2
	}
	return 1
}

// joinRuns concatenates a line's runs, putting a space where two runs are
// visibly apart and neither side already carries one.
func joinRuns(line []pdf.Text) string {
	var b strings.Builder
	prevEnd := 0.0
	for i, r := range line {
		if i > 0 && r.W > 0 && r.X-prevEnd > r.FontSize*0.25 {
			cur := b.String()
			if !strings.HasSuffix(cur, " ") && !strings.HasPrefix(r.S, " ") {
				b.WriteString(" ")
			}
		}
		b.WriteString(r.S)
		prevEnd = r.X + r.W
	}
	return b.String()
}
