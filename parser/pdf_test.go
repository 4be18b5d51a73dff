package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPDF builds an A4 PDF with one page per entry in pages, each line
// written as its own cell so it lands on its own text row.
func newTestPDF(t *testing.T, pages ...[]string) []byte {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, lines := range pages {
		doc.AddPage()
		for _, line := range lines {
			doc.Cell(40, 10, line)
			doc.Ln(10)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestCleanPageText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"page number line dropped", "Page 1\n1\nEnd.", "Page 1\nEnd."},
		{"multi digit", "Intro\n42\n107\nBody", "Intro\nBody"},
		{"digits inside text kept", "Section 12a\n12 items\n3.5", "Section 12a\n12 items\n3.5"},
		{"whitespace around digits kept", " 7\n7 ", " 7\n7 "},
		{"blank lines kept", "a\n\nb", "a\n\nb"},
		{"crlf", "Title\r\n2\r\nText", "Title\nText"},
		{"trailing newline", "Text\n3\n", "Text"},
		{"unicode digits", "Text\n٣\n", "Text"},
		{"only page number", "5", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanPageText(tt.in))
		})
	}
}

func TestCleanPageTextNeverAddsLines(t *testing.T) {
	inputs := []string{
		"",
		"1",
		"a\nb\nc",
		"1\n2\n3\nfooter",
		"header\n\n\n10\n",
		"x\r\ny\r\n99",
	}
	for _, in := range inputs {
		out := CleanPageText(in)
		assert.LessOrEqual(t, LineCount(out), LineCount(in), "input %q", in)
	}
}

func TestNormalizePages(t *testing.T) {
	got, err := NormalizePages([]int{3, 1, 3, 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)

	for _, bad := range []int{0, -1, 4} {
		_, err := NormalizePages([]int{1, bad}, 3)
		assert.ErrorIs(t, err, ErrPageOutOfRange, "page %d", bad)
	}

	got, err = NormalizePages(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAllPages(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, AllPages(3))
	assert.Empty(t, AllPages(0))
}

func TestExtractPagesDropsPageNumbers(t *testing.T) {
	data := newTestPDF(t, []string{"Page 1", "1", "End."})

	doc, err := NewDocument(data)
	require.NoError(t, err)
	defer doc.Close()
	require.Equal(t, 1, doc.NumPages())

	text, err := ExtractPages(doc, []int{1})
	require.NoError(t, err)
	assert.Equal(t, "Page 1\nEnd.\n", text)
}

func TestExtractPagesKeepsLinesApart(t *testing.T) {
	data := newTestPDF(t,
		[]string{"Hello world", "Second line", "12"},
		[]string{"Next page", "3 items"},
	)
	doc, err := NewDocument(data)
	require.NoError(t, err)
	defer doc.Close()

	text, err := ExtractPages(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "", text)

	text, err = ExtractPages(doc, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nSecond line\nNext page\n3 items\n", text)
}

func TestExtractPagesNeverAddsLines(t *testing.T) {
	data := newTestPDF(t,
		[]string{"Title", "1", "Body text", "2"},
		[]string{"44"},
		[]string{"Closing", "words here"},
	)
	doc, err := NewDocument(data)
	require.NoError(t, err)
	defer doc.Close()

	raw := 0
	for n := 1; n <= doc.NumPages(); n++ {
		text, err := pageText(doc.reader.Page(n))
		require.NoError(t, err)
		raw += LineCount(text)
	}

	text, err := ExtractPages(doc, AllPages(doc.NumPages()))
	require.NoError(t, err)
	assert.LessOrEqual(t, LineCount(text), raw)
	assert.Equal(t, "Title\nBody text\n\nClosing\nwords here\n", text)
}

func TestExtractPagesIncreasingOrder(t *testing.T) {
	data := newTestPDF(t,
		[]string{"first page"},
		[]string{"second page"},
		[]string{"third page"},
	)
	doc, err := NewDocument(data)
	require.NoError(t, err)
	defer doc.Close()

	text, err := ExtractPages(doc, []int{3, 1})
	require.NoError(t, err)

	first := strings.Index(text, "first page")
	third := strings.Index(text, "third page")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, third, 0)
	assert.Less(t, first, third)
	assert.NotContains(t, text, "second page")
}

func TestExtractPagesSkipsPagesWithoutText(t *testing.T) {
	data := newTestPDF(t, []string{"only text"}, nil)
	doc, err := NewDocument(data)
	require.NoError(t, err)
	defer doc.Close()

	withBlank, err := ExtractPages(doc, []int{1, 2})
	require.NoError(t, err)
	alone, err := ExtractPages(doc, []int{1})
	require.NoError(t, err)
	assert.Equal(t, alone, withBlank)

	blank, err := ExtractPages(doc, []int{2})
	require.NoError(t, err)
	assert.Equal(t, "", blank)
}

func TestExtractPagesOutOfRange(t *testing.T) {
	data := newTestPDF(t, []string{"one"})
	doc, err := NewDocument(data)
	require.NoError(t, err)
	defer doc.Close()

	_, err = ExtractPages(doc, []int{2})
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	_, err = ExtractPages(doc, []int{0})
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestClosedDocumentHasNoPages(t *testing.T) {
	doc, err := NewDocument(newTestPDF(t, []string{"x"}))
	require.NoError(t, err)
	require.NoError(t, doc.Close())

	assert.Equal(t, 0, doc.NumPages())
	_, err = ExtractPages(doc, []int{1})
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestNewDocumentInvalid(t *testing.T) {
	_, err := NewDocument([]byte("definitely not a pdf"))
	assert.ErrorIs(t, err, ErrInvalidPDF)
}

func TestPageCount(t *testing.T) {
	data := newTestPDF(t, []string{"a"}, []string{"b"}, []string{"c"})

	n, err := PageCount(data)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	doc, err := NewDocument(data)
	require.NoError(t, err)
	defer doc.Close()
	assert.Equal(t, doc.NumPages(), n)
}

func TestPageCountInvalid(t *testing.T) {
	_, err := PageCount([]byte("garbage"))
	assert.ErrorIs(t, err, ErrInvalidPDF)
}
