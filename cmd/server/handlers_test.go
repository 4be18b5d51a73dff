package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/casegen"
	"github.com/brunobiangulo/casegen/export"
	"github.com/brunobiangulo/casegen/llm"
)

type fakeProvider struct {
	content string
	err     error
	calls   int
}

func (f *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.content, Model: "fake-model"}, nil
}

func testPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		doc.Cell(40, 10, text)
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

// multipartBody builds a form with the given files and fields.
func multipartBody(t *testing.T, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		fw, err := mw.CreateFormFile(name, name+".bin")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newTestServer(t *testing.T, p llm.Provider, apiKey string) http.Handler {
	t.Helper()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	e, err := casegen.New(casegen.DefaultConfig(), casegen.WithProvider(p))
	require.NoError(t, err)
	return newServer(e, time.Minute, apiKey, "")
}

func post(t *testing.T, h http.Handler, path string, files map[string][]byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, files, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &fakeProvider{}, "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestAuthRequired(t *testing.T) {
	h := newTestServer(t, &fakeProvider{}, "secret")
	pdf := testPDF(t, "one")

	rec := post(t, h, "/pages", map[string][]byte{"pdf": pdf}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body, ct := multipartBody(t, map[string][]byte{"pdf": pdf}, nil)
	req := httptest.NewRequest(http.MethodPost, "/pages", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPages(t *testing.T) {
	h := newTestServer(t, &fakeProvider{}, "")

	rec := post(t, h, "/pages", map[string][]byte{"pdf": testPDF(t, "a", "b", "c")}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), decode(t, rec)["total_pages"])
}

func TestPagesBadInput(t *testing.T) {
	h := newTestServer(t, &fakeProvider{}, "")

	rec := post(t, h, "/pages", nil, map[string]string{"pages": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h, "/pages", map[string][]byte{"pdf": []byte("not a pdf")}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtract(t *testing.T) {
	h := newTestServer(t, &fakeProvider{}, "")
	pdf := testPDF(t, "Alpha", "Beta", "Gamma")

	rec := post(t, h, "/extract", map[string][]byte{"pdf": pdf}, map[string]string{"pages": "3,1"})
	require.Equal(t, http.StatusOK, rec.Code)
	text := decode(t, rec)["text"].(string)
	assert.Equal(t, "Alpha\nGamma\n", text)
}

func TestExtractOutOfRange(t *testing.T) {
	h := newTestServer(t, &fakeProvider{}, "")

	rec := post(t, h, "/extract", map[string][]byte{"pdf": testPDF(t, "only")}, map[string]string{"pages": "2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "page out of range")
}

func TestPreview(t *testing.T) {
	h := newTestServer(t, &fakeProvider{}, "")

	rec := post(t, h, "/preview", map[string][]byte{"pdf": testPDF(t, "a", "b")}, map[string]string{"pages": "2,1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Previews []previewJSON `json:"previews"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Previews, 2)
	assert.Equal(t, 2, out.Previews[0].Page)
	assert.Equal(t, 1, out.Previews[1].Page)
	assert.True(t, strings.HasPrefix(out.Previews[0].Image, "data:image/png;base64,"))
	assert.Positive(t, out.Previews[0].Width)
}

func TestGenerate(t *testing.T) {
	fake := &fakeProvider{content: "```json\n[{\"Scenario\":\"Login\",\"Content\":\"c\",\"TC_Name\":\"TC_1\",\"Description\":\"d\"}]\n```"}
	h := newTestServer(t, fake, "")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Scenario", "TC_Name"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Logout", "TC_0"}))
	xlsx, err := f.WriteToBuffer()
	require.NoError(t, err)
	f.Close()

	rec := post(t, h, "/generate",
		map[string][]byte{"pdf": testPDF(t, "BRD"), "examples": xlsx.Bytes()},
		nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res casegen.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, res.Warning)
	assert.Equal(t, 1, res.Examples)
	require.Len(t, res.TestCases, 1)
	assert.Equal(t, "TC_1", res.TestCases[0].StringValue("TC_Name"))
	assert.Equal(t, 1, fake.calls)
}

func TestGenerateUnparseable(t *testing.T) {
	h := newTestServer(t, &fakeProvider{content: "no json here"}, "")

	rec := post(t, h, "/generate", map[string][]byte{"pdf": testPDF(t, "BRD")}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode(t, rec)
	assert.NotEmpty(t, out["warning"])
	assert.Equal(t, "no json here", out["raw_response"])
	assert.Empty(t, out["test_cases"])
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		pages  string
		status int
	}{
		{"llm failure", errors.New("boom"), "", http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, "", http.StatusGatewayTimeout},
		{"out of range", nil, "5", http.StatusBadRequest},
		{"bad selection", nil, "x", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeProvider{err: tt.err, content: "```json\n[]\n```"}
			h := newTestServer(t, fake, "")
			rec := post(t, h, "/generate", map[string][]byte{"pdf": testPDF(t, "BRD")}, map[string]string{"pages": tt.pages})
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestExportJSON(t *testing.T) {
	h := newTestServer(t, &fakeProvider{}, "")

	body := `[{"Scenario":"S","Content":"C","TC_Name":"T","Description":"D"}]`
	req := httptest.NewRequest(http.MethodPost, "/export/json", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.JSONContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="test_cases.json"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "[\n  {\n    \"Scenario\": \"S\",\n    \"Content\": \"C\",\n    \"TC_Name\": \"T\",\n    \"Description\": \"D\"\n  }\n]", rec.Body.String())
}

func TestExportXLSX(t *testing.T) {
	h := newTestServer(t, &fakeProvider{}, "")

	body := `[{"Scenario":"S","TC_Name":"T"},{"Scenario":"S2","Priority":"High"}]`
	req := httptest.NewRequest(http.MethodPost, "/export/xlsx", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), export.XLSXFileName)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Scenario", "TC_Name", "Priority"}, rows[0])
}

func TestExportBadBody(t *testing.T) {
	h := newTestServer(t, &fakeProvider{}, "")

	for _, body := range []string{`{"a":1}`, `not json`, `[1,2]`} {
		req := httptest.NewRequest(http.MethodPost, "/export/json", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := corsMiddleware("https://ui.example", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight reached handler")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/generate", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://ui.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
