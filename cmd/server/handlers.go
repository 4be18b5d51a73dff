package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/brunobiangulo/casegen"
	"github.com/brunobiangulo/casegen/export"
	"github.com/brunobiangulo/casegen/parser"
	"github.com/brunobiangulo/casegen/record"
)

// maxUploadSize bounds the multipart form (PDF plus workbook).
const maxUploadSize = 100 << 20

type handler struct {
	engine          casegen.Engine
	generateTimeout time.Duration
}

func newHandler(e casegen.Engine, generateTimeout time.Duration) *handler {
	return &handler{engine: e, generateTimeout: generateTimeout}
}

// upload is the parsed multipart form shared by the document endpoints.
type upload struct {
	pdf      []byte
	examples []byte
	pages    []int
}

// readUpload reads the "pdf" file, the optional "examples" file and the
// optional "pages" field.
func readUpload(r *http.Request) (*upload, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, fmt.Errorf("expected multipart form: %w", err)
	}

	pdf, err := formFile(r, "pdf")
	if err != nil {
		return nil, err
	}
	if pdf == nil {
		return nil, errors.New("pdf file is required")
	}

	examples, err := formFile(r, "examples")
	if err != nil {
		return nil, err
	}

	pages, err := parser.ParseSelection(r.FormValue("pages"))
	if err != nil {
		return nil, err
	}

	return &upload{pdf: pdf, examples: examples, pages: pages}, nil
}

func formFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", field, err)
	}
	return data, nil
}

// boundPages checks the selection against the document before any
// extraction. An empty selection stands for every page.
func (h *handler) boundPages(pdf []byte, pages []int) ([]int, error) {
	total, err := h.engine.PageCount(pdf)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return parser.AllPages(total), nil
	}
	for _, n := range pages {
		if n < 1 || n > total {
			return nil, fmt.Errorf("%w: page %d not in 1..%d", casegen.ErrPageOutOfRange, n, total)
		}
	}
	return pages, nil
}

// POST /pages
func (h *handler) handlePages(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	total, err := h.engine.PageCount(up.pdf)
	if err != nil {
		h.fail(w, "page count", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_pages": total,
	})
}

type previewJSON struct {
	Page   int    `json:"page"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Image  string `json:"image"`
}

// POST /preview
func (h *handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pages, err := h.boundPages(up.pdf, up.pages)
	if err != nil {
		h.fail(w, "preview", err)
		return
	}

	previews, err := h.engine.Preview(up.pdf, pages)
	if err != nil {
		h.fail(w, "preview", err)
		return
	}

	out := make([]previewJSON, 0, len(previews))
	for _, p := range previews {
		png, err := parser.EncodePNG(p.Image)
		if err != nil {
			h.fail(w, "preview", err)
			return
		}
		b := p.Image.Bounds()
		out = append(out, previewJSON{
			Page:   p.Page,
			Width:  b.Dx(),
			Height: b.Dy(),
			Image:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"previews": out,
	})
}

// POST /extract
func (h *handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pages, err := h.boundPages(up.pdf, up.pages)
	if err != nil {
		h.fail(w, "extract", err)
		return
	}

	text, err := h.engine.ExtractText(up.pdf, pages)
	if err != nil {
		h.fail(w, "extract", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"text": text,
	})
}

// POST /generate
func (h *handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.generateTimeout)
		defer cancel()
	}

	up, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pages, err := h.boundPages(up.pdf, up.pages)
	if err != nil {
		h.fail(w, "generate", err)
		return
	}

	req := casegen.GenerateRequest{PDF: up.pdf, Pages: pages}
	if up.examples != nil {
		req.Examples = bytes.NewReader(up.examples)
	}

	result, err := h.engine.Generate(ctx, req)
	if err != nil {
		h.fail(w, "generate", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// readCases decodes a JSON array of test case objects from the body.
func readCases(r *http.Request) ([]record.Record, error) {
	var cases []record.Record
	if err := json.NewDecoder(r.Body).Decode(&cases); err != nil {
		return nil, fmt.Errorf("expected a JSON array of objects: %w", err)
	}
	return cases, nil
}

// POST /export/json
func (h *handler) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	cases, err := readCases(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := export.JSON(cases)
	if err != nil {
		h.fail(w, "export json", err)
		return
	}
	writeAttachment(w, export.JSONFileName, export.JSONContentType, data)
}

// POST /export/xlsx
func (h *handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	cases, err := readCases(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := export.XLSX(cases)
	if err != nil {
		h.fail(w, "export xlsx", err)
		return
	}
	writeAttachment(w, export.XLSXFileName, export.XLSXContentType, data)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// fail maps an engine error onto a status code and logs it.
func (h *handler) fail(w http.ResponseWriter, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" error", "error", err, "status", status)
	} else {
		slog.Warn(op+" rejected", "error", err, "status", status)
	}
	writeError(w, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, casegen.ErrPageOutOfRange),
		errors.Is(err, casegen.ErrInvalidPDF),
		errors.Is(err, casegen.ErrInvalidSpreadsheet):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "generation timed out"
	case errors.Is(err, casegen.ErrLLMRequestFailed):
		return http.StatusBadGateway, "LLM request failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
