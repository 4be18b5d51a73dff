package casegen

import (
	"errors"

	"github.com/brunobiangulo/casegen/parser"
)

var (
	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("casegen: invalid configuration")

	// ErrMissingAPIKey is returned at startup when a hosted provider is
	// configured without credentials.
	ErrMissingAPIKey = errors.New("casegen: missing API key")

	// ErrLLMRequestFailed is returned when an LLM request fails.
	ErrLLMRequestFailed = errors.New("casegen: LLM request failed")

	// ErrNoJSONFence is returned when the model output has no ```json block.
	ErrNoJSONFence = errors.New("casegen: no ```json block in response")

	// ErrMalformedJSON is returned when the fenced block is not valid JSON.
	ErrMalformedJSON = errors.New("casegen: malformed JSON in response")

	// ErrUnexpectedShape is returned when the fenced block is valid JSON but
	// neither an object nor a list of objects.
	ErrUnexpectedShape = errors.New("casegen: response is not a list of test case objects")
)

// Errors surfaced from the parser package, re-exported so callers only need
// this package for errors.Is checks.
var (
	ErrInvalidPDF         = parser.ErrInvalidPDF
	ErrPageOutOfRange     = parser.ErrPageOutOfRange
	ErrInvalidSpreadsheet = parser.ErrInvalidSpreadsheet
)

// IsParseFailure reports whether err is one of the recoverable response
// parsing failures.
func IsParseFailure(err error) bool {
	return errors.Is(err, ErrNoJSONFence) ||
		errors.Is(err, ErrMalformedJSON) ||
		errors.Is(err, ErrUnexpectedShape)
}
