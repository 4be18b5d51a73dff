package casegen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/brunobiangulo/casegen/record"
)

const (
	jsonFence  = "```json"
	closeFence = "```"
)

// CanonicalFields are the keys every generated test case should carry.
var CanonicalFields = []string{"Scenario", "Content", "TC_Name", "Description"}

// ParseResponse pulls the test cases out of a model response. It takes the
// text after the first ```json marker up to the next ``` (or the end of the
// response), trims it and decodes it as a list of objects. A single object
// is accepted as a list of one, so exporting the result writes it back as
// a one-element array rather than the bare object the model sent.
//
// On failure it returns an empty, non-nil slice together with one of
// ErrNoJSONFence, ErrMalformedJSON or ErrUnexpectedShape.
func ParseResponse(raw string) ([]record.Record, error) {
	empty := []record.Record{}

	start := strings.Index(raw, jsonFence)
	if start < 0 {
		return empty, ErrNoJSONFence
	}
	body := raw[start+len(jsonFence):]
	if end := strings.Index(body, closeFence); end >= 0 {
		body = body[:end]
	}
	data := []byte(strings.TrimSpace(body))

	if !json.Valid(data) {
		return empty, fmt.Errorf("%w: %s", ErrMalformedJSON, describeSyntaxError(data))
	}

	var items []json.RawMessage
	switch jsonKind(data) {
	case "array":
		if err := json.Unmarshal(data, &items); err != nil {
			return empty, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
	case "object":
		// A lone test case is passed through as a list of one.
		items = []json.RawMessage{data}
	default:
		return empty, fmt.Errorf("%w: got %s", ErrUnexpectedShape, jsonKind(data))
	}

	cases := make([]record.Record, 0, len(items))
	for i, item := range items {
		if jsonKind(item) != "object" {
			return empty, fmt.Errorf("%w: item %d is %s", ErrUnexpectedShape, i+1, jsonKind(item))
		}
		var r record.Record
		if err := json.Unmarshal(item, &r); err != nil {
			return empty, fmt.Errorf("%w: item %d: %v", ErrUnexpectedShape, i+1, err)
		}
		cases = append(cases, r)
	}
	return cases, nil
}

func describeSyntaxError(data []byte) string {
	var v any
	err := json.Unmarshal(data, &v)
	if err == nil {
		return "invalid JSON"
	}
	return err.Error()
}

// jsonKind names the top-level JSON type of valid JSON data.
func jsonKind(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "nothing"
	}
	switch data[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

const testCaseSchema = `{
  "type": "object",
  "required": ["Scenario", "Content", "TC_Name", "Description"],
  "properties": {
    "Scenario": {"type": "string"},
    "Content": {"type": "string"},
    "TC_Name": {"type": "string"},
    "Description": {"type": "string"}
  }
}`

var testCaseShape = jsonschema.MustCompileString("test_case.schema.json", testCaseSchema)

// CheckShape reports test cases that miss a canonical field or carry a
// non-string value in one. It only reports; nothing is dropped.
func CheckShape(cases []record.Record) []string {
	var notes []string
	for i, c := range cases {
		doc, err := schemaValue(c)
		if err != nil {
			notes = append(notes, fmt.Sprintf("test case %d: %v", i+1, err))
			continue
		}
		err = testCaseShape.Validate(doc)
		if err == nil {
			continue
		}
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			notes = append(notes, fmt.Sprintf("test case %d: %v", i+1, err))
			continue
		}
		for _, leaf := range leafCauses(ve) {
			loc := leaf.InstanceLocation
			if loc == "" {
				notes = append(notes, fmt.Sprintf("test case %d: %s", i+1, leaf.Message))
			} else {
				notes = append(notes, fmt.Sprintf("test case %d %s: %s", i+1, loc, leaf.Message))
			}
		}
	}
	return notes
}

// schemaValue converts a record into the generic form the validator walks.
func schemaValue(r record.Record) (any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func leafCauses(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leafCauses(c)...)
	}
	return out
}
