package export

import (
	"encoding/json"
	"fmt"
)

// JSONExporter renders values as pretty-printed JSON documents.
type JSONExporter struct {
	indent string
}

// NewJSONExporter builds a JSON exporter indenting with two spaces.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{indent: "  "}
}

// ContentType reports the MIME type of rendered output.
func (e *JSONExporter) ContentType() string {
	return "application/json; charset=utf-8"
}

// Render marshals v with indentation.
func (e *JSONExporter) Render(v interface{}) ([]byte, error) {
	payload, err := json.MarshalIndent(v, "", e.indent)
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return payload, nil
}
