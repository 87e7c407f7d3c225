// Package ingest turns uploaded bulk-registration files into loosely typed
// records. Four strategies are supported: spreadsheet workbooks (xlsx/xls),
// CSV, JSON, and line-oriented text extracted from PDFs.
package ingest

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when the declared extension is not
	// one of the recognized kinds. Fatal to the whole upload.
	ErrUnsupportedFormat = errors.New("ingest: unsupported file format")

	// ErrMalformedPayload is returned when the container itself cannot be
	// parsed. Fatal to the whole upload; no records can be salvaged.
	ErrMalformedPayload = errors.New("ingest: malformed payload")
)

// RawRecord is one untyped row extracted from an uploaded file: a mapping
// of field name to string or number. It exists only inside the pipeline.
type RawRecord map[string]any

// Text returns the trimmed string form of a field, converting numeric
// values as needed. Missing fields yield "".
func (r RawRecord) Text(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

// Int returns the integer form of a field, accepting both numeric values
// and numeric strings.
func (r RawRecord) Int(key string) (int, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Parser extracts an ordered, finite record sequence from a byte buffer.
// Parsing always restarts from scratch; there is no mid-stream resumption.
type Parser interface {
	Parse(data []byte) ([]RawRecord, error)
}

// ForExtension selects the parser for a declared file extension.
// Recognized kinds: xlsx, xls, csv, json, pdf.
func ForExtension(ext string) (Parser, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), ".")) {
	case "xlsx", "xls":
		return sheetParser{}, nil
	case "csv":
		return csvParser{}, nil
	case "json":
		return jsonParser{}, nil
	case "pdf":
		return textParser{}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}
