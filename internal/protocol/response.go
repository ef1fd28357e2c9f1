// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// StatusCodePath is the one field every backend response must carry.
const StatusCodePath = "resultado.status_code"

// Document is a decoded backend response. It is read-only.
type Document struct {
	raw  string
	root gjson.Result
}

// Value is a field found in a Document.
type Value struct {
	path string
	res  gjson.Result
}

// Parse decodes raw backend output. Only JSON objects are accepted.
func Parse(raw string) (*Document, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	if !gjson.Valid(trimmed) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	root := gjson.Parse(trimmed)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrMalformedResponse)
	}
	return &Document{raw: trimmed, root: root}, nil
}

// Raw returns the response text as received (trimmed).
func (d *Document) Raw() string { return d.raw }

// Lookup resolves a dot-separated key path. Absence is an error, never a zero value.
func (d *Document) Lookup(path string) (Value, error) {
	if path == "" {
		return Value{}, fmt.Errorf("%w: empty path", ErrFieldNotFound)
	}
	res := d.root.Get(escapePath(path))
	if !res.Exists() {
		return Value{}, fmt.Errorf("%w: %s", ErrFieldNotFound, path)
	}
	return Value{path: path, res: res}, nil
}

// StatusCode extracts resultado.status_code as an integer.
func (d *Document) StatusCode() (int, error) {
	v, err := d.Lookup(StatusCodePath)
	if err != nil {
		if errors.Is(err, ErrFieldNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrMissingStatusCode, StatusCodePath)
		}
		return 0, err
	}
	return v.Int()
}

// StatusCodeOf parses raw and extracts its status code in one step.
func StatusCodeOf(raw string) (int, error) {
	doc, err := Parse(raw)
	if err != nil {
		return 0, err
	}
	return doc.StatusCode()
}

// String returns the value as text; JSON strings are unquoted.
func (v Value) String() string { return v.res.String() }

// Raw returns the JSON encoding of the value.
func (v Value) Raw() string { return v.res.Raw }

// IsObject reports whether the value is a nested document.
func (v Value) IsObject() bool { return v.res.IsObject() }

// Int returns the value as an integer. JSON numbers must be integral; strings
// must hold a decimal integer, since the backend encodes numbers as text in places.
func (v Value) Int() (int, error) {
	switch v.res.Type {
	case gjson.Number:
		if n, err := strconv.ParseInt(v.res.Raw, 10, 0); err == nil {
			return int(n), nil
		}
		f := v.res.Num
		if f != math.Trunc(f) || f >= -float64(math.MinInt) || f < math.MinInt {
			return 0, fmt.Errorf("%w: %s=%s", ErrNonIntegerStatusCode, v.path, v.res.Raw)
		}
		return int(f), nil
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.res.Str))
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", ErrNonIntegerStatusCode, v.path, v.res.Str)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s=%s", ErrNonIntegerStatusCode, v.path, v.res.Raw)
	}
}

// escapePath turns a plain dot path into a gjson path, so wildcard and
// modifier characters inside keys are matched literally.
func escapePath(path string) string {
	parts := strings.Split(path, ".")
	for i, p := range parts {
		parts[i] = gjson.Escape(p)
	}
	return strings.Join(parts, ".")
}
