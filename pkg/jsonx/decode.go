package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var (
	ErrEmpty        = errors.New("empty body")
	ErrTrailingJSON = errors.New("trailing data")
)

// Decode reads exactly one JSON value from src into dst. Unknown fields are
// ignored, so it suits output of external tools that grow new keys.
func Decode[T any](src io.Reader, dst *T) error {
	return decode(src, dst, false)
}

// DecodeStrict is Decode that also rejects unknown fields.
func DecodeStrict[T any](src io.Reader, dst *T) error {
	return decode(src, dst, true)
}

func decode(src io.Reader, dst any, strict bool) error {
	body, err := io.ReadAll(io.LimitReader(src, maxBody))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return ErrEmpty
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrTrailingJSON
	}
	return nil
}
