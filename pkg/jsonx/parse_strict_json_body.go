package jsonx

import "net/http"

// 1MB is plenty for control requests and probe output
const maxBody = 1 << 20

// ParseStrictJSONBody strictly decodes a request body into dst. Any error
// maps to 400 Bad Request:
//
//   - malformed or truncated JSON
//   - an empty body (ErrEmpty)
//   - more than one JSON value (ErrTrailingJSON)
//   - unknown fields or mismatched field types
//
// It checks shape only; range checks belong to the handler.
func ParseStrictJSONBody[T any](r *http.Request, dst *T) error {
	return DecodeStrict(r.Body, dst)
}
