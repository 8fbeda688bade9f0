/*
Package req provides helpers for HTTP request parsing and data binding.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"parley/internal/pkg/errs"
)

// MaxBodyBytes caps the size of JSON request bodies accepted by BindJSON.
const MaxBodyBytes int64 = 1 << 20 // 1 MB

// BindJSON binds the JSON request body to dst, rejecting unknown fields,
// malformed JSON, and trailing content.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.New(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return errs.New(errs.ErrRequestEntityTooLarge)
		}
		return errs.New(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.New(errs.ErrExtraContentInBody)
	}

	return nil
}
