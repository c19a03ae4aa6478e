// Package bind decodes and validates an HTTP request body into a struct.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shashiranjanraj/storefront/pkg/validate"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// JSON decodes r.Body into dest and runs validation.
// It returns (errs, nil) on validation failures and (nil, err) when the body
// is malformed, has unknown fields or is too large.
func JSON(r *http.Request, dest interface{}) (map[string]string, error) {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return nil, fmt.Errorf("request body too large (max %d bytes)", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return nil, errors.New("request body is empty")
		default:
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	if errs := validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}
