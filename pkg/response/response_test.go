package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testErr struct {
	status int
	msg    string
	fields map[string]string
}

func (e *testErr) Error() string              { return "internal detail: " + e.msg }
func (e *testErr) HTTPStatus() int            { return e.status }
func (e *testErr) PublicMessage() string      { return e.msg }
func (e *testErr) Fields() map[string]string { return e.fields }

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestFail(t *testing.T) {
	ctx := context.Background()

	t.Run("typed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Fail(ctx, rec, fmt.Errorf("wrapped: %w", &testErr{status: http.StatusConflict, msg: "email already registered"}))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "email already registered", decode(t, rec).Message)
	})

	t.Run("fields", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Fail(ctx, rec, &testErr{status: http.StatusUnprocessableEntity, msg: "Validation failed", fields: map[string]string{"email": "required"}})

		body := decode(t, rec)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, map[string]interface{}{"email": "required"}, body.Errors)
	})

	t.Run("gateway", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Fail(ctx, rec, &testErr{status: http.StatusBadGateway, msg: "payment provider unavailable"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("opaque", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Fail(ctx, rec, errors.New("sql: connection refused at 10.0.0.3"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "10.0.0.3")
	})

	t.Run("invariant", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Fail(ctx, rec, &testErr{status: http.StatusInternalServerError, msg: "user vanished"})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "vanished")
	})
}
