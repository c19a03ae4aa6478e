// Package response writes the JSON envelope every endpoint answers with.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

type envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

// Success sends a 200 JSON response with data.
func Success(w http.ResponseWriter, data interface{}) {
	write(w, http.StatusOK, envelope{Status: http.StatusOK, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(w http.ResponseWriter, data interface{}) {
	write(w, http.StatusCreated, envelope{Status: http.StatusCreated, Data: data})
}

// Message sends a 200 with only a human-readable message.
func Message(w http.ResponseWriter, msg string) {
	write(w, http.StatusOK, envelope{Status: http.StatusOK, Message: msg})
}

// Error sends a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, envelope{Status: status, Message: message})
}

// ValidationError sends a 422 with field-level error map.
func ValidationError(w http.ResponseWriter, errs map[string]string) {
	write(w, http.StatusUnprocessableEntity, envelope{
		Status:  http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  errs,
	})
}

// Unauthorized sends a 401 with the given reason.
func Unauthorized(w http.ResponseWriter, reason string) {
	Error(w, http.StatusUnauthorized, reason)
}

// NotFound sends a 404.
func NotFound(w http.ResponseWriter) {
	Error(w, http.StatusNotFound, "Not found")
}

// StatusError is implemented by errors that know their HTTP rendering.
// Public messages must be safe to show to the client.
type StatusError interface {
	error
	HTTPStatus() int
	PublicMessage() string
}

// FieldErrors is implemented by validation errors carrying per-field detail.
type FieldErrors interface {
	Fields() map[string]string
}

// Fail renders err. Errors that do not implement StatusError, and any that
// map to 500, are logged and answered with a generic message.
func Fail(ctx context.Context, w http.ResponseWriter, err error) {
	var se StatusError
	status := http.StatusInternalServerError
	if errors.As(err, &se) {
		status = se.HTTPStatus()
	}

	switch {
	case status == http.StatusBadGateway:
		logger.WithCtx(ctx).Warn("upstream failure", "error", err)
	case status >= http.StatusInternalServerError:
		logger.WithCtx(ctx).Error("request failed", "error", err)
		Error(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var fe FieldErrors
	if errors.As(err, &fe) && len(fe.Fields()) > 0 {
		write(w, status, envelope{Status: status, Message: se.PublicMessage(), Errors: fe.Fields()})
		return
	}
	Error(w, status, se.PublicMessage())
}
