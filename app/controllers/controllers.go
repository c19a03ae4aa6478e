// Package controllers adapts HTTP requests to the account, checkout and
// reconciliation services.
package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/bind"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/response"
)

// decode binds and validates the body into dest. On failure it has already
// answered and returns false.
func decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	errs, err := bind.JSON(r, dest)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return false
	}
	if len(errs) > 0 {
		response.ValidationError(w, errs)
		return false
	}
	return true
}

// subject returns the bearer subject. Routes that call it sit behind
// middleware.Bearer, so a missing subject is a wiring bug.
func subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	s, ok := middleware.Subject(r.Context())
	if !ok {
		response.Fail(r.Context(), w, services.ErrInvariant)
	}
	return s, ok
}

// idParam parses a positive numeric URL parameter. Anything else is
// answered as not found.
func idParam(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		response.NotFound(w)
		return 0, false
	}
	return uint(id), true
}
