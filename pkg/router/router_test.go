package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func tag(v string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Chain", v)
			next.ServeHTTP(w, r)
		})
	}
}

func TestGroupMiddlewareOrderAndNames(t *testing.T) {
	r := New()
	api := r.Group("/api", tag("api"))
	orders := api.Group("orders", tag("auth"))
	orders.Get("/{id}", "orders.show", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	orders.Put("/{id}", "", func(w http.ResponseWriter, _ *http.Request) {})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/7", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, []string{"api", "auth"}, rec.Header().Values("X-Chain"))

	assert.Equal(t, []RouteInfo{
		{Method: http.MethodGet, Path: "/api/orders/{id}", Name: "orders.show"},
		{Method: http.MethodPut, Path: "/api/orders/{id}"},
	}, r.Routes())
}
