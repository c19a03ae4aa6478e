package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/response"
)

// TokenValidator is satisfied by *auth.TokenService.
type TokenValidator interface {
	Validate(token string) (string, error)
}

type subjectKey struct{}

// WithSubject stores the authenticated subject in ctx.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// Subject returns the subject placed in ctx by Bearer.
func Subject(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok && s != ""
}

// Bearer rejects requests without a valid "Authorization: Bearer <token>"
// header and exposes the token's subject through Subject.
func Bearer(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				response.Unauthorized(w, "missing or malformed token")
				return
			}

			subject, err := tokens.Validate(token)
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				response.Unauthorized(w, "token expired")
				return
			case err != nil:
				logger.WithCtx(r.Context()).Debug("bearer rejected", "reason", err.Error())
				response.Unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

// SharedSecret admits requests whose header carries secret. An empty
// secret rejects everything.
func SharedSecret(header, secret string) func(http.Handler) http.Handler {
	want := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(header))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				response.Unauthorized(w, "invalid signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
