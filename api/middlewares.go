package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// requireAuthenticatedUser is the gate in front of every task route. Only a
// well-formed "Bearer <token>" header with a valid, unexpired token gets
// through; the verified user id is then available via contextGetUserID.
func (app *application) requireAuthenticatedUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			app.authenticationRequiredResponse(w, r)
			return
		}
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			app.invalidTokenResponse(w, r)
			return
		}
		userID, err := app.tokens.verify(parts[1])
		if err != nil {
			if errors.Is(err, errExpiredToken) {
				app.logger.Debug("rejected expired token", "uri", r.URL.RequestURI())
			}
			app.invalidTokenResponse(w, r)
			return
		}
		next.ServeHTTP(w, contextSetUserID(r, userID))
	}
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.serverErrorResponse(w, r, fmt.Errorf("%v", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (app *application) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		ok, retryAfter, err := app.limiter.allow(r.Context(), ip)
		if err != nil {
			// A broken shared limiter must not take the API down with it.
			app.logger.Warn("rate limiter unavailable", "backend", app.limiter.name(), "error", err)
		}
		if !ok {
			rateLimited.WithLabelValues(app.limiter.name()).Inc()
			app.rateLimitExceededResponse(w, r, retryAfter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (app *application) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		w.Header().Add("Vary", "Access-Control-Request-Method")

		origin := r.Header.Get("Origin")
		if origin != "" {
			for _, o := range app.config.cors.trustedOrigins {
				if origin == o || o == "*" {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					// preflight request
					if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
						w.Header().Set("Access-Control-Allow-Methods", "OPTIONS, PUT, PATCH, DELETE")
						w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
						w.WriteHeader(http.StatusOK)
						return
					}
					break
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

type contextKey string

const userIDContextKey contextKey = "userID"

func contextSetUserID(r *http.Request, userID uuid.UUID) *http.Request {
	ctx := context.WithValue(r.Context(), userIDContextKey, userID)
	return r.WithContext(ctx)
}

// contextGetUserID panics when called outside requireAuthenticatedUser; that
// is a wiring bug, not a client error.
func contextGetUserID(r *http.Request) uuid.UUID {
	userID, ok := r.Context().Value(userIDContextKey).(uuid.UUID)
	if !ok {
		panic("missing user id in request context")
	}
	return userID
}
