package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/foodhub/internal/access"
)

// UserIDHeader carries the user id authenticated by the upstream gateway.
const UserIDHeader = "X-User-ID"

// RequestLogger logs one line per request with the chi request id.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// RequirePrincipal resolves the staff principal and stores it in the request
// context. Unapproved principals pass; each operation applies its own gate.
func RequirePrincipal(resolver access.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(UserIDHeader)
			if raw == "" {
				respondWithError(w, http.StatusUnauthorized, CodeUnauthorized, "Missing "+UserIDHeader+" header")
				return
			}
			userID, err := uuid.FromString(raw)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid "+UserIDHeader+" header")
				return
			}

			p, err := resolver.Resolve(r.Context(), userID)
			if err != nil {
				if errors.Is(err, access.ErrUnknownPrincipal) {
					respondWithError(w, http.StatusForbidden, CodeForbidden, "User does not work for any restaurant")
					return
				}
				log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to resolve principal")
				respondWithError(w, http.StatusInternalServerError, CodeInternal, "Failed to resolve principal")
				return
			}

			next.ServeHTTP(w, r.WithContext(access.WithPrincipal(r.Context(), p)))
		})
	}
}

func principalFrom(w http.ResponseWriter, r *http.Request) (access.Principal, bool) {
	p, ok := access.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, CodeUnauthorized, "Not authenticated")
	}
	return p, ok
}
