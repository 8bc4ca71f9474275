package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/estately/internal/common"
	"github.com/dmitrijs2005/estately/internal/logging"
	"github.com/dmitrijs2005/estately/internal/server/auth"
	"github.com/go-chi/chi/v5/middleware"
)

// Mode selects how Authenticate treats requests without a usable token.
type Mode int

const (
	// Strict rejects the request with 401.
	Strict Mode = iota
	// Optional lets it through anonymously.
	Optional
)

// Authenticator resolves an access token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.Identity, error)
}

// bearerToken returns the access token from a Bearer Authorization header,
// or from the access-token cookie when there is none. Other schemes, such as
// Basic added by a proxy, do not hide the cookie.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return cookieValue(r, common.AccessTokenCookieName)
}

// Authenticate attaches the verified caller to the request context.
//
// A token that verifies but names a user who no longer exists is rejected
// in both modes.
func Authenticate(a Authenticator, mode Mode, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if mode == Optional {
					next.ServeHTTP(w, r)
					return
				}
				writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}

			ident, err := a.Authenticate(r.Context(), token)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), ident)))
			case errors.Is(err, common.ErrorNotFound):
				writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
			case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrTokenKind):
				if mode == Optional {
					next.ServeHTTP(w, r)
					return
				}
				msg := msgUnauthorized
				if errors.Is(err, auth.ErrTokenExpired) {
					msg = msgTokenExpired
				}
				writeMessage(w, http.StatusUnauthorized, msg)
			default:
				writeServiceError(w, r, log, err)
			}
		})
	}
}

// RequireRoles admits only identities whose verified role is listed.
// Client-declared personas play no part in the decision.
func RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, _ := auth.IdentityFromContext(r.Context())
			switch err := auth.Require(ident, roles...); {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, auth.ErrRoleNotPermitted):
				writeMessage(w, http.StatusForbidden, msgForbidden)
			default:
				writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
			}
		})
	}
}

// requestLogger stores a logger tagged with the chi request id in the
// context and logs one line per request.
func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			l := log.With("request_id", middleware.GetReqID(r.Context()))
			ctx := logging.WithLogger(r.Context(), l)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			l.Info(ctx, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
