package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lumenfleet/authcore"
)

// SessionCookieName is the cookie consulted when no Authorization
// header is present.
const SessionCookieName = "lf_session"

// RefreshHeader carries the re-stamped session token back to the caller
// when validation renewed the liveness timestamp.
const RefreshHeader = "X-Session-Refresh"

type authResultContextKey struct{}

// AuthResultFromContext describes the authresultfromcontext operation and its observable behavior.
//
// AuthResultFromContext may return an error when input validation, dependency calls, or security checks fail.
// AuthResultFromContext does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func AuthResultFromContext(ctx context.Context) (*authcore.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authcore.AuthResult)
	return res, ok
}

// Guard describes the guard operation and its observable behavior.
//
// Guard may return an error when input validation, dependency calls, or security checks fail.
// Guard does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := sessionToken(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, refreshed, err := engine.ValidateSession(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if refreshed != "" {
				w.Header().Set(RefreshHeader, refreshed)
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
