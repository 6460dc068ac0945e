package gateway

import (
	"context"
	"net"
	"net/http"
	"strings"

	goClone "github.com/MrEthical07/goClone"
)

// CallerHeader names the request header copied into notifications as the
// caller identity.
const CallerHeader = "X-Goclone-Caller"

// OwnerThrottle limits clients that keep presenting rejected owner tokens.
// Check returns an error wrapping rate.ErrRateLimited once the client is
// blocked. internal/rate provides the Redis implementation.
type OwnerThrottle interface {
	Check(ctx context.Context, subject string) error
	Increment(ctx context.Context, subject string) error
	Reset(ctx context.Context, subject string) error
}

// OwnerToken moves a Bearer token from the Authorization header into the
// request context, where the factory's owner capability check reads it.
// Requests without a token pass through unchanged; the factory decides.
func OwnerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
			ctx = goClone.WithOwnerToken(ctx, token)
		}
		if caller := strings.TrimSpace(r.Header.Get(CallerHeader)); caller != "" {
			ctx = goClone.WithCaller(ctx, caller)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireOwnerToken rejects requests without a Bearer token before they
// reach the factory.
func RequireOwnerToken(next http.Handler) http.Handler {
	return OwnerToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := goClone.OwnerTokenFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "owner token required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// clientAddr is the throttle subject: the remote host without its port. The
// caller header is client-chosen and never used here.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
