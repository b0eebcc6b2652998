package httpkit

import (
	"net/http"

	perrs "opscreen/internal/platform/errors"
	pnet "opscreen/internal/platform/net"
)

// RequireRole is middleware that rejects requests whose authenticated role
// does not match any of the allowed roles. Mount inside Protected groups so
// the auth middleware has already populated the context
func RequireRole(write func(w http.ResponseWriter, status int, body any), allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := pnet.UserRole(r.Context())
			if _, ok := set[role]; !ok {
				status, body := pnet.Error(perrs.Forbiddenf("insufficient role"), pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
