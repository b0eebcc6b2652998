package middleware

import (
	"net/http"

	pnet "opscreen/internal/platform/net"
)

// AuthPort is a tiny seam the auth service implements
type AuthPort interface {
	// Parse returns a user id and role from the request or an error
	Parse(r *http.Request) (userID string, role string, err error)
}

// Auth authenticates requests through the port and stores the user on the context.
// A nil port disables authentication entirely
func Auth(p AuthPort, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			uid, role, err := p.Parse(r)
			if err != nil {
				status, body := pnet.Error(err, pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			ctx := pnet.WithUser(r.Context(), uid, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
