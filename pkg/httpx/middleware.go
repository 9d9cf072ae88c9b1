package httpx

import (
	"net/http"
	"runtime/debug"

	"github.com/aussiebroadwan/iha/pkg/slogx"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws to h so that the first middleware is the outermost one:
// Chain(h, a, b) serves a(b(h)).
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover turns a handler panic into a 500 with an OAuth2 error body.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					slogx.FromContext(r.Context()).Error("handler panic",
						"panic", v,
						"stack", string(debug.Stack()),
					)
					WriteOAuth2Error(w, http.StatusInternalServerError, "server_error", "")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
