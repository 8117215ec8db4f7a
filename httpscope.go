package cask

import (
	"net/http"
	"strconv"
	"sync/atomic"
)

var requestSeq atomic.Uint64

// RequestScopeMiddleware opens a request scope per HTTP request and tears it
// down when the handler returns. The generated token travels on the request
// context, so request-scoped resolutions inside the handler share one cache
// slice. Compatible with any chi-style middleware chain.
func (c *Container) RequestScopeMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := "req-" + strconv.FormatUint(requestSeq.Add(1), 10)
			ctx := WithRequestToken(r.Context(), token)
			defer func() {
				_ = c.EndRequest(ctx, token)
			}()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
