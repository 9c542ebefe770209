package middleware

import (
	"net/http"
	"strings"

	"github.com/nkiryanov/payengine/internal/handlers/callerctx"
	"github.com/nkiryanov/payengine/internal/handlers/render"
)

type tokenParser interface {
	Parse(token string) (caller string, err error)
}

// AuthMiddleware requires a valid bearer service token and puts the caller
// name into the request context
func AuthMiddleware(parser tokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			caller, err := parser.Parse(token)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := callerctx.New(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
